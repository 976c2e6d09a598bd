package models

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TokenPairResponse struct {
	AccessToken  string `json:"access"`
	RefreshToken string `json:"refresh"`
}

type TokenRefreshRequest struct {
	RefreshToken string `json:"refresh"`
}

// TokenRefreshResponse carries a rotated refresh token only when the server rotates.
type TokenRefreshResponse struct {
	AccessToken  string `json:"access"`
	RefreshToken string `json:"refresh,omitempty"`
}

type ErrorResponse struct {
	Detail string `json:"detail"`
}

type DashboardResponse struct {
	Username       string `json:"username"`
	TotalAthletes  int    `json:"total_athletes"`
	ActiveAthletes int    `json:"active_athletes"`
	TotalShelves   int    `json:"total_shelves"`
}

package util

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

//nolint:gochecknoglobals // here its ok
var once sync.Once

func init() {
	once.Do(func() {
		if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
			log.Printf("Warning: could not load .env file: %v", err)
		}
	})
}

const (
	defaultServerAddr      = "localhost:8000"
	defaultWriteTimeout    = 10 * time.Second
	defaultReadTimeout     = 10 * time.Second
	defaultIdleTimeout     = 30 * time.Second
	defaultGracefulTimeout = 5 * time.Second

	defaultAccessTTL  = 5 * time.Minute
	defaultRefreshTTL = 24 * time.Hour

	defaultBaseURL        = "http://localhost:8000"
	defaultLoginPath      = "/api/token/"
	defaultRefreshPath    = "/api/token/refresh/"
	defaultRequestTimeout = 10 * time.Second
	defaultSessionBackend = "file"
	defaultLogLevel       = "info"

	TokenPartsExpected = 2
	RawTokenLength     = 32
	JWTLeeWay          = 5 * time.Second
)

type ServerConfig struct {
	ServerAddr      string
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	IdleTimeout     time.Duration
	GracefulTimeout time.Duration
}

func NewServerConfig() *ServerConfig {
	addr := os.Getenv("SERVER_ADDRESS")
	if addr == "" {
		addr = defaultServerAddr
	}

	return &ServerConfig{
		ServerAddr:      addr,
		WriteTimeout:    parseDurationOrDefault("WRITE_TIMEOUT", defaultWriteTimeout),
		ReadTimeout:     parseDurationOrDefault("READ_TIMEOUT", defaultReadTimeout),
		IdleTimeout:     parseDurationOrDefault("IDLE_TIMEOUT", defaultIdleTimeout),
		GracefulTimeout: parseDurationOrDefault("GRACEFUL_TIMEOUT", defaultGracefulTimeout),
	}
}

type TokenConfig struct {
	JwtSecretKey  []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	RotateRefresh bool
}

func NewTokenConfig() *TokenConfig {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET is not set")
	}
	return &TokenConfig{
		JwtSecretKey:  []byte(secret),
		AccessTTL:     parseDurationOrDefault("ACCESS_TOKEN_TTL", defaultAccessTTL),
		RefreshTTL:    parseDurationOrDefault("REFRESH_TOKEN_TTL", defaultRefreshTTL),
		RotateRefresh: parseBoolOrDefault("ROTATE_REFRESH_TOKENS", false),
	}
}

// NewStubUsers parses STUB_USERS ("name:password,name:password") into a
// credentials map for the development auth server.
func NewStubUsers() map[string]string {
	return ParseUsers(os.Getenv("STUB_USERS"))
}

func ParseUsers(raw string) map[string]string {
	users := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		name, password, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok || name == "" {
			continue
		}
		users[name] = password
	}
	return users
}

// ClientConfig drives the authenticated request pipeline.
type ClientConfig struct {
	BaseURL         string
	LoginPath       string
	RefreshPath     string
	RequestTimeout  time.Duration
	SessionBackend  string
	CredentialsFile string
	LogLevel        string
}

func NewClientConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:         getenvOrDefault("API_BASE_URL", defaultBaseURL),
		LoginPath:       getenvOrDefault("LOGIN_PATH", defaultLoginPath),
		RefreshPath:     getenvOrDefault("REFRESH_PATH", defaultRefreshPath),
		RequestTimeout:  parseDurationOrDefault("HTTP_TIMEOUT", defaultRequestTimeout),
		SessionBackend:  getenvOrDefault("SESSION_BACKEND", defaultSessionBackend),
		CredentialsFile: getenvOrDefault("CREDENTIALS_FILE", defaultCredentialsFile()),
		LogLevel:        getenvOrDefault("LOG_LEVEL", defaultLogLevel),
	}
}

func defaultCredentialsFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".gymctl-credentials.yaml"
	}
	return filepath.Join(dir, "gymctl", "credentials.yaml")
}

func getenvOrDefault(varName, def string) string {
	if v := os.Getenv(varName); v != "" {
		return v
	}
	return def
}

func parseBoolOrDefault(varName string, def bool) bool {
	if v := os.Getenv(varName); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
		log.Printf("Invalid bool in %s: %s, using default %t", varName, v, def)
	}
	return def
}

func parseDurationOrDefault(varName string, def time.Duration) time.Duration {
	if v := os.Getenv(varName); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Printf("Invalid duration in %s: %s, using default %s", varName, v, def)
	}
	return def
}

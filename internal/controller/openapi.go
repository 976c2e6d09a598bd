package controller

import (
	_ "embed"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/labstack/echo/v4"
)

//go:embed openapi.yaml
var openapiDoc []byte

// GetSwagger loads and validates the embedded OpenAPI document.
func GetSwagger() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openapiDoc)
	if err != nil {
		return nil, fmt.Errorf("load openapi: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("validate openapi: %w", err)
	}
	return doc, nil
}

// RegisterHandlers mounts the documented routes. protect guards the routes
// that declare bearerAuth.
func RegisterHandlers(g *echo.Group, c *Controller, protect echo.MiddlewareFunc) {
	g.GET("/ping", c.CheckServer)
	g.POST("/token/", c.ObtainToken)
	g.POST("/token/refresh/", c.RefreshToken)
	g.GET("/dashboard/", c.Dashboard, protect)
}

package server

import (
	"net/http"

	"github.com/rs/cors"
)

// Cors represents CORS settings
type Cors struct {
	AllowCredentials *bool    `yaml:"AllowCredentials,omitempty" json:"allowCredentials,omitempty"`
	AllowHeaders     []string `yaml:"AllowHeaders,omitempty" json:"allowHeaders,omitempty"`
	AllowMethods     []string `yaml:"AllowMethods,omitempty" json:"allowMethods,omitempty"`
	AllowOrigins     []string `yaml:"AllowOrigins,omitempty" json:"allowOrigins,omitempty"`
	ExposeHeaders    []string `yaml:"ExposeHeaders,omitempty" json:"exposeHeaders,omitempty"`
	MaxAge           *int64   `yaml:"MaxAge,omitempty" json:"maxAge,omitempty"`
}

// Options converts settings into rs/cors options
func (c *Cors) Options() cors.Options {
	ret := cors.Options{
		AllowedOrigins: c.AllowOrigins,
		AllowedMethods: c.AllowMethods,
		AllowedHeaders: c.AllowHeaders,
		ExposedHeaders: c.ExposeHeaders,
	}
	if c.AllowCredentials != nil {
		ret.AllowCredentials = *c.AllowCredentials
	}
	if c.MaxAge != nil {
		ret.MaxAge = int(*c.MaxAge)
	}
	return ret
}

// Middleware returns CORS middleware, preflight requests are answered without reaching the handler
func (c *Cors) Middleware() Middleware {
	handler := cors.New(c.Options())
	return func(next http.Handler) http.Handler {
		return handler.Handler(next)
	}
}

func defaultCors() *Cors {
	return &Cors{
		AllowHeaders:  []string{"*"},
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowOrigins:  []string{"*"},
		ExposeHeaders: []string{versionHeader, sessionHeader, requestIDHeader},
	}
}

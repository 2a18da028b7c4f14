package middleware

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// SecurityHeadersConfig selects the protective response headers
type SecurityHeadersConfig struct {
	// HSTSMaxAge in seconds; zero disables Strict-Transport-Security
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool
	FrameOptions          string
	ContentSecurityPolicy string
	ReferrerPolicy        string
	// CrossOriginResourcePolicy is relaxed for /files so images embed on community domains
	CrossOriginResourcePolicy string
}

// APISecurityHeadersConfig returns headers for JSON endpoints. HSTS is sent
// only when the server terminates TLS itself.
func APISecurityHeadersConfig(tlsEnabled bool) SecurityHeadersConfig {
	cfg := SecurityHeadersConfig{
		FrameOptions:              "DENY",
		ContentSecurityPolicy:     "default-src 'none'; frame-ancestors 'none'",
		ReferrerPolicy:            "no-referrer",
		CrossOriginResourcePolicy: "same-origin",
	}
	if tlsEnabled {
		cfg.HSTSMaxAge = 31536000
		cfg.HSTSIncludeSubdomains = true
	}
	return cfg
}

// FileSecurityHeadersConfig returns headers for served image and export files
func FileSecurityHeadersConfig(tlsEnabled bool) SecurityHeadersConfig {
	cfg := APISecurityHeadersConfig(tlsEnabled)
	cfg.ContentSecurityPolicy = "default-src 'none'; img-src 'self'; sandbox"
	cfg.CrossOriginResourcePolicy = "cross-origin"
	return cfg
}

func (cfg SecurityHeadersConfig) hsts() string {
	parts := []string{"max-age=" + strconv.Itoa(cfg.HSTSMaxAge)}
	if cfg.HSTSIncludeSubdomains {
		parts = append(parts, "includeSubDomains")
	}
	return strings.Join(parts, "; ")
}

// SecurityHeadersMiddleware sets the configured headers on every response
func SecurityHeadersMiddleware(cfg SecurityHeadersConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		if cfg.HSTSMaxAge > 0 {
			h.Set("Strict-Transport-Security", cfg.hsts())
		}
		if cfg.FrameOptions != "" {
			h.Set("X-Frame-Options", cfg.FrameOptions)
		}
		if cfg.ContentSecurityPolicy != "" {
			h.Set("Content-Security-Policy", cfg.ContentSecurityPolicy)
		}
		if cfg.ReferrerPolicy != "" {
			h.Set("Referrer-Policy", cfg.ReferrerPolicy)
		}
		if cfg.CrossOriginResourcePolicy != "" {
			h.Set("Cross-Origin-Resource-Policy", cfg.CrossOriginResourcePolicy)
		}
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Permitted-Cross-Domain-Policies", "none")
		c.Next()
	}
}

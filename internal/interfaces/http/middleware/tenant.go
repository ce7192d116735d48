package middleware

import (
	"net/http"
	"strings"

	"github.com/fiscalerp/backend/internal/domain/tenancy"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Tenant context keys
const (
	TenantIDKey     = "tenant_id"
	TenantHeaderKey = "X-Tenant-ID"
)

// TenantMiddlewareConfig holds configuration for tenant scope binding
type TenantMiddlewareConfig struct {
	// HeaderEnabled allows X-Tenant-ID header extraction when no JWT claim
	// is present. Development convenience, off in production.
	HeaderEnabled bool
	// SkipPaths are paths served without a tenant scope
	SkipPaths []string
	// Logger for middleware logging
	Logger *zap.Logger
}

// DefaultTenantConfig returns default tenant middleware configuration
func DefaultTenantConfig() TenantMiddlewareConfig {
	return TenantMiddlewareConfig{
		HeaderEnabled: false,
		SkipPaths:     []string{"/health", "/healthz", "/ready", "/api/v1/health"},
	}
}

// TenantMiddleware binds the caller's tenant scope into the request context.
// Every repository call downstream reads the scope from there; a request that
// reaches a handler without a scope fails with TENANT_NOT_SCOPED.
func TenantMiddleware() gin.HandlerFunc {
	return TenantMiddlewareWithConfig(DefaultTenantConfig())
}

// TenantMiddlewareWithConfig returns tenant middleware with custom configuration
func TenantMiddlewareWithConfig(cfg TenantMiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, skipPath := range cfg.SkipPaths {
			if path == skipPath || strings.HasPrefix(path, skipPath+"/") {
				c.Next()
				return
			}
		}

		tenantID := GetJWTTenantID(c)
		if tenantID == "" && cfg.HeaderEnabled {
			tenantID = c.GetHeader(TenantHeaderKey)
		}
		if tenantID == "" {
			respondUnauthorized(c, "Tenant identification required")
			return
		}

		id, err := uuid.Parse(tenantID)
		if err != nil || id == uuid.Nil {
			if cfg.Logger != nil {
				cfg.Logger.Warn("invalid tenant id on request",
					zap.String("tenant_id", tenantID),
					zap.String("path", path))
			}
			respondUnauthorized(c, "Invalid tenant ID format")
			return
		}

		c.Set(TenantIDKey, id)
		c.Request = c.Request.WithContext(tenancy.WithTenant(c.Request.Context(), id))
		c.Next()
	}
}

func respondUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "UNAUTHORIZED",
			"message": message,
		},
	})
}

// GetTenantUUID retrieves the bound tenant id from gin.Context
func GetTenantUUID(c *gin.Context) (uuid.UUID, bool) {
	if v, exists := c.Get(TenantIDKey); exists {
		if id, ok := v.(uuid.UUID); ok {
			return id, true
		}
	}
	return uuid.Nil, false
}

package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/p09nguyen/pntruyen2/internal/models"
	"github.com/p09nguyen/pntruyen2/internal/pkg/jwt"
	"github.com/p09nguyen/pntruyen2/internal/pkg/response"
	sessionpkg "github.com/p09nguyen/pntruyen2/internal/pkg/session"
)

const (
	ContextKeyUserID = "user_id"
	ContextKeySID    = "session_id"
	ContextKeyRole   = "user_role"
)

// Auth returns a middleware that enforces JWT authentication.
func Auth(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, role, err := validateTokenClaims(db, extractToken(c))
		if err != nil {
			response.Unauthorized(c)
			return
		}
		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyRole, role)
		if claims.SessionID != "" {
			c.Set(ContextKeySID, claims.SessionID)
			sessionpkg.Touch(db, claims.SessionID)
		}
		c.Next()
	}
}

// OptionalAuth sets the user ID if a valid token is present, but does not
// block the request.
func OptionalAuth(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, role, err := validateTokenClaims(db, extractToken(c)); err == nil && claims.UserID != 0 {
			c.Set(ContextKeyUserID, claims.UserID)
			c.Set(ContextKeyRole, role)
			if claims.SessionID != "" {
				c.Set(ContextKeySID, claims.SessionID)
				sessionpkg.Touch(db, claims.SessionID)
			}
		}
		c.Next()
	}
}

// RequireAdmin blocks requests whose authenticated user is not an admin.
// Must run after Auth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsAdmin(c) {
			response.Forbidden(c, "Bạn không có quyền thực hiện thao tác này")
			return
		}
		c.Next()
	}
}

// validateTokenClaims validates a JWT, checks its session row is still
// active and the account not deactivated, and returns claims plus role.
func validateTokenClaims(db *gorm.DB, rawToken string) (*jwt.Claims, models.UserRole, error) {
	token := normalizeToken(rawToken)
	if token == "" {
		return nil, "", errors.New("token is required")
	}

	claims, err := jwt.Parse(token)
	if err != nil {
		return nil, "", err
	}
	active, err := sessionpkg.IsActive(db, claims.SessionID)
	if err != nil {
		return nil, "", err
	}
	if !active {
		return nil, "", errors.New("session expired or revoked")
	}

	var user models.UserModel
	if err := db.Select("id", "role", "status").First(&user, claims.UserID).Error; err != nil {
		return nil, "", errors.New("user not found")
	}
	if user.Status != models.UserActive {
		return nil, "", errors.New("account deactivated")
	}
	return claims, user.Role, nil
}

// CurrentUserID extracts the authenticated user ID from context (0 = anonymous).
func CurrentUserID(c *gin.Context) uint {
	v, _ := c.Get(ContextKeyUserID)
	id, _ := v.(uint)
	return id
}

// CurrentSessionID extracts the authenticated session ID from context.
func CurrentSessionID(c *gin.Context) string {
	v, _ := c.Get(ContextKeySID)
	id, _ := v.(string)
	return id
}

// IsAuthenticated returns true if the request has a valid auth token.
func IsAuthenticated(c *gin.Context) bool {
	return CurrentUserID(c) != 0
}

// IsAdmin returns true if the authenticated user has the admin role.
func IsAdmin(c *gin.Context) bool {
	v, _ := c.Get(ContextKeyRole)
	role, _ := v.(models.UserRole)
	return role == models.RoleAdmin
}

func extractToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if auth != "" {
		return normalizeToken(auth)
	}
	return normalizeToken(c.Query("token"))
}

// normalizeToken trims spaces and strips optional Bearer prefix.
func normalizeToken(raw string) string {
	token := strings.TrimSpace(raw)
	if token == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		return strings.TrimSpace(token[7:])
	}
	return token
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/p09nguyen/pntruyen2/internal/models"
	jwtpkg "github.com/p09nguyen/pntruyen2/internal/pkg/jwt"
	sessionpkg "github.com/p09nguyen/pntruyen2/internal/pkg/session"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.UserModel{}, &models.UserSession{}))
	return db
}

func newRouter(db *gorm.DB, requireAdmin bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers := []gin.HandlerFunc{Auth(db)}
	if requireAdmin {
		handlers = append(handlers, RequireAdmin())
	}
	handlers = append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"uid": CurrentUserID(c)})
	})
	r.GET("/protected", handlers...)
	return r
}

func signIn(t *testing.T, db *gorm.DB, role models.UserRole, status models.UserStatus) (models.UserModel, string) {
	t.Helper()
	u := models.UserModel{
		Username: uuid.NewString()[:8],
		Email:    uuid.NewString()[:8] + "@example.com",
		Role:     role,
		Status:   status,
	}
	require.NoError(t, db.Create(&u).Error)

	sid, err := sessionpkg.Issue(db, u.ID, "127.0.0.1", "test")
	require.NoError(t, err)
	token, err := jwtpkg.Sign(u.ID, sid, sessionpkg.DefaultTTL)
	require.NoError(t, err)
	return u, token
}

func doRequest(r *gin.Engine, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthRejectsMissingToken(t *testing.T) {
	db := newTestDB(t)
	w := doRequest(newRouter(db, false), "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthAcceptsValidToken(t *testing.T) {
	db := newTestDB(t)
	_, token := signIn(t, db, models.RoleUser, models.UserActive)
	w := doRequest(newRouter(db, false), token)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestAuthRejectsRevokedSession(t *testing.T) {
	db := newTestDB(t)
	u, token := signIn(t, db, models.RoleUser, models.UserActive)
	require.NoError(t, sessionpkg.RevokeAll(db, u.ID))

	w := doRequest(newRouter(db, false), token)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthRejectsDeactivatedAccount(t *testing.T) {
	db := newTestDB(t)
	u, token := signIn(t, db, models.RoleUser, models.UserActive)
	require.NoError(t, db.Model(&models.UserModel{}).
		Where("id = ?", u.ID).
		Update("status", models.UserInactive).Error)

	w := doRequest(newRouter(db, false), token)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAdminBlocksRegularUser(t *testing.T) {
	db := newTestDB(t)
	_, token := signIn(t, db, models.RoleUser, models.UserActive)
	w := doRequest(newRouter(db, true), token)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireAdminAllowsAdmin(t *testing.T) {
	db := newTestDB(t)
	_, token := signIn(t, db, models.RoleAdmin, models.UserActive)
	w := doRequest(newRouter(db, true), token)
	require.Equal(t, http.StatusOK, w.Code)
}

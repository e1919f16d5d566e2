package auth

import (
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/p09nguyen/pntruyen2/internal/models"
	"github.com/p09nguyen/pntruyen2/internal/pkg/mail"
	sessionpkg "github.com/p09nguyen/pntruyen2/internal/pkg/session"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.UserModel{},
		&models.UserSession{},
		&models.PasswordResetModel{},
	))
	mailer := mail.New(mail.Config{}) // disabled, Send is a no-op
	return NewService(db, zap.NewNop(), mailer, "http://localhost:3000"), db
}

func register(t *testing.T, svc *Service) *models.UserModel {
	t.Helper()
	u, err := svc.Register(&RegisterDTO{
		Username: "reader",
		Email:    "reader@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)
	return u
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newTestService(t)
	register(t, svc)

	token, u, err := svc.Login("reader", "secret123", "127.0.0.1", "test")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.Equal(t, "reader", u.Username)

	// Email works as the login identifier too.
	_, _, err = svc.Login("reader@example.com", "secret123", "127.0.0.1", "test")
	require.NoError(t, err)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	svc, _ := newTestService(t)
	register(t, svc)

	_, err := svc.Register(&RegisterDTO{
		Username: "reader",
		Email:    "other@example.com",
		Password: "secret123",
	})
	require.ErrorIs(t, err, errDuplicateUser)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := newTestService(t)
	register(t, svc)

	_, _, err := svc.Login("reader", "wrong", "127.0.0.1", "test")
	require.ErrorIs(t, err, errBadCredentials)
}

func TestInactiveAccountLoginFailsAndRevokesSessions(t *testing.T) {
	svc, db := newTestService(t)
	u := register(t, svc)

	// Sign in while active, then deactivate.
	_, _, err := svc.Login("reader", "secret123", "127.0.0.1", "test")
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.UserModel{}).
		Where("id = ?", u.ID).
		Update("status", models.UserInactive).Error)

	_, _, err = svc.Login("reader", "secret123", "127.0.0.1", "test")
	require.ErrorIs(t, err, errAccountDisabled)

	var active int64
	db.Model(&models.UserSession{}).
		Where("user_id = ? AND revoked_at IS NULL", u.ID).
		Count(&active)
	require.Zero(t, active)
}

func TestLogoutRevokesSession(t *testing.T) {
	svc, db := newTestService(t)
	u := register(t, svc)

	_, _, err := svc.Login("reader", "secret123", "127.0.0.1", "test")
	require.NoError(t, err)

	var s models.UserSession
	require.NoError(t, db.Where("user_id = ?", u.ID).First(&s).Error)
	require.NoError(t, svc.Logout(s.ID))

	active, err := sessionpkg.IsActive(db, s.ID)
	require.NoError(t, err)
	require.False(t, active)
}

func TestResetPasswordFlow(t *testing.T) {
	svc, db := newTestService(t)
	u := register(t, svc)

	require.NoError(t, svc.ForgotPassword("reader@example.com"))

	var reset models.PasswordResetModel
	require.NoError(t, db.Where("user_id = ?", u.ID).First(&reset).Error)

	require.NoError(t, svc.ResetPassword(reset.Token, "newsecret"))

	_, _, err := svc.Login("reader", "newsecret", "127.0.0.1", "test")
	require.NoError(t, err)
	_, _, err = svc.Login("reader", "secret123", "127.0.0.1", "test")
	require.ErrorIs(t, err, errBadCredentials)

	// Token is single use.
	require.ErrorIs(t, svc.ResetPassword(reset.Token, "again"), errBadResetToken)
}

func TestResetPasswordExpiredToken(t *testing.T) {
	svc, db := newTestService(t)
	u := register(t, svc)

	require.NoError(t, svc.ForgotPassword("reader@example.com"))
	require.NoError(t, db.Model(&models.PasswordResetModel{}).
		Where("user_id = ?", u.ID).
		Update("expires_at", time.Now().Add(-time.Minute)).Error)

	var reset models.PasswordResetModel
	require.NoError(t, db.Where("user_id = ?", u.ID).First(&reset).Error)
	require.ErrorIs(t, svc.ResetPassword(reset.Token, "newsecret"), errBadResetToken)
}

func TestForgotPasswordUnknownEmailSucceeds(t *testing.T) {
	svc, db := newTestService(t)

	require.NoError(t, svc.ForgotPassword("ghost@example.com"))

	var count int64
	db.Model(&models.PasswordResetModel{}).Count(&count)
	require.Zero(t, count)
}

func TestUniqueUsernameSuffixes(t *testing.T) {
	svc, db := newTestService(t)
	require.NoError(t, db.Create(&models.UserModel{
		Username: "nguyen", Email: "a@example.com",
	}).Error)

	got, err := svc.uniqueUsername("nguyen")
	require.NoError(t, err)
	require.Equal(t, "nguyen-1", got)
}

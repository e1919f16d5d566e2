// Package session manages server-side login sessions. Every JWT carries a
// session id; a token is only accepted while its session row is active, so
// logout and account deactivation revoke tokens immediately.
package session

import (
	"time"

	"gorm.io/gorm"

	"github.com/p09nguyen/pntruyen2/internal/models"
)

// DefaultTTL is how long a session stays valid without explicit logout.
const DefaultTTL = 7 * 24 * time.Hour

// Issue creates a new session row for the user and returns its id.
func Issue(db *gorm.DB, userID uint, ip, ua string) (string, error) {
	s := models.UserSession{
		UserID:    userID,
		IP:        ip,
		UA:        ua,
		ExpiresAt: time.Now().Add(DefaultTTL),
	}
	if err := db.Create(&s).Error; err != nil {
		return "", err
	}
	return s.ID, nil
}

// IsActive reports whether the session exists, is not revoked and not expired.
func IsActive(db *gorm.DB, sessionID string) (bool, error) {
	var s models.UserSession
	err := db.Where("id = ?", sessionID).First(&s).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return false, nil
		}
		return false, err
	}
	if s.RevokedAt != nil {
		return false, nil
	}
	if time.Now().After(s.ExpiresAt) {
		return false, nil
	}
	return true, nil
}

// Touch bumps the session's updated_at so idle cleanup can spare it.
func Touch(db *gorm.DB, sessionID string) {
	db.Model(&models.UserSession{}).
		Where("id = ?", sessionID).
		Update("updated_at", time.Now())
}

// Revoke marks a single session as revoked.
func Revoke(db *gorm.DB, sessionID string) error {
	now := time.Now()
	return db.Model(&models.UserSession{}).
		Where("id = ? AND revoked_at IS NULL", sessionID).
		Update("revoked_at", now).Error
}

// RevokeAll revokes every active session of the user. Used when an account
// is deactivated or its password is reset.
func RevokeAll(db *gorm.DB, userID uint) error {
	now := time.Now()
	return db.Model(&models.UserSession{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Update("revoked_at", now).Error
}

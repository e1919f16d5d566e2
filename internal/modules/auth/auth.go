// Package auth implements credential and Google sign-in, the session
// endpoints and the password reset flow. Sessions are JWTs bound to a
// revocable user_sessions row.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/p09nguyen/pntruyen2/internal/middleware"
	"github.com/p09nguyen/pntruyen2/internal/models"
	jwtpkg "github.com/p09nguyen/pntruyen2/internal/pkg/jwt"
	"github.com/p09nguyen/pntruyen2/internal/pkg/mail"
	"github.com/p09nguyen/pntruyen2/internal/pkg/response"
	sessionpkg "github.com/p09nguyen/pntruyen2/internal/pkg/session"
)

const resetTokenTTL = 30 * time.Minute

type LoginDTO struct {
	Username string `json:"username" binding:"required"` // username or email
	Password string `json:"password" binding:"required"`
}

type RegisterDTO struct {
	Username string `json:"username" binding:"required,min=3"`
	Email    string `json:"email"    binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	FullName string `json:"full_name"`
}

type ForgotPasswordDTO struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordDTO struct {
	Token    string `json:"token"    binding:"required"`
	Password string `json:"password" binding:"required,min=6"`
}

var (
	errBadCredentials  = errors.New("bad credentials")
	errAccountDisabled = errors.New("account disabled")
	errDuplicateUser   = errors.New("username or email taken")
	errBadResetToken   = errors.New("invalid or expired reset token")
)

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	mailer *mail.Sender
	webURL string
}

func NewService(db *gorm.DB, log *zap.Logger, mailer *mail.Sender, webURL string) *Service {
	return &Service{db: db, log: log, mailer: mailer, webURL: webURL}
}

// Login checks credentials and issues a session token. An inactive account
// with correct credentials fails with errAccountDisabled and loses every
// existing session.
func (s *Service) Login(identifier, password, ip, ua string) (string, *models.UserModel, error) {
	var u models.UserModel
	err := s.db.
		Where("username = ? OR email = ?", identifier, identifier).
		First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, errBadCredentials
		}
		return "", nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", nil, errBadCredentials
	}
	if u.Status != models.UserActive {
		if err := sessionpkg.RevokeAll(s.db, u.ID); err != nil {
			s.log.Error("revoke sessions of disabled account failed",
				zap.Uint("user_id", u.ID), zap.Error(err))
		}
		return "", nil, errAccountDisabled
	}
	return s.issueToken(&u, ip, ua)
}

func (s *Service) issueToken(u *models.UserModel, ip, ua string) (string, *models.UserModel, error) {
	sid, err := sessionpkg.Issue(s.db, u.ID, ip, ua)
	if err != nil {
		return "", nil, err
	}
	token, err := jwtpkg.Sign(u.ID, sid, sessionpkg.DefaultTTL)
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}

func (s *Service) Register(dto *RegisterDTO) (*models.UserModel, error) {
	var count int64
	err := s.db.Model(&models.UserModel{}).
		Where("username = ? OR email = ?", dto.Username, dto.Email).
		Count(&count).Error
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errDuplicateUser
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(dto.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	fullName := dto.FullName
	if fullName == "" {
		fullName = dto.Username
	}
	u := models.UserModel{
		Username:     dto.Username,
		Email:        dto.Email,
		FullName:     fullName,
		PasswordHash: string(hash),
		Role:         models.RoleUser,
		Status:       models.UserActive,
	}
	return &u, s.db.Create(&u).Error
}

// Logout revokes the current session.
func (s *Service) Logout(sessionID string) error {
	return sessionpkg.Revoke(s.db, sessionID)
}

// CurrentUser loads the signed-in user's profile.
func (s *Service) CurrentUser(userID uint) (*models.UserModel, error) {
	var u models.UserModel
	if err := s.db.First(&u, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// ForgotPassword issues a 30-minute reset token and mails the link. An
// unknown email still succeeds so the endpoint cannot be used to probe for
// accounts.
func (s *Service) ForgotPassword(email string) error {
	var u models.UserModel
	err := s.db.Where("email = ?", email).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return err
	}
	token := hex.EncodeToString(b)

	reset := models.PasswordResetModel{
		UserID:    u.ID,
		Token:     token,
		ExpiresAt: time.Now().Add(resetTokenTTL),
	}
	if err := s.db.Create(&reset).Error; err != nil {
		return err
	}

	link := fmt.Sprintf("%s/reset-password?token=%s", strings.TrimRight(s.webURL, "/"), token)
	if err := s.mailer.Send(mail.Message{
		To:      []string{u.Email},
		Subject: "Đặt lại mật khẩu",
		HTML:    mail.ResetPasswordHTML(link),
	}); err != nil {
		s.log.Error("reset mail failed", zap.Uint("user_id", u.ID), zap.Error(err))
	}
	return nil
}

// ResetPassword consumes a valid token, replaces the hash and revokes every
// session of the user.
func (s *Service) ResetPassword(token, newPassword string) error {
	var reset models.PasswordResetModel
	err := s.db.Where("token = ?", token).First(&reset).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errBadResetToken
		}
		return err
	}
	if time.Now().After(reset.ExpiresAt) {
		return errBadResetToken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.UserModel{}).
			Where("id = ?", reset.UserID).
			Update("password_hash", string(hash)).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", reset.UserID).
			Delete(&models.PasswordResetModel{}).Error; err != nil {
			return err
		}
		return sessionpkg.RevokeAll(tx, reset.UserID)
	})
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, optionalAuthMW gin.HandlerFunc) {
	rg.GET("/auth", optionalAuthMW, h.session)
	rg.POST("/auth", optionalAuthMW, h.dispatch)
	rg.POST("/forgot-password", h.forgotPassword)
	rg.POST("/reset-password", h.resetPassword)
}

// POST /auth?action=login|register|logout
func (h *Handler) dispatch(c *gin.Context) {
	switch c.Query("action") {
	case "login":
		h.login(c)
	case "register":
		h.register(c)
	case "logout":
		h.logout(c)
	default:
		response.BadRequest(c, "Hành động không hợp lệ")
	}
}

func (h *Handler) login(c *gin.Context) {
	var dto LoginDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "Thiếu tên đăng nhập hoặc mật khẩu")
		return
	}

	token, user, err := h.svc.Login(dto.Username, dto.Password, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		switch {
		case errors.Is(err, errBadCredentials):
			response.Unauthorized(c)
		case errors.Is(err, errAccountDisabled):
			response.Forbidden(c, "Tài khoản đã bị vô hiệu hóa")
		default:
			response.InternalError(c)
		}
		return
	}
	response.OKFields(c, gin.H{"token": token, "user": user})
}

func (h *Handler) register(c *gin.Context) {
	var dto RegisterDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "Thông tin đăng ký không hợp lệ")
		return
	}

	u, err := h.svc.Register(&dto)
	if err != nil {
		if errors.Is(err, errDuplicateUser) {
			response.BadRequest(c, "Tên đăng nhập hoặc email đã tồn tại")
			return
		}
		response.InternalError(c)
		return
	}
	response.Created(c, u.ID, "Đăng ký thành công")
}

func (h *Handler) logout(c *gin.Context) {
	if sid := middleware.CurrentSessionID(c); sid != "" {
		if err := h.svc.Logout(sid); err != nil {
			response.InternalError(c)
			return
		}
	}
	response.OKMessage(c, "Đã đăng xuất")
}

// GET /auth: current session user.
func (h *Handler) session(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	if userID == 0 {
		response.Unauthorized(c)
		return
	}

	u, err := h.svc.CurrentUser(userID)
	if err != nil {
		response.InternalError(c)
		return
	}
	if u == nil {
		response.Unauthorized(c)
		return
	}
	response.OKFields(c, gin.H{"user": u})
}

// POST /forgot-password
func (h *Handler) forgotPassword(c *gin.Context) {
	var dto ForgotPasswordDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "Email không hợp lệ")
		return
	}

	if err := h.svc.ForgotPassword(dto.Email); err != nil {
		response.InternalError(c)
		return
	}
	response.OKMessage(c, "Nếu email tồn tại, liên kết đặt lại mật khẩu đã được gửi")
}

// POST /reset-password
func (h *Handler) resetPassword(c *gin.Context) {
	var dto ResetPasswordDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "Thiếu token hoặc mật khẩu mới")
		return
	}

	if err := h.svc.ResetPassword(dto.Token, dto.Password); err != nil {
		if errors.Is(err, errBadResetToken) {
			response.BadRequest(c, "Token không hợp lệ hoặc đã hết hạn")
			return
		}
		response.InternalError(c)
		return
	}
	response.OKMessage(c, "Đã đặt lại mật khẩu")
}

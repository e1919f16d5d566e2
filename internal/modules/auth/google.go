package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/google/uuid"
	"github.com/p09nguyen/pntruyen2/internal/models"
	"github.com/p09nguyen/pntruyen2/internal/pkg/response"
)

const googleTokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"

type GoogleLoginDTO struct {
	Credential string `json:"credential" binding:"required"`
}

// googleTokenInfo is the subset of Google's tokeninfo response we consume.
type googleTokenInfo struct {
	Aud           string `json:"aud"`
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified string `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// GoogleHandler verifies Google ID tokens and signs users in, provisioning
// an account on first login.
type GoogleHandler struct {
	svc      *Service
	clientID string
	client   *http.Client
}

func NewGoogleHandler(svc *Service, clientID string) *GoogleHandler {
	return &GoogleHandler{
		svc:      svc,
		clientID: clientID,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (h *GoogleHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/google-login", h.login)
}

// POST /google-login {credential}
func (h *GoogleHandler) login(c *gin.Context) {
	var dto GoogleLoginDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "Thiếu credential")
		return
	}

	info, err := h.verify(dto.Credential)
	if err != nil {
		response.Unauthorized(c)
		return
	}

	u, err := h.svc.findOrProvisionGoogleUser(info)
	if err != nil {
		h.svc.log.Error("google provision failed", zap.String("email", info.Email), zap.Error(err))
		response.InternalError(c)
		return
	}
	if u.Status != models.UserActive {
		response.Forbidden(c, "Tài khoản đã bị vô hiệu hóa")
		return
	}

	token, user, err := h.svc.issueToken(u, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OKFields(c, gin.H{"token": token, "user": user})
}

// verify resolves the ID token against Google's tokeninfo endpoint and
// checks it was issued for our client.
func (h *GoogleHandler) verify(credential string) (*googleTokenInfo, error) {
	resp, err := h.client.Get(googleTokenInfoURL + "?id_token=" + url.QueryEscape(credential))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tokeninfo status %d", resp.StatusCode)
	}

	var info googleTokenInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, err
	}
	if h.clientID != "" && info.Aud != h.clientID {
		return nil, errors.New("token audience mismatch")
	}
	if info.Email == "" || info.EmailVerified != "true" {
		return nil, errors.New("email not verified")
	}
	return &info, nil
}

// findOrProvisionGoogleUser returns the account matching the verified email,
// creating one with a uniqued username and a random password when missing.
func (s *Service) findOrProvisionGoogleUser(info *googleTokenInfo) (*models.UserModel, error) {
	var u models.UserModel
	err := s.db.Where("email = ?", info.Email).First(&u).Error
	if err == nil {
		return &u, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	username, err := s.uniqueUsername(strings.Split(info.Email, "@")[0])
	if err != nil {
		return nil, err
	}

	// Google accounts never log in by password; store an unguessable one.
	hash, err := bcrypt.GenerateFromPassword([]byte(uuid.New().String()), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	fullName := info.Name
	if fullName == "" {
		fullName = username
	}
	u = models.UserModel{
		Username:     username,
		Email:        info.Email,
		FullName:     fullName,
		PasswordHash: string(hash),
		Role:         models.RoleUser,
		Status:       models.UserActive,
		AvatarURL:    info.Picture,
	}
	if err := s.db.Create(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// uniqueUsername appends -1, -2, ... until the candidate is free.
func (s *Service) uniqueUsername(base string) (string, error) {
	base = strings.ToLower(strings.TrimSpace(base))
	if base == "" {
		base = "user"
	}

	candidate := base
	for counter := 1; ; counter++ {
		var count int64
		if err := s.db.Model(&models.UserModel{}).
			Where("username = ?", candidate).
			Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, counter)
	}
}

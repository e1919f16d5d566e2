// Package user is the admin account-management surface plus the self-service
// password change.
package user

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/p09nguyen/pntruyen2/internal/middleware"
	"github.com/p09nguyen/pntruyen2/internal/models"
	"github.com/p09nguyen/pntruyen2/internal/pkg/pagination"
	"github.com/p09nguyen/pntruyen2/internal/pkg/response"
	sessionpkg "github.com/p09nguyen/pntruyen2/internal/pkg/session"
)

type CreateUserDTO struct {
	Username string `json:"username" binding:"required,min=3"`
	Email    string `json:"email"    binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

type UpdateUserDTO struct {
	Email     *string `json:"email"`
	FullName  *string `json:"full_name"`
	Role      *string `json:"role"`
	Status    *string `json:"status"`
	AvatarURL *string `json:"avatar_url"`
}

type ChangePasswordDTO struct {
	Action      string `json:"action"` // "change_password" routes here
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=6"`
}

var (
	errDuplicateUser = errors.New("username or email taken")
	errWrongPassword = errors.New("wrong password")
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewService(db *gorm.DB, log *zap.Logger) *Service {
	return &Service{db: db, log: log}
}

func validRole(r string) bool {
	return r == string(models.RoleUser) || r == string(models.RoleAdmin)
}

func validUserStatus(s string) bool {
	return s == string(models.UserActive) || s == string(models.UserInactive)
}

func (s *Service) List(q pagination.Query, search string) ([]models.UserModel, response.Pagination, error) {
	tx := s.db.Model(&models.UserModel{}).Order("created_at DESC")
	if search != "" {
		like := "%" + search + "%"
		tx = tx.Where("username LIKE ? OR email LIKE ? OR full_name LIKE ?", like, like, like)
	}

	var items []models.UserModel
	pag, err := pagination.Paginate(tx, q, &items)
	return items, pag, err
}

func (s *Service) GetByID(id uint) (*models.UserModel, error) {
	var u models.UserModel
	if err := s.db.First(&u, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (s *Service) Create(dto *CreateUserDTO) (*models.UserModel, error) {
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

	role := models.RoleUser
	if validRole(dto.Role) {
		role = models.UserRole(dto.Role)
	}
	u := models.UserModel{
		Username:     dto.Username,
		Email:        dto.Email,
		FullName:     dto.FullName,
		PasswordHash: string(hash),
		Role:         role,
		Status:       models.UserActive,
	}
	return &u, s.db.Create(&u).Error
}

// Update edits profile/role/status. Deactivating an account revokes its
// sessions so existing tokens stop working at once.
func (s *Service) Update(id uint, dto *UpdateUserDTO) (*models.UserModel, error) {
	u, err := s.GetByID(id)
	if err != nil || u == nil {
		return u, err
	}

	updates := map[string]interface{}{}
	if dto.Email != nil {
		updates["email"] = *dto.Email
	}
	if dto.FullName != nil {
		updates["full_name"] = *dto.FullName
	}
	if dto.Role != nil && validRole(*dto.Role) {
		updates["role"] = *dto.Role
	}
	if dto.Status != nil && validUserStatus(*dto.Status) {
		updates["status"] = *dto.Status
	}
	if dto.AvatarURL != nil {
		updates["avatar_url"] = *dto.AvatarURL
	}
	if err := s.db.Model(u).Updates(updates).Error; err != nil {
		return nil, err
	}

	if dto.Status != nil && models.UserStatus(*dto.Status) == models.UserInactive {
		if err := sessionpkg.RevokeAll(s.db, id); err != nil {
			s.log.Error("revoke sessions on deactivate failed", zap.Uint("user_id", id), zap.Error(err))
		}
	}
	return s.GetByID(id)
}

// Delete removes the account and its personal rows. Comments and feedback
// stay in the moderation history; story data is untouched.
func (s *Service) Delete(id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&models.BookmarkModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.NotificationModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.StoryViewModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.CommentModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.UserSession{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.PasswordResetModel{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.UserModel{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// ChangePassword verifies the old password before storing the new hash.
func (s *Service) ChangePassword(userID uint, oldPassword, newPassword string) error {
	var u models.UserModel
	if err := s.db.First(&u, userID).Error; err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(oldPassword)) != nil {
		return errWrongPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.db.Model(&u).Update("password_hash", string(hash)).Error
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW, adminMW gin.HandlerFunc) {
	g := rg.Group("/users", authMW)
	g.POST("", h.create) // change_password is self-service, the rest admin

	a := g.Group("", adminMW)
	a.GET("", h.list)
	a.PUT("", h.update)
	a.DELETE("", h.delete)
}

// GET /users?search=&page=&limit= | ?id=
func (h *Handler) list(c *gin.Context) {
	if id := parseUintQuery(c, "id"); id != 0 {
		u, err := h.svc.GetByID(id)
		if err != nil {
			response.InternalError(c)
			return
		}
		if u == nil {
			response.NotFound(c, "Không tìm thấy người dùng")
			return
		}
		response.OK(c, u)
		return
	}

	items, pag, err := h.svc.List(pagination.FromContext(c), c.Query("search"))
	if err != nil {
		response.InternalError(c)
		return
	}
	response.Paged(c, items, pag)
}

// POST /users: admin create, or {action:"change_password"} by any
// signed-in user against their own account.
func (h *Handler) create(c *gin.Context) {
	var probe struct {
		Action string `json:"action"`
	}
	if err := c.ShouldBindBodyWithJSON(&probe); err == nil && probe.Action == "change_password" {
		h.changePassword(c)
		return
	}

	if !middleware.IsAdmin(c) {
		response.Forbidden(c, "Bạn không có quyền thực hiện thao tác này")
		return
	}

	var dto CreateUserDTO
	if err := c.ShouldBindBodyWithJSON(&dto); err != nil {
		response.BadRequest(c, "Thông tin người dùng không hợp lệ")
		return
	}

	u, err := h.svc.Create(&dto)
	if err != nil {
		if errors.Is(err, errDuplicateUser) {
			response.BadRequest(c, "Tên đăng nhập hoặc email đã tồn tại")
			return
		}
		response.InternalError(c)
		return
	}
	response.Created(c, u.ID, "Đã thêm người dùng")
}

func (h *Handler) changePassword(c *gin.Context) {
	var dto ChangePasswordDTO
	if err := c.ShouldBindBodyWithJSON(&dto); err != nil {
		response.BadRequest(c, "Thiếu mật khẩu cũ hoặc mới")
		return
	}

	err := h.svc.ChangePassword(middleware.CurrentUserID(c), dto.OldPassword, dto.NewPassword)
	if err != nil {
		if errors.Is(err, errWrongPassword) {
			response.BadRequest(c, "Mật khẩu cũ không đúng")
			return
		}
		response.InternalError(c)
		return
	}
	response.OKMessage(c, "Đã đổi mật khẩu")
}

// PUT /users?id=
func (h *Handler) update(c *gin.Context) {
	id := parseUintQuery(c, "id")
	if id == 0 {
		response.BadRequest(c, "Thiếu id người dùng")
		return
	}

	var dto UpdateUserDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "Yêu cầu không hợp lệ")
		return
	}

	u, err := h.svc.Update(id, &dto)
	if err != nil {
		response.InternalError(c)
		return
	}
	if u == nil {
		response.NotFound(c, "Không tìm thấy người dùng")
		return
	}
	response.OK(c, u)
}

// DELETE /users?id=
func (h *Handler) delete(c *gin.Context) {
	id := parseUintQuery(c, "id")
	if id == 0 {
		response.BadRequest(c, "Thiếu id người dùng")
		return
	}
	if id == middleware.CurrentUserID(c) {
		response.BadRequest(c, "Không thể tự xóa tài khoản đang đăng nhập")
		return
	}

	if err := h.svc.Delete(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "Không tìm thấy người dùng")
			return
		}
		response.InternalError(c)
		return
	}
	response.OKMessage(c, "Đã xóa người dùng")
}

func parseUintQuery(c *gin.Context, name string) uint {
	v, err := strconv.ParseUint(c.Query(name), 10, 32)
	if err != nil {
		return 0
	}
	return uint(v)
}

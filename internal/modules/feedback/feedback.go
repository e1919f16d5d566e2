// Package feedback is the reader suggestion / translation-request queue.
package feedback

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/p09nguyen/pntruyen2/internal/middleware"
	"github.com/p09nguyen/pntruyen2/internal/models"
	"github.com/p09nguyen/pntruyen2/internal/pkg/pagination"
	"github.com/p09nguyen/pntruyen2/internal/pkg/response"
)

type CreateFeedbackDTO struct {
	Type    string `json:"type"    binding:"required"`
	Content string `json:"content" binding:"required"`
}

type UpdateFeedbackDTO struct {
	ID     uint   `json:"id"     binding:"required"`
	Status string `json:"status" binding:"required"`
}

type feedbackResponse struct {
	ID         uint                  `json:"id"`
	UserID     *uint                 `json:"user_id"`
	Type       string                `json:"type"`
	Content    string                `json:"content"`
	Status     models.FeedbackStatus `json:"status"`
	CreatedAt  time.Time             `json:"created_at"`
	ReviewedAt *time.Time            `json:"reviewed_at"`
	Username   *string               `json:"username"`
}

type Service struct{ db *gorm.DB }

func NewService(db *gorm.DB) *Service { return &Service{db: db} }

func validStatus(s string) bool {
	switch models.FeedbackStatus(s) {
	case models.FeedbackPending, models.FeedbackReviewed, models.FeedbackRejected:
		return true
	}
	return false
}

func (s *Service) List(q pagination.Query, status string) ([]feedbackResponse, response.Pagination, error) {
	tx := s.db.Table("user_feedback").
		Select(`user_feedback.id, user_feedback.user_id, user_feedback.type,
			user_feedback.content, user_feedback.status, user_feedback.created_at,
			user_feedback.reviewed_at, users.username`).
		Joins("LEFT JOIN users ON users.id = user_feedback.user_id").
		Order("user_feedback.created_at DESC")
	if status != "" {
		tx = tx.Where("user_feedback.status = ?", status)
	}

	var items []feedbackResponse
	pag, err := pagination.Paginate(tx, q, &items)
	return items, pag, err
}

func (s *Service) Create(userID uint, dto *CreateFeedbackDTO) (*models.UserFeedbackModel, error) {
	f := models.UserFeedbackModel{
		Type:    dto.Type,
		Content: dto.Content,
		Status:  models.FeedbackPending,
	}
	if userID != 0 {
		f.UserID = &userID
	}
	if err := s.db.Create(&f).Error; err != nil {
		return nil, err
	}
	return &f, nil
}

// UpdateStatus moves an entry through the queue and stamps the reviewer.
func (s *Service) UpdateStatus(id, reviewerID uint, status models.FeedbackStatus) error {
	now := time.Now()
	res := s.db.Model(&models.UserFeedbackModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      status,
			"reviewer_id": reviewerID,
			"reviewed_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, optionalAuthMW, authMW, adminMW gin.HandlerFunc) {
	g := rg.Group("/feedback")
	g.POST("", optionalAuthMW, h.create)

	a := g.Group("", authMW, adminMW)
	a.GET("", h.list)
	a.PATCH("", h.updateStatus)
}

// POST /feedback
func (h *Handler) create(c *gin.Context) {
	var dto CreateFeedbackDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "Nội dung góp ý không được để trống")
		return
	}

	f, err := h.svc.Create(middleware.CurrentUserID(c), &dto)
	if err != nil {
		response.InternalError(c)
		return
	}
	response.Created(c, f.ID, "Đã gửi góp ý")
}

// GET /feedback?status=&page=&limit=
func (h *Handler) list(c *gin.Context) {
	status := c.Query("status")
	if status != "" && !validStatus(status) {
		response.BadRequest(c, "Trạng thái không hợp lệ")
		return
	}

	items, pag, err := h.svc.List(pagination.FromContext(c), status)
	if err != nil {
		response.InternalError(c)
		return
	}
	response.Paged(c, items, pag)
}

// PATCH /feedback {id, status}
func (h *Handler) updateStatus(c *gin.Context) {
	var dto UpdateFeedbackDTO
	if err := c.ShouldBindJSON(&dto); err != nil || !validStatus(dto.Status) {
		response.BadRequest(c, "Trạng thái không hợp lệ")
		return
	}

	err := h.svc.UpdateStatus(dto.ID, middleware.CurrentUserID(c), models.FeedbackStatus(dto.Status))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "Không tìm thấy góp ý")
			return
		}
		response.InternalError(c)
		return
	}
	response.OKMessage(c, "Đã cập nhật trạng thái")
}

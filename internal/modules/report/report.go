// Package report is the broken-chapter moderation queue.
package report

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

type CreateReportDTO struct {
	ChapterID     uint   `json:"chapter_id"     binding:"required"`
	ReportContent string `json:"report_content" binding:"required"`
}

type UpdateReportDTO struct {
	ID     uint   `json:"id"     binding:"required"`
	Status string `json:"status" binding:"required"`
}

type reportResponse struct {
	ID            uint                `json:"id"`
	ChapterID     uint                `json:"chapter_id"`
	UserID        *uint               `json:"user_id"`
	ReportContent string              `json:"report_content"`
	Status        models.ReportStatus `json:"status"`
	CreatedAt     time.Time           `json:"created_at"`
	ChapterTitle  string              `json:"chapter_title"`
	ChapterNumber int                 `json:"chapter_number"`
	StoryID       uint                `json:"story_id"`
	StoryTitle    string              `json:"story_title"`
	Username      *string             `json:"username"`
}

type Service struct{ db *gorm.DB }

func NewService(db *gorm.DB) *Service { return &Service{db: db} }

var errChapterNotFound = errors.New("chapter not found")

func validStatus(s string) bool {
	switch models.ReportStatus(s) {
	case models.ReportPending, models.ReportReviewed, models.ReportIgnored:
		return true
	}
	return false
}

func (s *Service) List(q pagination.Query, status string) ([]reportResponse, response.Pagination, error) {
	tx := s.db.Table("chapter_reports").
		Select(`chapter_reports.id, chapter_reports.chapter_id, chapter_reports.user_id,
			chapter_reports.report_content, chapter_reports.status, chapter_reports.created_at,
			chapters.title AS chapter_title, chapters.chapter_number, chapters.story_id,
			stories.title AS story_title, users.username`).
		Joins("JOIN chapters ON chapters.id = chapter_reports.chapter_id").
		Joins("JOIN stories ON stories.id = chapters.story_id").
		Joins("LEFT JOIN users ON users.id = chapter_reports.user_id").
		Order("chapter_reports.created_at DESC")
	if status != "" {
		tx = tx.Where("chapter_reports.status = ?", status)
	}

	var items []reportResponse
	pag, err := pagination.Paginate(tx, q, &items)
	return items, pag, err
}

// Create files a report. userID 0 records an anonymous reporter.
func (s *Service) Create(userID uint, dto *CreateReportDTO) (*models.ChapterReportModel, error) {
	var count int64
	if err := s.db.Model(&models.ChapterModel{}).Where("id = ?", dto.ChapterID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, errChapterNotFound
	}

	r := models.ChapterReportModel{
		ChapterID:     dto.ChapterID,
		ReportContent: dto.ReportContent,
		Status:        models.ReportPending,
	}
	if userID != 0 {
		r.UserID = &userID
	}
	if err := s.db.Create(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Service) UpdateStatus(id uint, status models.ReportStatus) error {
	res := s.db.Model(&models.ChapterReportModel{}).
		Where("id = ?", id).
		Update("status", status)
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
	g := rg.Group("/chapter-reports")
	g.POST("", optionalAuthMW, h.create)

	a := g.Group("", authMW, adminMW)
	a.GET("", h.list)
	a.PATCH("", h.updateStatus)
}

// POST /chapter-reports: anyone may report, signed-in reporters are recorded.
func (h *Handler) create(c *gin.Context) {
	var dto CreateReportDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "Nội dung báo lỗi không được để trống")
		return
	}

	r, err := h.svc.Create(middleware.CurrentUserID(c), &dto)
	if err != nil {
		if errors.Is(err, errChapterNotFound) {
			response.NotFound(c, "Không tìm thấy chương")
			return
		}
		response.InternalError(c)
		return
	}
	response.Created(c, r.ID, "Đã gửi báo lỗi")
}

// GET /chapter-reports?status=&page=&limit=
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

// PATCH /chapter-reports {id, status}
func (h *Handler) updateStatus(c *gin.Context) {
	var dto UpdateReportDTO
	if err := c.ShouldBindJSON(&dto); err != nil || !validStatus(dto.Status) {
		response.BadRequest(c, "Trạng thái không hợp lệ")
		return
	}

	err := h.svc.UpdateStatus(dto.ID, models.ReportStatus(dto.Status))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "Không tìm thấy báo lỗi")
			return
		}
		response.InternalError(c)
		return
	}
	response.OKMessage(c, "Đã cập nhật trạng thái")
}

package comment

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/p09nguyen/pntruyen2/internal/middleware"
	"github.com/p09nguyen/pntruyen2/internal/models"
	"github.com/p09nguyen/pntruyen2/internal/pkg/pagination"
	"github.com/p09nguyen/pntruyen2/internal/pkg/response"
)

type CreateCommentDTO struct {
	ChapterID uint   `json:"chapter_id" binding:"required"`
	Content   string `json:"content"    binding:"required"`
}

// commentResponse carries the joined author/chapter fields the frontend
// renders without asking it to dig into preloaded objects.
type commentResponse struct {
	ID            uint      `json:"id"`
	ChapterID     uint      `json:"chapter_id"`
	UserID        uint      `json:"user_id"`
	Content       string    `json:"content"`
	CreatedAt     time.Time `json:"created_at"`
	Username      string    `json:"username"`
	FullName      string    `json:"full_name"`
	AvatarURL     string    `json:"avatar_url"`
	ChapterTitle  string    `json:"chapter_title,omitempty"`
	ChapterNumber int       `json:"chapter_number,omitempty"`
	StoryID       uint      `json:"story_id,omitempty"`
}

type Service struct{ db *gorm.DB }

func NewService(db *gorm.DB) *Service { return &Service{db: db} }

var errChapterNotFound = errors.New("chapter not found")

func (s *Service) baseQuery() *gorm.DB {
	return s.db.Table("comments").
		Select(`comments.id, comments.chapter_id, comments.user_id, comments.content,
			comments.created_at, users.username, users.full_name, users.avatar_url,
			chapters.title AS chapter_title, chapters.chapter_number, chapters.story_id`).
		Joins("JOIN users ON users.id = comments.user_id").
		Joins("JOIN chapters ON chapters.id = comments.chapter_id").
		Order("comments.created_at DESC")
}

// ListByChapter returns a chapter's comments newest first.
func (s *Service) ListByChapter(chapterID uint) ([]commentResponse, error) {
	var items []commentResponse
	err := s.baseQuery().Where("comments.chapter_id = ?", chapterID).Scan(&items).Error
	return items, err
}

// ListByUser returns everything one user wrote.
func (s *Service) ListByUser(userID uint) ([]commentResponse, error) {
	var items []commentResponse
	err := s.baseQuery().Where("comments.user_id = ?", userID).Scan(&items).Error
	return items, err
}

// ListAll is the admin moderation view, paginated.
func (s *Service) ListAll(q pagination.Query) ([]commentResponse, response.Pagination, error) {
	var items []commentResponse
	pag, err := pagination.Paginate(s.baseQuery(), q, &items)
	return items, pag, err
}

func (s *Service) Create(userID uint, dto *CreateCommentDTO) (*models.CommentModel, error) {
	var count int64
	if err := s.db.Model(&models.ChapterModel{}).Where("id = ?", dto.ChapterID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, errChapterNotFound
	}

	cm := models.CommentModel{
		ChapterID: dto.ChapterID,
		UserID:    userID,
		Content:   dto.Content,
	}
	if err := s.db.Create(&cm).Error; err != nil {
		return nil, err
	}
	return &cm, nil
}

// Delete removes a comment. Owners delete their own; admins delete any.
func (s *Service) Delete(id, userID uint, isAdmin bool) error {
	tx := s.db.Where("id = ?", id)
	if !isAdmin {
		tx = tx.Where("user_id = ?", userID)
	}
	res := tx.Delete(&models.CommentModel{})
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

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, optionalAuthMW, authMW gin.HandlerFunc) {
	g := rg.Group("/comments")
	g.GET("", optionalAuthMW, h.list)

	a := g.Group("", authMW)
	a.POST("", h.create)
	a.DELETE("", h.delete)
}

// GET /comments?chapter_id= | ?user_id= | ?all=1
func (h *Handler) list(c *gin.Context) {
	switch {
	case c.Query("all") == "1":
		if !middleware.IsAdmin(c) {
			response.Forbidden(c, "Chỉ quản trị viên mới xem được toàn bộ bình luận")
			return
		}
		items, pag, err := h.svc.ListAll(pagination.FromContext(c))
		if err != nil {
			response.InternalError(c)
			return
		}
		response.Paged(c, items, pag)

	case c.Query("user_id") != "":
		userID := parseUintQuery(c, "user_id")
		if userID == 0 {
			response.BadRequest(c, "user_id không hợp lệ")
			return
		}
		if userID != middleware.CurrentUserID(c) && !middleware.IsAdmin(c) {
			response.Forbidden(c, "Không thể xem bình luận của người khác")
			return
		}
		items, err := h.svc.ListByUser(userID)
		if err != nil {
			response.InternalError(c)
			return
		}
		response.OK(c, items)

	default:
		chapterID := parseUintQuery(c, "chapter_id")
		if chapterID == 0 {
			response.BadRequest(c, "Thiếu chapter_id")
			return
		}
		items, err := h.svc.ListByChapter(chapterID)
		if err != nil {
			response.InternalError(c)
			return
		}
		response.OK(c, items)
	}
}

// POST /comments
func (h *Handler) create(c *gin.Context) {
	var dto CreateCommentDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "Nội dung bình luận không được để trống")
		return
	}

	cm, err := h.svc.Create(middleware.CurrentUserID(c), &dto)
	if err != nil {
		if errors.Is(err, errChapterNotFound) {
			response.NotFound(c, "Không tìm thấy chương")
			return
		}
		response.InternalError(c)
		return
	}
	response.Created(c, cm.ID, "Đã gửi bình luận")
}

// DELETE /comments?id=
func (h *Handler) delete(c *gin.Context) {
	id := parseUintQuery(c, "id")
	if id == 0 {
		response.BadRequest(c, "Thiếu id bình luận")
		return
	}

	err := h.svc.Delete(id, middleware.CurrentUserID(c), middleware.IsAdmin(c))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "Không tìm thấy bình luận")
			return
		}
		response.InternalError(c)
		return
	}
	response.OKMessage(c, "Đã xóa bình luận")
}

func parseUintQuery(c *gin.Context, name string) uint {
	v, err := strconv.ParseUint(c.Query(name), 10, 32)
	if err != nil {
		return 0
	}
	return uint(v)
}

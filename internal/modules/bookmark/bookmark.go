package bookmark

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/p09nguyen/pntruyen2/internal/middleware"
	"github.com/p09nguyen/pntruyen2/internal/models"
	"github.com/p09nguyen/pntruyen2/internal/pkg/response"
)

type UpsertBookmarkDTO struct {
	StoryID   uint  `json:"story_id" binding:"required"`
	ChapterID *uint `json:"chapter_id"`
}

type Service struct{ db *gorm.DB }

func NewService(db *gorm.DB) *Service { return &Service{db: db} }

var errStoryNotFound = errors.New("story not found")

// List returns the user's bookmarks with story and continue-reading chapter
// preloaded, newest first.
func (s *Service) List(userID uint) ([]models.BookmarkModel, error) {
	var items []models.BookmarkModel
	err := s.db.
		Preload("Story").
		Preload("Chapter").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&items).Error
	return items, err
}

// Upsert creates the (user, story) bookmark or moves its chapter pointer.
// The unique index plus ON CONFLICT makes this atomic; last chapter_id wins.
func (s *Service) Upsert(userID uint, dto *UpsertBookmarkDTO) error {
	var count int64
	if err := s.db.Model(&models.StoryModel{}).Where("id = ?", dto.StoryID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return errStoryNotFound
	}

	b := models.BookmarkModel{
		UserID:    userID,
		StoryID:   dto.StoryID,
		ChapterID: dto.ChapterID,
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "story_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"chapter_id": dto.ChapterID}),
	}).Create(&b).Error
}

// Delete removes the user's bookmark for a story.
func (s *Service) Delete(userID, storyID uint) error {
	res := s.db.
		Where("user_id = ? AND story_id = ?", userID, storyID).
		Delete(&models.BookmarkModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// IsBookmarked reports whether the user follows the story.
func (s *Service) IsBookmarked(userID, storyID uint) (bool, error) {
	var count int64
	err := s.db.Model(&models.BookmarkModel{}).
		Where("user_id = ? AND story_id = ?", userID, storyID).
		Count(&count).Error
	return count > 0, err
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/bookmarks", authMW)
	g.GET("", h.list)
	g.POST("", h.upsert)
	g.DELETE("", h.delete)
}

// GET /bookmarks[?story_id=]: list, or a single followed check.
func (h *Handler) list(c *gin.Context) {
	userID := middleware.CurrentUserID(c)

	if storyID := parseUintQuery(c, "story_id"); storyID != 0 {
		bookmarked, err := h.svc.IsBookmarked(userID, storyID)
		if err != nil {
			response.InternalError(c)
			return
		}
		response.OK(c, gin.H{"bookmarked": bookmarked})
		return
	}

	items, err := h.svc.List(userID)
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OK(c, items)
}

// POST /bookmarks {story_id, chapter_id?}
func (h *Handler) upsert(c *gin.Context) {
	var dto UpsertBookmarkDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "Thiếu story_id")
		return
	}

	if err := h.svc.Upsert(middleware.CurrentUserID(c), &dto); err != nil {
		if errors.Is(err, errStoryNotFound) {
			response.NotFound(c, "Không tìm thấy truyện")
			return
		}
		response.InternalError(c)
		return
	}
	response.OKMessage(c, "Đã lưu truyện")
}

// DELETE /bookmarks?story_id=
func (h *Handler) delete(c *gin.Context) {
	storyID := parseUintQuery(c, "story_id")
	if storyID == 0 {
		response.BadRequest(c, "Thiếu story_id")
		return
	}

	if err := h.svc.Delete(middleware.CurrentUserID(c), storyID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "Không tìm thấy bookmark")
			return
		}
		response.InternalError(c)
		return
	}
	response.OKMessage(c, "Đã bỏ lưu truyện")
}

func parseUintQuery(c *gin.Context, name string) uint {
	v, err := strconv.ParseUint(c.Query(name), 10, 32)
	if err != nil {
		return 0
	}
	return uint(v)
}

// Package featured manages the home page banner carousel.
package featured

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/p09nguyen/pntruyen2/internal/models"
	"github.com/p09nguyen/pntruyen2/internal/pkg/response"
)

type AddFeaturedDTO struct {
	StoryID    uint   `json:"story_id" binding:"required"`
	LargeImage string `json:"large_image"`
}

type MoveFeaturedDTO struct {
	ID        uint   `json:"id"        binding:"required"`
	Direction string `json:"direction" binding:"required"` // "up" | "down"
}

type Service struct{ db *gorm.DB }

func NewService(db *gorm.DB) *Service { return &Service{db: db} }

var (
	errStoryNotFound   = errors.New("story not found")
	errAlreadyFeatured = errors.New("already featured")
)

// List returns banner entries in display order with their stories.
func (s *Service) List() ([]models.FeaturedStoryModel, error) {
	var items []models.FeaturedStoryModel
	err := s.db.
		Preload("Story").
		Order("sort_order ASC, id ASC").
		Find(&items).Error
	return items, err
}

// Add appends a story to the end of the carousel.
func (s *Service) Add(dto *AddFeaturedDTO) (*models.FeaturedStoryModel, error) {
	var count int64
	if err := s.db.Model(&models.StoryModel{}).Where("id = ?", dto.StoryID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, errStoryNotFound
	}
	if err := s.db.Model(&models.FeaturedStoryModel{}).Where("story_id = ?", dto.StoryID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errAlreadyFeatured
	}

	var maxOrder int
	s.db.Model(&models.FeaturedStoryModel{}).
		Select("COALESCE(MAX(sort_order), 0)").
		Scan(&maxOrder)

	f := models.FeaturedStoryModel{
		StoryID:    dto.StoryID,
		SortOrder:  maxOrder + 1,
		LargeImage: dto.LargeImage,
	}
	if err := s.db.Create(&f).Error; err != nil {
		return nil, err
	}
	return &f, nil
}

// Move swaps an entry's sort_order with its neighbor in the given direction.
// Moving the first entry up (or the last down) is a no-op.
func (s *Service) Move(id uint, up bool) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var cur models.FeaturedStoryModel
		if err := tx.First(&cur, id).Error; err != nil {
			return err
		}

		q := tx.Model(&models.FeaturedStoryModel{})
		var neighbor models.FeaturedStoryModel
		var err error
		if up {
			err = q.Where("sort_order < ?", cur.SortOrder).
				Order("sort_order DESC").First(&neighbor).Error
		} else {
			err = q.Where("sort_order > ?", cur.SortOrder).
				Order("sort_order ASC").First(&neighbor).Error
		}
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		if err := tx.Model(&models.FeaturedStoryModel{}).Where("id = ?", cur.ID).
			Update("sort_order", neighbor.SortOrder).Error; err != nil {
			return err
		}
		return tx.Model(&models.FeaturedStoryModel{}).Where("id = ?", neighbor.ID).
			Update("sort_order", cur.SortOrder).Error
	})
}

func (s *Service) Delete(id uint) error {
	res := s.db.Delete(&models.FeaturedStoryModel{}, id)
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

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW, adminMW gin.HandlerFunc) {
	g := rg.Group("/featured-stories")
	g.GET("", h.list)

	a := g.Group("", authMW, adminMW)
	a.POST("", h.upsert)
	a.DELETE("", h.delete)
}

// GET /featured-stories
func (h *Handler) list(c *gin.Context) {
	items, err := h.svc.List()
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OK(c, items)
}

// POST /featured-stories: add, or reorder when body carries a direction.
func (h *Handler) upsert(c *gin.Context) {
	var move MoveFeaturedDTO
	if err := c.ShouldBindBodyWithJSON(&move); err == nil && move.Direction != "" {
		if move.Direction != "up" && move.Direction != "down" {
			response.BadRequest(c, "Hướng di chuyển không hợp lệ")
			return
		}
		if err := h.svc.Move(move.ID, move.Direction == "up"); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				response.NotFound(c, "Không tìm thấy banner")
				return
			}
			response.InternalError(c)
			return
		}
		response.OKMessage(c, "Đã thay đổi thứ tự")
		return
	}

	var dto AddFeaturedDTO
	if err := c.ShouldBindBodyWithJSON(&dto); err != nil {
		response.BadRequest(c, "Thiếu story_id")
		return
	}

	f, err := h.svc.Add(&dto)
	if err != nil {
		switch {
		case errors.Is(err, errStoryNotFound):
			response.NotFound(c, "Không tìm thấy truyện")
		case errors.Is(err, errAlreadyFeatured):
			response.BadRequest(c, "Truyện đã nằm trong banner")
		default:
			response.InternalError(c)
		}
		return
	}
	response.Created(c, f.ID, "Đã thêm banner")
}

// DELETE /featured-stories?id=
func (h *Handler) delete(c *gin.Context) {
	id, err := strconv.ParseUint(c.Query("id"), 10, 32)
	if err != nil || id == 0 {
		response.BadRequest(c, "Thiếu id banner")
		return
	}

	if err := h.svc.Delete(uint(id)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "Không tìm thấy banner")
			return
		}
		response.InternalError(c)
		return
	}
	response.OKMessage(c, "Đã xóa banner")
}

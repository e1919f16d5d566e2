// Package notification implements the new-chapter alert flow: fan-out to
// bookmarkers at publish time, story-grouped unread listing, and per-row
// read-state mutations scoped to the owning user.
package notification

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/p09nguyen/pntruyen2/internal/middleware"
	"github.com/p09nguyen/pntruyen2/internal/models"
	"github.com/p09nguyen/pntruyen2/internal/pkg/response"
)

// listLimit caps how many raw rows feed the grouped listing.
const listLimit = 100

type MarkReadDTO struct {
	ID  uint `json:"id"`
	All bool `json:"all"`
}

// ChapterEntry is one chapter inside a story group. The frontend keys
// entries by chapter id, so that is what `id` carries; the notification
// row id rides along for markRead and delete.
type ChapterEntry struct {
	ID             uint      `json:"id"`
	NotificationID uint      `json:"notification_id"`
	ChapterID      uint      `json:"chapter_id"`
	ChapterTitle   string    `json:"chapter_title"`
	ChapterNumber  int       `json:"chapter_number"`
	Slug           string    `json:"slug"`
	IsRead         bool      `json:"is_read"`
	CreatedAt      time.Time `json:"created_at"`
}

// StoryGroup aggregates a user's notifications for one story.
type StoryGroup struct {
	StoryID         uint           `json:"story_id"`
	StoryTitle      string         `json:"story_title"`
	StorySlug       string         `json:"story_slug"`
	UnreadCount     int            `json:"unread_count"`
	Chapters        []ChapterEntry `json:"chapters"`
	LatestCreatedAt time.Time      `json:"latest_created_at"`
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewService(db *gorm.DB, log *zap.Logger) *Service {
	return &Service{db: db, log: log}
}

// FanOut inserts one unread notification per bookmarker of the story.
// Best-effort: a failed insert is logged and skipped, it never rolls back
// the chapter or the other rows. Zero bookmarkers is a no-op.
func (s *Service) FanOut(storyID, chapterID uint) {
	var userIDs []uint
	err := s.db.Model(&models.BookmarkModel{}).
		Distinct("user_id").
		Where("story_id = ?", storyID).
		Pluck("user_id", &userIDs).Error
	if err != nil {
		s.log.Error("fan-out: list bookmarkers failed",
			zap.Uint("story_id", storyID), zap.Error(err))
		return
	}

	for _, uid := range userIDs {
		n := models.NotificationModel{
			UserID:    uid,
			StoryID:   storyID,
			ChapterID: chapterID,
			IsRead:    false,
		}
		if err := s.db.Create(&n).Error; err != nil {
			s.log.Error("fan-out: insert notification failed",
				zap.Uint("user_id", uid),
				zap.Uint("chapter_id", chapterID),
				zap.Error(err))
		}
	}
}

// notificationRow is the joined shape the grouped listing is built from.
type notificationRow struct {
	ID            uint
	StoryID       uint
	ChapterID     uint
	IsRead        bool
	CreatedAt     time.Time
	StoryTitle    string
	StorySlug     string
	ChapterTitle  string
	ChapterNumber int
	ChapterSlug   string
}

// ListGrouped returns the user's latest notifications grouped by story.
// Rows are fetched newest-first capped at listLimit, grouped by story_id,
// and groups sorted by their newest row.
func (s *Service) ListGrouped(userID uint, unreadOnly bool) ([]StoryGroup, error) {
	tx := s.db.Table("notifications AS n").
		Select(`n.id, n.story_id, n.chapter_id, n.is_read, n.created_at,
			s.title AS story_title, s.slug AS story_slug,
			c.title AS chapter_title, c.chapter_number, c.slug AS chapter_slug`).
		Joins("JOIN stories s ON s.id = n.story_id").
		Joins("JOIN chapters c ON c.id = n.chapter_id").
		Where("n.user_id = ?", userID)
	if unreadOnly {
		tx = tx.Where("n.is_read = ?", false)
	}

	var rows []notificationRow
	if err := tx.Order("n.created_at DESC").Limit(listLimit).Scan(&rows).Error; err != nil {
		return nil, err
	}

	groups := make([]StoryGroup, 0)
	index := make(map[uint]int)
	for _, r := range rows {
		i, ok := index[r.StoryID]
		if !ok {
			groups = append(groups, StoryGroup{
				StoryID:         r.StoryID,
				StoryTitle:      r.StoryTitle,
				StorySlug:       r.StorySlug,
				LatestCreatedAt: r.CreatedAt,
			})
			i = len(groups) - 1
			index[r.StoryID] = i
		}

		g := &groups[i]
		g.Chapters = append(g.Chapters, ChapterEntry{
			ID:             r.ChapterID,
			NotificationID: r.ID,
			ChapterID:      r.ChapterID,
			ChapterTitle:   r.ChapterTitle,
			ChapterNumber:  r.ChapterNumber,
			Slug:           r.ChapterSlug,
			IsRead:         r.IsRead,
			CreatedAt:      r.CreatedAt,
		})
		if !r.IsRead {
			g.UnreadCount++
		}
		if r.CreatedAt.After(g.LatestCreatedAt) {
			g.LatestCreatedAt = r.CreatedAt
		}
	}

	// Input rows are newest-first, so groups already sit in
	// latest_created_at descending order.
	return groups, nil
}

// MarkRead flips one row to read. The user filter makes a cross-user id a
// silent no-op.
func (s *Service) MarkRead(userID, id uint) error {
	return s.db.Model(&models.NotificationModel{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_read", true).Error
}

// MarkAllRead flips every unread row of the user.
func (s *Service) MarkAllRead(userID uint) error {
	return s.db.Model(&models.NotificationModel{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true).Error
}

// Delete removes one row, scoped to the owner.
func (s *Service) Delete(userID, id uint) error {
	return s.db.
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.NotificationModel{}).Error
}

// UnreadCount returns the user's total unread rows.
func (s *Service) UnreadCount(userID uint) (int64, error) {
	var count int64
	err := s.db.Model(&models.NotificationModel{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/notifications", authMW)
	g.GET("", h.list)
	g.POST("", h.markRead)
	g.DELETE("", h.delete)
}

// GET /notifications[?unread=1]
func (h *Handler) list(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	groups, err := h.svc.ListGrouped(userID, c.Query("unread") == "1")
	if err != nil {
		response.InternalError(c)
		return
	}

	unread, err := h.svc.UnreadCount(userID)
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OKFields(c, gin.H{"data": groups, "unread_count": unread})
}

// POST /notifications {id} | {all:true}
func (h *Handler) markRead(c *gin.Context) {
	var dto MarkReadDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "Yêu cầu không hợp lệ")
		return
	}

	userID := middleware.CurrentUserID(c)
	if dto.All {
		if err := h.svc.MarkAllRead(userID); err != nil {
			response.InternalError(c)
			return
		}
		response.OKMessage(c, "Đã đánh dấu tất cả là đã đọc")
		return
	}

	if dto.ID == 0 {
		response.BadRequest(c, "Thiếu id thông báo")
		return
	}
	if err := h.svc.MarkRead(userID, dto.ID); err != nil {
		response.InternalError(c)
		return
	}
	response.OKMessage(c, "Đã đánh dấu là đã đọc")
}

// DELETE /notifications?id=
func (h *Handler) delete(c *gin.Context) {
	id, err := strconv.ParseUint(c.Query("id"), 10, 32)
	if err != nil || id == 0 {
		response.BadRequest(c, "Thiếu id thông báo")
		return
	}

	if err := h.svc.Delete(middleware.CurrentUserID(c), uint(id)); err != nil {
		response.InternalError(c)
		return
	}
	response.OKMessage(c, "Đã xóa thông báo")
}

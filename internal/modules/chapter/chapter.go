// Package chapter implements chapter CRUD plus the two read-path side
// effects: the unconditional per-read view counter and the once-per-day
// unique story view, and the bookmark fan-out on publish.
package chapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/p09nguyen/pntruyen2/internal/middleware"
	"github.com/p09nguyen/pntruyen2/internal/models"
	"github.com/p09nguyen/pntruyen2/internal/modules/notification"
	"github.com/p09nguyen/pntruyen2/internal/pkg/pagination"
	redispkg "github.com/p09nguyen/pntruyen2/internal/pkg/redis"
	"github.com/p09nguyen/pntruyen2/internal/pkg/response"
	"github.com/p09nguyen/pntruyen2/internal/pkg/slug"
)

// CreateChapterDTO is validated field-by-field rather than with binding
// tags: in a bulk body one bad element must not fail the whole decode.
type CreateChapterDTO struct {
	StoryID       uint   `json:"story_id"`
	Title         string `json:"title"`
	Content       string `json:"content"`
	ChapterNumber int    `json:"chapter_number"`
}

type UpdateChapterDTO struct {
	Title         *string `json:"title"`
	Content       *string `json:"content"`
	ChapterNumber *int    `json:"chapter_number"`
}

// BulkItemResult reports one entry of a bulk create.
type BulkItemResult struct {
	ChapterNumber int    `json:"chapter_number"`
	Success       bool   `json:"success"`
	ID            uint   `json:"id,omitempty"`
	Error         string `json:"error,omitempty"`
}

// chapterNav is the prev/next pointer pair on the single-chapter payload.
type chapterNav struct {
	ID            uint   `json:"id"`
	Title         string `json:"title"`
	Slug          string `json:"slug"`
	ChapterNumber int    `json:"chapter_number"`
}

type chapterDetail struct {
	models.ChapterModel
	StoryTitle string      `json:"story_title"`
	StorySlug  string      `json:"story_slug"`
	Prev       *chapterNav `json:"prev"`
	Next       *chapterNav `json:"next"`
}

type Service struct {
	db    *gorm.DB
	rdb   *redispkg.Client
	log   *zap.Logger
	notif *notification.Service
}

func NewService(db *gorm.DB, rdb *redispkg.Client, log *zap.Logger, notif *notification.Service) *Service {
	return &Service{db: db, rdb: rdb, log: log, notif: notif}
}

// List returns chapters of a story, lightweight (no content column).
func (s *Service) List(storyID uint, q pagination.Query, sortDesc bool) ([]models.ChapterModel, response.Pagination, error) {
	order := "chapter_number ASC"
	if sortDesc {
		order = "chapter_number DESC"
	}
	tx := s.db.Model(&models.ChapterModel{}).
		Select("id, story_id, title, slug, chapter_number, view_count, created_at, updated_at").
		Where("story_id = ?", storyID).
		Order(order)

	var items []models.ChapterModel
	pag, err := pagination.Paginate(tx, q, &items)
	return items, pag, err
}

// GetByID returns the chapter without side effects, nil when missing.
func (s *Service) GetByID(id uint) (*models.ChapterModel, error) {
	var ch models.ChapterModel
	err := s.db.First(&ch, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &ch, nil
}

// Read resolves a single chapter by id or (story slug, chapter slug),
// applies the view side effects and returns the detail payload with
// prev/next navigation. userID 0 means anonymous.
func (s *Service) Read(ctx context.Context, id uint, storySlug, chapterSlug string, userID uint) (*chapterDetail, error) {
	var ch models.ChapterModel
	var err error
	if id != 0 {
		err = s.db.First(&ch, id).Error
	} else {
		err = s.db.
			Joins("JOIN stories ON stories.id = chapters.story_id").
			Where("stories.slug = ? AND chapters.slug = ?", storySlug, chapterSlug).
			First(&ch).Error
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var story models.StoryModel
	if err := s.db.First(&story, ch.StoryID).Error; err != nil {
		return nil, err
	}

	// Raw counter: every fetch counts, repeat reads included.
	if err := s.db.Model(&models.ChapterModel{}).
		Where("id = ?", ch.ID).
		Update("view_count", gorm.Expr("view_count + 1")).Error; err != nil {
		s.log.Error("view_count increment failed", zap.Uint("chapter_id", ch.ID), zap.Error(err))
	} else {
		ch.ViewCount++
	}
	if err := s.db.Model(&models.StoryModel{}).
		Where("id = ?", story.ID).
		Update("total_views", gorm.Expr("total_views + 1")).Error; err != nil {
		s.log.Error("total_views increment failed", zap.Uint("story_id", story.ID), zap.Error(err))
	}

	if userID != 0 {
		s.recordDailyView(ctx, userID, story.ID)
	}

	detail := &chapterDetail{
		ChapterModel: ch,
		StoryTitle:   story.Title,
		StorySlug:    story.Slug,
	}
	detail.Prev = s.neighbor(ch.StoryID, ch.ChapterNumber, ch.ID, false)
	detail.Next = s.neighbor(ch.StoryID, ch.ChapterNumber, ch.ID, true)
	return detail, nil
}

// recordDailyView stores at most one story view per (user, story, day).
// A Redis SetNX keyed by date short-circuits the common repeat read; the
// unique index plus DO NOTHING upsert is the actual guarantee, so a dead
// Redis only costs the fast path.
func (s *Service) recordDailyView(ctx context.Context, userID, storyID uint) {
	today := time.Now().Format("2006-01-02")

	if s.rdb != nil {
		key := fmt.Sprintf("pnt:story_view:%s:%d:%d", today, userID, storyID)
		set, err := s.rdb.SetNX(ctx, key, 1, 36*time.Hour)
		if err == nil && !set {
			return
		}
	}

	view := models.StoryViewModel{UserID: userID, StoryID: storyID, ViewDate: today}
	err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"}, {Name: "story_id"}, {Name: "view_date"},
		},
		DoNothing: true,
	}).Create(&view).Error
	if err != nil {
		s.log.Error("daily view insert failed",
			zap.Uint("user_id", userID), zap.Uint("story_id", storyID), zap.Error(err))
	}
}

func (s *Service) neighbor(storyID uint, number int, excludeID uint, next bool) *chapterNav {
	tx := s.db.Model(&models.ChapterModel{}).
		Select("id, title, slug, chapter_number").
		Where("story_id = ? AND id <> ?", storyID, excludeID)
	if next {
		tx = tx.Where("chapter_number > ?", number).Order("chapter_number ASC, id ASC")
	} else {
		tx = tx.Where("chapter_number <= ?", number).Order("chapter_number DESC, id DESC")
	}

	var nav chapterNav
	if err := tx.Limit(1).Scan(&nav).Error; err != nil || nav.ID == 0 {
		return nil
	}
	return &nav
}

var errStoryNotFound = errors.New("story not found")

// Create inserts one chapter, bumps the story's updated_at and fans out
// notifications to bookmarkers.
func (s *Service) Create(dto *CreateChapterDTO) (*models.ChapterModel, error) {
	var storyCount int64
	if err := s.db.Model(&models.StoryModel{}).Where("id = ?", dto.StoryID).Count(&storyCount).Error; err != nil {
		return nil, err
	}
	if storyCount == 0 {
		return nil, errStoryNotFound
	}

	chapterSlug, err := slug.UniqueChapter(s.db, dto.StoryID, dto.ChapterNumber, 0)
	if err != nil {
		return nil, err
	}

	ch := models.ChapterModel{
		StoryID:       dto.StoryID,
		Title:         dto.Title,
		Slug:          chapterSlug,
		Content:       dto.Content,
		ChapterNumber: dto.ChapterNumber,
		UpdatedAt:     time.Now(),
	}
	if err := s.db.Create(&ch).Error; err != nil {
		return nil, err
	}

	s.touchStory(dto.StoryID)
	s.notif.FanOut(ch.StoryID, ch.ID)
	return &ch, nil
}

// CreateBulk inserts many chapters, continuing past per-item failures.
func (s *Service) CreateBulk(items []CreateChapterDTO) []BulkItemResult {
	results := make([]BulkItemResult, 0, len(items))
	for i := range items {
		dto := items[i]
		r := BulkItemResult{ChapterNumber: dto.ChapterNumber}
		if dto.StoryID == 0 || dto.Title == "" || dto.ChapterNumber == 0 {
			r.Error = "Thiếu trường bắt buộc"
			results = append(results, r)
			continue
		}

		ch, err := s.Create(&dto)
		if err != nil {
			if errors.Is(err, errStoryNotFound) {
				r.Error = "Không tìm thấy truyện"
			} else {
				s.log.Error("bulk chapter insert failed",
					zap.Int("chapter_number", dto.ChapterNumber), zap.Error(err))
				r.Error = "Không thể thêm chương"
			}
			results = append(results, r)
			continue
		}
		r.Success = true
		r.ID = ch.ID
		results = append(results, r)
	}
	return results
}

// Update edits a chapter; a changed number regenerates the slug.
func (s *Service) Update(id uint, dto *UpdateChapterDTO) (*models.ChapterModel, error) {
	ch, err := s.GetByID(id)
	if err != nil || ch == nil {
		return ch, err
	}

	updates := map[string]interface{}{"updated_at": time.Now()}
	if dto.Title != nil {
		updates["title"] = *dto.Title
	}
	if dto.Content != nil {
		updates["content"] = *dto.Content
	}
	if dto.ChapterNumber != nil && *dto.ChapterNumber != ch.ChapterNumber {
		newSlug, err := slug.UniqueChapter(s.db, ch.StoryID, *dto.ChapterNumber, ch.ID)
		if err != nil {
			return nil, err
		}
		updates["chapter_number"] = *dto.ChapterNumber
		updates["slug"] = newSlug
	}
	if err := s.db.Model(ch).Updates(updates).Error; err != nil {
		return nil, err
	}

	s.touchStory(ch.StoryID)
	return s.GetByID(id)
}

// Delete removes a chapter and its reports.
func (s *Service) Delete(id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("chapter_id = ?", id).Delete(&models.ChapterReportModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("chapter_id = ?", id).Delete(&models.CommentModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("chapter_id = ?", id).Delete(&models.NotificationModel{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.ChapterModel{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (s *Service) touchStory(storyID uint) {
	if err := s.db.Model(&models.StoryModel{}).
		Where("id = ?", storyID).
		Update("updated_at", time.Now()).Error; err != nil {
		s.log.Error("story touch failed", zap.Uint("story_id", storyID), zap.Error(err))
	}
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, optionalAuthMW, authMW, adminMW gin.HandlerFunc) {
	rg.GET("/chapters", optionalAuthMW, h.get)

	a := rg.Group("", authMW, adminMW)
	a.POST("/chapters", h.create)
	a.PUT("/chapters", h.update)
	a.DELETE("/chapters", h.delete)
}

// GET /chapters: single fetch with ?id= or ?slug=&story_slug= (counts a
// view), list with ?story_id=.
func (h *Handler) get(c *gin.Context) {
	id := parseUintQuery(c, "id")
	chapterSlug := c.Query("slug")
	if id != 0 || chapterSlug != "" {
		detail, err := h.svc.Read(c.Request.Context(), id, c.Query("story_slug"), chapterSlug, middleware.CurrentUserID(c))
		if err != nil {
			response.InternalError(c)
			return
		}
		if detail == nil {
			response.NotFound(c, "Không tìm thấy chương")
			return
		}
		response.OK(c, detail)
		return
	}

	storyID := parseUintQuery(c, "story_id")
	if storyID == 0 {
		response.BadRequest(c, "Thiếu story_id")
		return
	}

	q := pagination.FromContextDefault(c, 50)
	items, pag, err := h.svc.List(storyID, q, c.Query("sort") == "desc")
	if err != nil {
		response.InternalError(c)
		return
	}
	response.Paged(c, items, pag)
}

// POST /chapters: single object or array for bulk. The bulk body is
// decoded without binding tags so that an invalid element fails only its
// own BulkItemResult, never the whole batch.
func (h *Handler) create(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		response.BadRequest(c, "Thiếu trường bắt buộc")
		return
	}

	body := bytes.TrimLeft(raw, " \t\r\n")
	if len(body) > 0 && body[0] == '[' {
		var bulk []CreateChapterDTO
		if err := json.Unmarshal(raw, &bulk); err != nil {
			response.BadRequest(c, "Thiếu trường bắt buộc")
			return
		}
		results := h.svc.CreateBulk(bulk)
		added := 0
		for _, r := range results {
			if r.Success {
				added++
			}
		}
		response.OKFields(c, gin.H{
			"results": results,
			"total":   len(results),
			"added":   added,
			"failed":  len(results) - added,
		})
		return
	}

	var dto CreateChapterDTO
	if err := json.Unmarshal(raw, &dto); err != nil ||
		dto.StoryID == 0 || dto.Title == "" || dto.ChapterNumber == 0 {
		response.BadRequest(c, "Thiếu trường bắt buộc")
		return
	}

	ch, err := h.svc.Create(&dto)
	if err != nil {
		if errors.Is(err, errStoryNotFound) {
			response.NotFound(c, "Không tìm thấy truyện")
			return
		}
		response.InternalError(c)
		return
	}
	response.Created(c, ch.ID, "Đã thêm chương")
}

// PUT /chapters?id=
func (h *Handler) update(c *gin.Context) {
	id := parseUintQuery(c, "id")
	if id == 0 {
		response.BadRequest(c, "Thiếu id chương")
		return
	}

	var dto UpdateChapterDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "Yêu cầu không hợp lệ")
		return
	}

	ch, err := h.svc.Update(id, &dto)
	if err != nil {
		response.InternalError(c)
		return
	}
	if ch == nil {
		response.NotFound(c, "Không tìm thấy chương")
		return
	}
	response.OK(c, ch)
}

// DELETE /chapters?id=
func (h *Handler) delete(c *gin.Context) {
	id := parseUintQuery(c, "id")
	if id == 0 {
		response.BadRequest(c, "Thiếu id chương")
		return
	}

	if err := h.svc.Delete(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "Không tìm thấy chương")
			return
		}
		response.InternalError(c)
		return
	}
	response.OKMessage(c, "Đã xóa chương")
}

func parseUintQuery(c *gin.Context, name string) uint {
	v, err := strconv.ParseUint(c.Query(name), 10, 32)
	if err != nil {
		return 0
	}
	return uint(v)
}

// Package stats serves the admin dashboard aggregates.
package stats

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/p09nguyen/pntruyen2/internal/models"
	"github.com/p09nguyen/pntruyen2/internal/pkg/response"
)

const defaultDays = 30

type globalStats struct {
	Stories        int64 `json:"stories"`
	Chapters       int64 `json:"chapters"`
	Users          int64 `json:"users"`
	Comments       int64 `json:"comments"`
	Bookmarks      int64 `json:"bookmarks"`
	PendingReports int64 `json:"pending_reports"`
}

type dayCount struct {
	Day   string `json:"day"`
	Count int64  `json:"count"`
}

type storyViews struct {
	StoryID uint   `json:"story_id"`
	Title   string `json:"title"`
	Slug    string `json:"slug"`
	Views   int64  `json:"views"`
}

type Service struct{ db *gorm.DB }

func NewService(db *gorm.DB) *Service { return &Service{db: db} }

func (s *Service) Global() (*globalStats, error) {
	var g globalStats
	counts := []struct {
		model interface{}
		dest  *int64
	}{
		{&models.StoryModel{}, &g.Stories},
		{&models.ChapterModel{}, &g.Chapters},
		{&models.UserModel{}, &g.Users},
		{&models.CommentModel{}, &g.Comments},
		{&models.BookmarkModel{}, &g.Bookmarks},
	}
	for _, c := range counts {
		if err := s.db.Model(c.model).Count(c.dest).Error; err != nil {
			return nil, err
		}
	}
	err := s.db.Model(&models.ChapterReportModel{}).
		Where("status = ?", models.ReportPending).
		Count(&g.PendingReports).Error
	return &g, err
}

// ChaptersPerDay counts published chapters per calendar day over the window.
func (s *Service) ChaptersPerDay(days int) ([]dayCount, error) {
	since := time.Now().AddDate(0, 0, -days).Format("2006-01-02")
	var rows []dayCount
	err := s.db.Model(&models.ChapterModel{}).
		Select("DATE(created_at) AS day, COUNT(*) AS count").
		Where("created_at >= ?", since).
		Group("DATE(created_at)").
		Order("day ASC").
		Scan(&rows).Error
	return rows, err
}

// ViewsGlobal counts unique daily story views per day over the window.
func (s *Service) ViewsGlobal(days int) ([]dayCount, error) {
	since := time.Now().AddDate(0, 0, -days).Format("2006-01-02")
	var rows []dayCount
	err := s.db.Model(&models.StoryViewModel{}).
		Select("view_date AS day, COUNT(*) AS count").
		Where("view_date >= ?", since).
		Group("view_date").
		Order("day ASC").
		Scan(&rows).Error
	return rows, err
}

// ViewsByStory ranks stories by unique daily views over the window.
func (s *Service) ViewsByStory(days, limit int) ([]storyViews, error) {
	since := time.Now().AddDate(0, 0, -days).Format("2006-01-02")
	var rows []storyViews
	err := s.db.Table("story_views").
		Select("story_views.story_id, stories.title, stories.slug, COUNT(*) AS views").
		Joins("JOIN stories ON stories.id = story_views.story_id").
		Where("story_views.view_date >= ?", since).
		Group("story_views.story_id, stories.title, stories.slug").
		Order("views DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW, adminMW gin.HandlerFunc) {
	rg.GET("/stats", authMW, adminMW, h.get)
}

// GET /stats?action=global|chapters_per_day|views_global|views_by_story
func (h *Handler) get(c *gin.Context) {
	days := intQuery(c, "days", defaultDays)

	switch c.DefaultQuery("action", "global") {
	case "global":
		g, err := h.svc.Global()
		if err != nil {
			response.InternalError(c)
			return
		}
		response.OK(c, g)
	case "chapters_per_day":
		rows, err := h.svc.ChaptersPerDay(days)
		if err != nil {
			response.InternalError(c)
			return
		}
		response.OK(c, rows)
	case "views_global":
		rows, err := h.svc.ViewsGlobal(days)
		if err != nil {
			response.InternalError(c)
			return
		}
		response.OK(c, rows)
	case "views_by_story":
		rows, err := h.svc.ViewsByStory(days, intQuery(c, "limit", 10))
		if err != nil {
			response.InternalError(c)
			return
		}
		response.OK(c, rows)
	default:
		response.BadRequest(c, "Hành động không hợp lệ")
	}
}

func intQuery(c *gin.Context, name string, def int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil || v < 1 {
		return def
	}
	return v
}

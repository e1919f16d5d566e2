package story

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/p09nguyen/pntruyen2/internal/models"
	"github.com/p09nguyen/pntruyen2/internal/pkg/pagination"
	"github.com/p09nguyen/pntruyen2/internal/pkg/response"
	"github.com/p09nguyen/pntruyen2/internal/pkg/slug"
)

// defaultListLimit matches the reading frontend's 12-per-page story grid.
const defaultListLimit = 12

type CreateStoryDTO struct {
	Title       string `json:"title"  binding:"required"`
	Author      string `json:"author" binding:"required"`
	Description string `json:"description"`
	Status      string `json:"status"`
	CategoryIDs []uint `json:"category_ids"`
	CategoryID  *uint  `json:"category_id"`
	CoverImage  string `json:"cover_image"`
	ShowOnHome  *bool  `json:"show_on_home"`
}

type UpdateStoryDTO struct {
	Title       *string `json:"title"`
	Author      *string `json:"author"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	CategoryIDs []uint  `json:"category_ids"`
	CategoryID  *uint   `json:"category_id"`
	CoverImage  *string `json:"cover_image"`
	ShowOnHome  *bool   `json:"show_on_home"`
}

type ListFilter struct {
	CategoryID uint
	Status     string
	Search     string
	ShowOnHome bool
}

// storyResponse is a story plus the derived fields list/detail endpoints add.
type storyResponse struct {
	models.StoryModel
	ChapterCount int64 `json:"chapter_count"`
}

type Service struct{ db *gorm.DB }

func NewService(db *gorm.DB) *Service { return &Service{db: db} }

func validStatus(s string) bool {
	switch models.StoryStatus(s) {
	case models.StoryOngoing, models.StoryCompleted, models.StoryPaused:
		return true
	}
	return false
}

func (s *Service) List(q pagination.Query, f ListFilter) ([]storyResponse, response.Pagination, error) {
	tx := s.db.Model(&models.StoryModel{}).Order("updated_at DESC")
	if f.CategoryID != 0 {
		tx = tx.Where(
			"id IN (SELECT story_model_id FROM story_categories WHERE category_model_id = ?) OR category_id = ?",
			f.CategoryID, f.CategoryID)
	}
	if f.Status != "" {
		tx = tx.Where("status = ?", f.Status)
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		tx = tx.Where("title LIKE ? OR author LIKE ?", like, like)
	}
	if f.ShowOnHome {
		tx = tx.Where("show_on_home = ?", true)
	}

	var items []models.StoryModel
	pag, err := pagination.Paginate(tx.Preload("Categories"), q, &items)
	if err != nil {
		return nil, pag, err
	}
	return s.withChapterCounts(items), pag, nil
}

func (s *Service) withChapterCounts(items []models.StoryModel) []storyResponse {
	out := make([]storyResponse, 0, len(items))
	if len(items) == 0 {
		return out
	}

	ids := make([]uint, 0, len(items))
	for _, st := range items {
		ids = append(ids, st.ID)
	}

	type countRow struct {
		StoryID uint
		Count   int64
	}
	var rows []countRow
	s.db.Model(&models.ChapterModel{}).
		Select("story_id, COUNT(*) AS count").
		Where("story_id IN ?", ids).
		Group("story_id").
		Scan(&rows)
	counts := make(map[uint]int64, len(rows))
	for _, r := range rows {
		counts[r.StoryID] = r.Count
	}

	for _, st := range items {
		out = append(out, storyResponse{StoryModel: st, ChapterCount: counts[st.ID]})
	}
	return out
}

// GetByID returns one story with categories, nil when missing.
func (s *Service) GetByID(id uint) (*models.StoryModel, error) {
	var st models.StoryModel
	err := s.db.Preload("Categories").First(&st, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &st, nil
}

func (s *Service) GetBySlug(storySlug string) (*models.StoryModel, error) {
	var st models.StoryModel
	err := s.db.Preload("Categories").Where("slug = ?", storySlug).First(&st).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &st, nil
}

// ChapterCount returns how many chapters the story has.
func (s *Service) ChapterCount(storyID uint) int64 {
	var count int64
	s.db.Model(&models.ChapterModel{}).Where("story_id = ?", storyID).Count(&count)
	return count
}

func (s *Service) Create(dto *CreateStoryDTO) (*models.StoryModel, error) {
	storySlug, err := slug.UniqueStory(s.db, dto.Title, 0)
	if err != nil {
		return nil, err
	}

	status := models.StoryOngoing
	if dto.Status != "" && validStatus(dto.Status) {
		status = models.StoryStatus(dto.Status)
	}

	st := models.StoryModel{
		Title:       dto.Title,
		Slug:        storySlug,
		Author:      dto.Author,
		Description: dto.Description,
		Status:      status,
		CategoryID:  dto.CategoryID,
		CoverImage:  dto.CoverImage,
		UpdatedAt:   time.Now(),
	}
	if dto.ShowOnHome != nil {
		st.ShowOnHome = *dto.ShowOnHome
	}
	if err := s.db.Create(&st).Error; err != nil {
		return nil, err
	}
	if len(dto.CategoryIDs) > 0 {
		if err := s.replaceCategories(&st, dto.CategoryIDs); err != nil {
			return nil, err
		}
	}
	return &st, nil
}

func (s *Service) Update(id uint, dto *UpdateStoryDTO) (*models.StoryModel, error) {
	st, err := s.GetByID(id)
	if err != nil || st == nil {
		return st, err
	}

	updates := map[string]interface{}{"updated_at": time.Now()}
	if dto.Title != nil && *dto.Title != st.Title {
		newSlug, err := slug.UniqueStory(s.db, *dto.Title, st.ID)
		if err != nil {
			return nil, err
		}
		updates["title"] = *dto.Title
		updates["slug"] = newSlug
	}
	if dto.Author != nil {
		updates["author"] = *dto.Author
	}
	if dto.Description != nil {
		updates["description"] = *dto.Description
	}
	if dto.Status != nil && validStatus(*dto.Status) {
		updates["status"] = *dto.Status
	}
	if dto.CategoryID != nil {
		updates["category_id"] = *dto.CategoryID
	}
	if dto.CoverImage != nil {
		updates["cover_image"] = *dto.CoverImage
	}
	if dto.ShowOnHome != nil {
		updates["show_on_home"] = *dto.ShowOnHome
	}
	if err := s.db.Model(st).Updates(updates).Error; err != nil {
		return nil, err
	}

	if dto.CategoryIDs != nil {
		if err := s.replaceCategories(st, dto.CategoryIDs); err != nil {
			return nil, err
		}
	}
	return s.GetByID(id)
}

func (s *Service) replaceCategories(st *models.StoryModel, ids []uint) error {
	var cats []models.CategoryModel
	if len(ids) > 0 {
		if err := s.db.Where("id IN ?", ids).Find(&cats).Error; err != nil {
			return err
		}
	}
	return s.db.Model(st).Association("Categories").Replace(cats)
}

// Delete removes a story and everything hanging off it: chapters with their
// comments and reports, category links, bookmarks, notifications, view rows
// and featured entries. Hard deletes, wrapped in one transaction.
func (s *Service) Delete(id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var res *gorm.DB

		chapterIDs := tx.Model(&models.ChapterModel{}).Select("id").Where("story_id = ?", id)
		if err := tx.Where("chapter_id IN (?)", chapterIDs).Delete(&models.CommentModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("chapter_id IN (?)", chapterIDs).Delete(&models.ChapterReportModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("story_id = ?", id).Delete(&models.ChapterModel{}).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM story_categories WHERE story_model_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Where("story_id = ?", id).Delete(&models.BookmarkModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("story_id = ?", id).Delete(&models.NotificationModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("story_id = ?", id).Delete(&models.StoryViewModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("story_id = ?", id).Delete(&models.FeaturedStoryModel{}).Error; err != nil {
			return err
		}

		res = tx.Delete(&models.StoryModel{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// ListAllWithChapters returns stories that have at least one chapter,
// ordered by their latest chapter's creation time. Feeds the "all stories"
// index page.
func (s *Service) ListAllWithChapters(q pagination.Query) ([]storyResponse, response.Pagination, error) {
	tx := s.db.Model(&models.StoryModel{}).
		Where("id IN (SELECT DISTINCT story_id FROM chapters)").
		Order("(SELECT MAX(created_at) FROM chapters WHERE chapters.story_id = stories.id) DESC")

	var items []models.StoryModel
	pag, err := pagination.Paginate(tx.Preload("Categories"), q, &items)
	if err != nil {
		return nil, pag, err
	}
	return s.withChapterCounts(items), pag, nil
}

// rankedStory carries a ranking metric alongside the story fields.
type rankedStory struct {
	models.StoryModel
	Metric int64 `json:"metric"`
}

// Popular ranks stories by the sum of their chapters' raw view counters.
// Stories without chapters rank with a zero metric.
func (s *Service) Popular(limit int) ([]rankedStory, error) {
	var items []rankedStory
	err := s.db.Table("stories").
		Select("stories.*, COALESCE(SUM(chapters.view_count), 0) AS metric").
		Joins("LEFT JOIN chapters ON chapters.story_id = stories.id").
		Group("stories.id").
		Order("metric DESC").
		Limit(limit).
		Scan(&items).Error
	return items, err
}

// ViewsStats ranks stories by distinct daily reader visits (story_views
// rows, one per user/story/day).
func (s *Service) ViewsStats(limit int) ([]rankedStory, error) {
	var items []rankedStory
	err := s.db.Table("stories").
		Select("stories.*, COUNT(story_views.id) AS metric").
		Joins("LEFT JOIN story_views ON story_views.story_id = stories.id").
		Group("stories.id").
		Order("metric DESC").
		Limit(limit).
		Scan(&items).Error
	return items, err
}

// TopByTotalViews ranks stories by their own total_views column.
func (s *Service) TopByTotalViews(limit int) ([]models.StoryModel, error) {
	var items []models.StoryModel
	err := s.db.
		Order("total_views DESC").
		Limit(limit).
		Find(&items).Error
	return items, err
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW, adminMW gin.HandlerFunc) {
	rg.GET("/stories", h.get)
	rg.GET("/all-stories", h.listAll)
	rg.GET("/popular-stories", h.popular)
	rg.GET("/story-views-stats", h.viewsStats)
	rg.GET("/top-stories-by-total-views", h.topByTotalViews)

	a := rg.Group("", authMW, adminMW)
	a.POST("/stories", h.create)
	a.PUT("/stories", h.update)
	a.DELETE("/stories", h.delete)
}

// GET /stories: single story when ?id= or ?slug= is present, filtered
// paginated list otherwise.
func (h *Handler) get(c *gin.Context) {
	if c.Query("id") != "" || c.Query("slug") != "" {
		h.getOne(c)
		return
	}

	q := pagination.FromContextDefault(c, defaultListLimit)
	f := ListFilter{
		CategoryID: parseUintQuery(c, "category_id"),
		Status:     c.Query("status"),
		Search:     c.Query("search"),
		ShowOnHome: c.Query("show_on_home") == "1",
	}

	items, pag, err := h.svc.List(q, f)
	if err != nil {
		response.InternalError(c)
		return
	}
	response.Paged(c, items, pag)
}

func (h *Handler) getOne(c *gin.Context) {
	var st *models.StoryModel
	var err error
	if id := parseUintQuery(c, "id"); id != 0 {
		st, err = h.svc.GetByID(id)
	} else {
		st, err = h.svc.GetBySlug(c.Query("slug"))
	}
	if err != nil {
		response.InternalError(c)
		return
	}
	if st == nil {
		response.NotFound(c, "Không tìm thấy truyện")
		return
	}
	response.OK(c, storyResponse{StoryModel: *st, ChapterCount: h.svc.ChapterCount(st.ID)})
}

// POST /stories
func (h *Handler) create(c *gin.Context) {
	var dto CreateStoryDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "Tiêu đề và tác giả không được để trống")
		return
	}

	st, err := h.svc.Create(&dto)
	if err != nil {
		response.InternalError(c)
		return
	}
	response.Created(c, st.ID, "Đã thêm truyện")
}

// PUT /stories?id=
func (h *Handler) update(c *gin.Context) {
	id := parseUintQuery(c, "id")
	if id == 0 {
		response.BadRequest(c, "Thiếu id truyện")
		return
	}

	var dto UpdateStoryDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "Yêu cầu không hợp lệ")
		return
	}

	st, err := h.svc.Update(id, &dto)
	if err != nil {
		response.InternalError(c)
		return
	}
	if st == nil {
		response.NotFound(c, "Không tìm thấy truyện")
		return
	}
	response.OK(c, st)
}

// DELETE /stories?id=
func (h *Handler) delete(c *gin.Context) {
	id := parseUintQuery(c, "id")
	if id == 0 {
		response.BadRequest(c, "Thiếu id truyện")
		return
	}

	if err := h.svc.Delete(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "Không tìm thấy truyện")
			return
		}
		response.InternalError(c)
		return
	}
	response.OKMessage(c, "Đã xóa truyện")
}

// GET /all-stories
func (h *Handler) listAll(c *gin.Context) {
	q := pagination.FromContextDefault(c, defaultListLimit)
	items, pag, err := h.svc.ListAllWithChapters(q)
	if err != nil {
		response.InternalError(c)
		return
	}
	response.Paged(c, items, pag)
}

// GET /popular-stories?limit=
func (h *Handler) popular(c *gin.Context) {
	items, err := h.svc.Popular(limitQuery(c, 10))
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OK(c, items)
}

// GET /story-views-stats?limit=
func (h *Handler) viewsStats(c *gin.Context) {
	items, err := h.svc.ViewsStats(limitQuery(c, 10))
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OK(c, items)
}

// GET /top-stories-by-total-views?limit=
func (h *Handler) topByTotalViews(c *gin.Context) {
	items, err := h.svc.TopByTotalViews(limitQuery(c, 10))
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OK(c, items)
}

func parseUintQuery(c *gin.Context, name string) uint {
	v, err := strconv.ParseUint(c.Query(name), 10, 32)
	if err != nil {
		return 0
	}
	return uint(v)
}

func limitQuery(c *gin.Context, def int) int {
	v, err := strconv.Atoi(c.Query("limit"))
	if err != nil || v < 1 {
		return def
	}
	if v > pagination.MaxLimit {
		return pagination.MaxLimit
	}
	return v
}

package category

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/p09nguyen/pntruyen2/internal/models"
	"github.com/p09nguyen/pntruyen2/internal/pkg/pagination"
	"github.com/p09nguyen/pntruyen2/internal/pkg/response"
	"github.com/p09nguyen/pntruyen2/internal/pkg/slug"
)

type CreateCategoryDTO struct {
	Name string `json:"name" binding:"required"`
}

type Service struct{ db *gorm.DB }

func NewService(db *gorm.DB) *Service { return &Service{db: db} }

var errDuplicateCategory = errors.New("duplicate category")

func (s *Service) List(q pagination.Query) ([]models.CategoryModel, response.Pagination, error) {
	tx := s.db.Model(&models.CategoryModel{}).Order("name ASC")
	var items []models.CategoryModel
	pag, err := pagination.Paginate(tx, q, &items)
	return items, pag, err
}

// ListAll returns every category without pagination, for filter dropdowns.
func (s *Service) ListAll() ([]models.CategoryModel, error) {
	var items []models.CategoryModel
	err := s.db.Order("name ASC").Find(&items).Error
	return items, err
}

func (s *Service) Create(dto *CreateCategoryDTO) (*models.CategoryModel, error) {
	var count int64
	if err := s.db.Model(&models.CategoryModel{}).Where("name = ?", dto.Name).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errDuplicateCategory
	}

	cat := models.CategoryModel{Name: dto.Name, Slug: slug.Make(dto.Name)}
	if err := s.db.Create(&cat).Error; err != nil {
		return nil, err
	}
	return &cat, nil
}

// Delete removes a category and its story links. Stories keep existing; only
// the association rows go.
func (s *Service) Delete(id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM story_categories WHERE category_model_id = ?", id).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.CategoryModel{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW, adminMW gin.HandlerFunc) {
	g := rg.Group("/categories")
	g.GET("", h.list)

	a := g.Group("", authMW, adminMW)
	a.POST("", h.create)
	a.DELETE("", h.delete)
}

// GET /categories[?all=1]
func (h *Handler) list(c *gin.Context) {
	if c.Query("all") == "1" {
		items, err := h.svc.ListAll()
		if err != nil {
			response.InternalError(c)
			return
		}
		response.OK(c, items)
		return
	}

	q := pagination.FromContext(c)
	items, pag, err := h.svc.List(q)
	if err != nil {
		response.InternalError(c)
		return
	}
	response.Paged(c, items, pag)
}

// POST /categories
func (h *Handler) create(c *gin.Context) {
	var dto CreateCategoryDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "Tên thể loại không được để trống")
		return
	}

	cat, err := h.svc.Create(&dto)
	if err != nil {
		if errors.Is(err, errDuplicateCategory) {
			response.BadRequest(c, "Thể loại đã tồn tại")
			return
		}
		response.InternalError(c)
		return
	}
	response.Created(c, cat.ID, "Đã thêm thể loại")
}

// DELETE /categories?id=
func (h *Handler) delete(c *gin.Context) {
	id := parseUintQuery(c, "id")
	if id == 0 {
		response.BadRequest(c, "Thiếu id thể loại")
		return
	}

	if err := h.svc.Delete(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "Không tìm thấy thể loại")
			return
		}
		response.InternalError(c)
		return
	}
	response.OKMessage(c, "Đã xóa thể loại")
}

func parseUintQuery(c *gin.Context, name string) uint {
	v, err := strconv.ParseUint(c.Query(name), 10, 32)
	if err != nil {
		return 0
	}
	return uint(v)
}

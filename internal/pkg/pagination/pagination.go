package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/p09nguyen/pntruyen2/internal/pkg/response"
	"gorm.io/gorm"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

// Query holds parsed pagination parameters.
type Query struct {
	Page  int
	Limit int
}

// FromContext extracts and validates page/limit params from the request.
func FromContext(c *gin.Context) Query {
	return FromContextDefault(c, DefaultLimit)
}

// FromContextDefault is FromContext with a caller-chosen default limit
// (story listings default to 12, the rest to 20).
func FromContextDefault(c *gin.Context, defaultLimit int) Query {
	page := parseIntOr(c.DefaultQuery("page", ""), DefaultPage)
	limit := parseIntOr(c.DefaultQuery("limit", ""), defaultLimit)

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Query{Page: page, Limit: limit}
}

// Paginate applies limit/offset to a GORM query and returns
// {page, limit, total, pages} metadata for the response envelope.
func Paginate[T any](db *gorm.DB, q Query, dest *[]T) (response.Pagination, error) {
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return response.Pagination{}, err
	}

	offset := (q.Page - 1) * q.Limit
	if err := db.Offset(offset).Limit(q.Limit).Find(dest).Error; err != nil {
		return response.Pagination{}, err
	}

	pages := int((total + int64(q.Limit) - 1) / int64(q.Limit))
	return response.Pagination{
		Page:  q.Page,
		Limit: q.Limit,
		Total: total,
		Pages: pages,
	}, nil
}

func parseIntOr(s string, def int) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

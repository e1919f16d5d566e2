package models

import "time"

// StoryStatus is the publication state of a story.
type StoryStatus string

const (
	StoryOngoing   StoryStatus = "ongoing"
	StoryCompleted StoryStatus = "completed"
	StoryPaused    StoryStatus = "paused"
)

// StoryModel is a web novel.
type StoryModel struct {
	Base
	Title       string      `json:"title"        gorm:"not null"`
	Slug        string      `json:"slug"         gorm:"uniqueIndex;not null"`
	Author      string      `json:"author"       gorm:"not null"`
	Description string      `json:"description"  gorm:"type:text"`
	Status      StoryStatus `json:"status"       gorm:"type:varchar(16);default:ongoing;index"`
	// CategoryID is the legacy single-category FK kept alongside the
	// many-to-many story_categories links.
	CategoryID *uint           `json:"category_id"  gorm:"index"`
	Category   *CategoryModel  `json:"category,omitempty"   gorm:"foreignKey:CategoryID"`
	Categories []CategoryModel `json:"categories,omitempty" gorm:"many2many:story_categories"`
	CoverImage string          `json:"cover_image"`
	ShowOnHome bool            `json:"show_on_home" gorm:"default:false"`
	TotalViews int             `json:"total_views"  gorm:"default:0"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func (StoryModel) TableName() string { return "stories" }

// CategoryModel is a story genre.
type CategoryModel struct {
	Base
	Name string `json:"name" gorm:"uniqueIndex;not null"`
	Slug string `json:"slug" gorm:"index;not null"`
}

func (CategoryModel) TableName() string { return "categories" }

// FeaturedStoryModel pins a story onto the home page banner carousel.
type FeaturedStoryModel struct {
	Base
	StoryID    uint        `json:"story_id"    gorm:"uniqueIndex;not null"`
	Story      *StoryModel `json:"story,omitempty" gorm:"foreignKey:StoryID"`
	SortOrder  int         `json:"sort_order"  gorm:"default:0;index"`
	LargeImage string      `json:"large_image"`
}

func (FeaturedStoryModel) TableName() string { return "featured_stories" }

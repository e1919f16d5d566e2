package models

// NotificationModel is one "new chapter" alert for one bookmarker,
// written by the fan-out when a chapter is published.
type NotificationModel struct {
	Base
	UserID    uint `json:"user_id"    gorm:"index;not null"`
	StoryID   uint `json:"story_id"   gorm:"index;not null"`
	ChapterID uint `json:"chapter_id" gorm:"index;not null"`
	IsRead    bool `json:"is_read"    gorm:"default:false;index"`
}

func (NotificationModel) TableName() string { return "notifications" }

// StoryViewModel records at most one view per (user, story, calendar day),
// enforced by the composite unique index rather than application checks.
// ViewDate is a plain "YYYY-MM-DD" string so the index compares dates, not
// timestamps.
type StoryViewModel struct {
	Base
	UserID   uint   `json:"user_id"   gorm:"uniqueIndex:idx_user_story_day;not null"`
	StoryID  uint   `json:"story_id"  gorm:"uniqueIndex:idx_user_story_day;index;not null"`
	ViewDate string `json:"view_date" gorm:"type:varchar(10);uniqueIndex:idx_user_story_day;not null"`
}

func (StoryViewModel) TableName() string { return "story_views" }

package models

import "time"

// ChapterModel is a single chapter of a story. Content is raw text with
// literal newlines; no markup processing happens server side.
type ChapterModel struct {
	Base
	StoryID       uint        `json:"story_id"       gorm:"index;uniqueIndex:idx_story_slug,priority:1;not null"`
	Story         *StoryModel `json:"story,omitempty" gorm:"foreignKey:StoryID"`
	Title         string      `json:"title"          gorm:"not null"`
	Slug          string      `json:"slug"           gorm:"uniqueIndex:idx_story_slug,priority:2;not null"`
	Content       string      `json:"content"        gorm:"type:longtext"`
	ChapterNumber int         `json:"chapter_number" gorm:"index;not null"`
	ViewCount     int         `json:"view_count"     gorm:"default:0"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

func (ChapterModel) TableName() string { return "chapters" }

// ReportStatus is the moderation state of a chapter report.
type ReportStatus string

const (
	ReportPending  ReportStatus = "pending"
	ReportReviewed ReportStatus = "reviewed"
	ReportIgnored  ReportStatus = "ignored"
)

// ChapterReportModel is a reader-submitted "broken chapter" report.
type ChapterReportModel struct {
	Base
	ChapterID     uint         `json:"chapter_id"     gorm:"index;not null"`
	UserID        *uint        `json:"user_id"        gorm:"index"`
	ReportContent string       `json:"report_content" gorm:"type:text;not null"`
	Status        ReportStatus `json:"status"         gorm:"type:varchar(16);default:pending;index"`
}

func (ChapterReportModel) TableName() string { return "chapter_reports" }

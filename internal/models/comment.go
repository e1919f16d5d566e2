package models

import "time"

// CommentModel is a flat (unthreaded) comment on a chapter.
type CommentModel struct {
	Base
	ChapterID uint          `json:"chapter_id" gorm:"index;not null"`
	UserID    uint          `json:"user_id"    gorm:"index;not null"`
	Content   string        `json:"content"    gorm:"type:text;not null"`
	User      *UserModel    `json:"user,omitempty"    gorm:"foreignKey:UserID"`
	Chapter   *ChapterModel `json:"chapter,omitempty" gorm:"foreignKey:ChapterID"`
}

func (CommentModel) TableName() string { return "comments" }

// FeedbackStatus is the moderation state of a feedback entry.
type FeedbackStatus string

const (
	FeedbackPending  FeedbackStatus = "pending"
	FeedbackReviewed FeedbackStatus = "reviewed"
	FeedbackRejected FeedbackStatus = "rejected"
)

// UserFeedbackModel is a suggestion or translation request from a reader.
type UserFeedbackModel struct {
	Base
	UserID     *uint          `json:"user_id"     gorm:"index"`
	Type       string         `json:"type"        gorm:"type:varchar(32);index;not null"`
	Content    string         `json:"content"     gorm:"type:text;not null"`
	Status     FeedbackStatus `json:"status"      gorm:"type:varchar(16);default:pending;index"`
	ReviewerID *uint          `json:"reviewer_id"`
	ReviewedAt *time.Time     `json:"reviewed_at"`
}

func (UserFeedbackModel) TableName() string { return "user_feedback" }

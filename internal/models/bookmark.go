package models

// BookmarkModel marks a story as followed by a user. The composite unique
// index backs the atomic upsert; the optional ChapterID is the user's
// "continue reading" position.
type BookmarkModel struct {
	Base
	UserID    uint          `json:"user_id"    gorm:"uniqueIndex:idx_user_story;not null"`
	StoryID   uint          `json:"story_id"   gorm:"uniqueIndex:idx_user_story;not null"`
	ChapterID *uint         `json:"chapter_id"`
	Story     *StoryModel   `json:"story,omitempty"   gorm:"foreignKey:StoryID"`
	Chapter   *ChapterModel `json:"chapter,omitempty" gorm:"foreignKey:ChapterID"`
}

func (BookmarkModel) TableName() string { return "bookmarks" }

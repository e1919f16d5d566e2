package slug

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/p09nguyen/pntruyen2/internal/models"
	"gorm.io/gorm"
)

// vietnamese maps accented Vietnamese runes to their ASCII base letter.
var vietnamese = map[rune]rune{
	'à': 'a', 'á': 'a', 'ạ': 'a', 'ả': 'a', 'ã': 'a',
	'â': 'a', 'ầ': 'a', 'ấ': 'a', 'ậ': 'a', 'ẩ': 'a', 'ẫ': 'a',
	'ă': 'a', 'ằ': 'a', 'ắ': 'a', 'ặ': 'a', 'ẳ': 'a', 'ẵ': 'a',
	'è': 'e', 'é': 'e', 'ẹ': 'e', 'ẻ': 'e', 'ẽ': 'e',
	'ê': 'e', 'ề': 'e', 'ế': 'e', 'ệ': 'e', 'ể': 'e', 'ễ': 'e',
	'ì': 'i', 'í': 'i', 'ị': 'i', 'ỉ': 'i', 'ĩ': 'i',
	'ò': 'o', 'ó': 'o', 'ọ': 'o', 'ỏ': 'o', 'õ': 'o',
	'ô': 'o', 'ồ': 'o', 'ố': 'o', 'ộ': 'o', 'ổ': 'o', 'ỗ': 'o',
	'ơ': 'o', 'ờ': 'o', 'ớ': 'o', 'ợ': 'o', 'ở': 'o', 'ỡ': 'o',
	'ù': 'u', 'ú': 'u', 'ụ': 'u', 'ủ': 'u', 'ũ': 'u',
	'ư': 'u', 'ừ': 'u', 'ứ': 'u', 'ự': 'u', 'ử': 'u', 'ữ': 'u',
	'ỳ': 'y', 'ý': 'y', 'ỵ': 'y', 'ỷ': 'y', 'ỹ': 'y',
	'đ': 'd',
}

var (
	nonSlugChars = regexp.MustCompile(`[^a-z0-9\s-]`)
	whitespace   = regexp.MustCompile(`[\s-]+`)
)

// Make converts a title into a URL slug: lowercase, Vietnamese diacritics
// folded to ASCII, everything outside [a-z0-9 -] dropped, runs of
// whitespace/hyphens collapsed to a single hyphen.
func Make(text string) string {
	lowered := strings.ToLower(text)

	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		if repl, ok := vietnamese[r]; ok {
			b.WriteRune(repl)
			continue
		}
		b.WriteRune(r)
	}

	s := nonSlugChars.ReplaceAllString(b.String(), "")
	s = whitespace.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// UniqueStory returns a story slug derived from title that collides with no
// existing story. excludeID skips the row being edited (0 = none).
func UniqueStory(db *gorm.DB, title string, excludeID uint) (string, error) {
	base := Make(title)
	candidate := base
	for counter := 1; ; counter++ {
		taken, err := storySlugExists(db, candidate, excludeID)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, counter)
	}
}

// UniqueChapter returns a chapter slug unique within the story. The base is
// always "chuong-<number>"; collisions get a numeric suffix.
func UniqueChapter(db *gorm.DB, storyID uint, chapterNumber int, excludeID uint) (string, error) {
	base := fmt.Sprintf("chuong-%d", chapterNumber)
	candidate := base
	for counter := 1; ; counter++ {
		taken, err := chapterSlugExists(db, storyID, candidate, excludeID)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, counter)
	}
}

func storySlugExists(db *gorm.DB, slug string, excludeID uint) (bool, error) {
	tx := db.Model(&models.StoryModel{}).Where("slug = ?", slug)
	if excludeID != 0 {
		tx = tx.Where("id <> ?", excludeID)
	}
	var count int64
	if err := tx.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func chapterSlugExists(db *gorm.DB, storyID uint, slug string, excludeID uint) (bool, error) {
	tx := db.Model(&models.ChapterModel{}).Where("story_id = ? AND slug = ?", storyID, slug)
	if excludeID != 0 {
		tx = tx.Where("id <> ?", excludeID)
	}
	var count int64
	if err := tx.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

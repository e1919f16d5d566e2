package slug

import (
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/p09nguyen/pntruyen2/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.StoryModel{}, &models.ChapterModel{}))
	return db
}

func TestMake(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Đấu Phá Thương Khung", "dau-pha-thuong-khung"},
		{"Tu Tiên Trở Về", "tu-tien-tro-ve"},
		{"Hello  World", "hello-world"},
		{"--Already - Hyphenated--", "already-hyphenated"},
		{"Số 7 & Kiếm!", "so-7-kiem"},
		{"", ""},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Make(tc.in), "Make(%q)", tc.in)
	}
}

func TestUniqueStorySuffixesCollisions(t *testing.T) {
	db := newTestDB(t)

	first, err := UniqueStory(db, "Test", 0)
	require.NoError(t, err)
	require.Equal(t, "test", first)
	require.NoError(t, db.Create(&models.StoryModel{Title: "Test", Slug: first, Author: "a"}).Error)

	second, err := UniqueStory(db, "Test", 0)
	require.NoError(t, err)
	require.Equal(t, "test-1", second)
	require.NoError(t, db.Create(&models.StoryModel{Title: "Test", Slug: second, Author: "a"}).Error)

	third, err := UniqueStory(db, "Test", 0)
	require.NoError(t, err)
	require.Equal(t, "test-2", third)
}

func TestUniqueStoryExcludesRowBeingEdited(t *testing.T) {
	db := newTestDB(t)

	st := models.StoryModel{Title: "Test", Slug: "test", Author: "a"}
	require.NoError(t, db.Create(&st).Error)

	// Re-deriving its own slug during an edit must not pick up a suffix.
	got, err := UniqueStory(db, "Test", st.ID)
	require.NoError(t, err)
	require.Equal(t, "test", got)
}

func TestUniqueChapterScopedToStory(t *testing.T) {
	db := newTestDB(t)

	a := models.StoryModel{Title: "A", Slug: "a", Author: "x"}
	b := models.StoryModel{Title: "B", Slug: "b", Author: "x"}
	require.NoError(t, db.Create(&a).Error)
	require.NoError(t, db.Create(&b).Error)

	first, err := UniqueChapter(db, a.ID, 1, 0)
	require.NoError(t, err)
	require.Equal(t, "chuong-1", first)
	require.NoError(t, db.Create(&models.ChapterModel{
		StoryID: a.ID, Title: "c1", Slug: first, ChapterNumber: 1,
	}).Error)

	second, err := UniqueChapter(db, a.ID, 1, 0)
	require.NoError(t, err)
	require.Equal(t, "chuong-1-1", second)

	// A different story starts fresh.
	other, err := UniqueChapter(db, b.ID, 1, 0)
	require.NoError(t, err)
	require.Equal(t, "chuong-1", other)
}

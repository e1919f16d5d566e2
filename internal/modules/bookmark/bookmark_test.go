package bookmark

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
	require.NoError(t, db.AutoMigrate(
		&models.StoryModel{},
		&models.ChapterModel{},
		&models.BookmarkModel{},
	))
	return db
}

func seedStory(t *testing.T, db *gorm.DB) models.StoryModel {
	t.Helper()
	st := models.StoryModel{Title: "Truyện", Slug: "truyen", Author: "tg"}
	require.NoError(t, db.Create(&st).Error)
	return st
}

func TestUpsertIsSequentiallyIdempotent(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	st := seedStory(t, db)

	ch1, ch2 := uint(7), uint(8)
	require.NoError(t, svc.Upsert(1, &UpsertBookmarkDTO{StoryID: st.ID, ChapterID: &ch1}))
	require.NoError(t, svc.Upsert(1, &UpsertBookmarkDTO{StoryID: st.ID, ChapterID: &ch2}))

	var rows []models.BookmarkModel
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].ChapterID)
	require.Equal(t, ch2, *rows[0].ChapterID)
}

func TestUpsertRejectsMissingStory(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)

	err := svc.Upsert(1, &UpsertBookmarkDTO{StoryID: 12345})
	require.ErrorIs(t, err, errStoryNotFound)
}

func TestUpsertKeepsPerUserRows(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	st := seedStory(t, db)

	require.NoError(t, svc.Upsert(1, &UpsertBookmarkDTO{StoryID: st.ID}))
	require.NoError(t, svc.Upsert(2, &UpsertBookmarkDTO{StoryID: st.ID}))

	var count int64
	db.Model(&models.BookmarkModel{}).Count(&count)
	require.EqualValues(t, 2, count)
}

func TestDeleteRemovesOnlyOwnBookmark(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	st := seedStory(t, db)

	require.NoError(t, svc.Upsert(1, &UpsertBookmarkDTO{StoryID: st.ID}))

	require.ErrorIs(t, svc.Delete(2, st.ID), gorm.ErrRecordNotFound)

	require.NoError(t, svc.Delete(1, st.ID))
	bookmarked, err := svc.IsBookmarked(1, st.ID)
	require.NoError(t, err)
	require.False(t, bookmarked)
}

package notification

import (
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/p09nguyen/pntruyen2/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.UserModel{},
		&models.StoryModel{},
		&models.ChapterModel{},
		&models.BookmarkModel{},
		&models.NotificationModel{},
	))
	return db
}

func seedStoryWithChapter(t *testing.T, db *gorm.DB) (models.StoryModel, models.ChapterModel) {
	t.Helper()
	st := models.StoryModel{Title: "Truyện", Slug: "truyen", Author: "tg"}
	require.NoError(t, db.Create(&st).Error)
	ch := models.ChapterModel{StoryID: st.ID, Title: "Chương 1", Slug: "chuong-1", ChapterNumber: 1}
	require.NoError(t, db.Create(&ch).Error)
	return st, ch
}

func TestFanOutCreatesOneRowPerBookmarker(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, zap.NewNop())
	st, ch := seedStoryWithChapter(t, db)

	for _, uid := range []uint{10, 11, 12} {
		require.NoError(t, db.Create(&models.BookmarkModel{UserID: uid, StoryID: st.ID}).Error)
	}
	// A bookmark on another story must not receive anything.
	other := models.StoryModel{Title: "Khác", Slug: "khac", Author: "tg"}
	require.NoError(t, db.Create(&other).Error)
	require.NoError(t, db.Create(&models.BookmarkModel{UserID: 99, StoryID: other.ID}).Error)

	svc.FanOut(st.ID, ch.ID)

	var rows []models.NotificationModel
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 3)

	seen := map[uint]bool{}
	for _, r := range rows {
		require.Equal(t, st.ID, r.StoryID)
		require.Equal(t, ch.ID, r.ChapterID)
		require.False(t, r.IsRead)
		seen[r.UserID] = true
	}
	require.Equal(t, map[uint]bool{10: true, 11: true, 12: true}, seen)
}

func TestFanOutWithoutBookmarkersIsNoop(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, zap.NewNop())
	st, ch := seedStoryWithChapter(t, db)

	svc.FanOut(st.ID, ch.ID)

	var count int64
	require.NoError(t, db.Model(&models.NotificationModel{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestMarkReadIsOwnerScoped(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, zap.NewNop())
	st, ch := seedStoryWithChapter(t, db)

	n := models.NotificationModel{UserID: 1, StoryID: st.ID, ChapterID: ch.ID}
	require.NoError(t, db.Create(&n).Error)

	// Another user targeting the row succeeds but changes nothing.
	require.NoError(t, svc.MarkRead(2, n.ID))
	var got models.NotificationModel
	require.NoError(t, db.First(&got, n.ID).Error)
	require.False(t, got.IsRead)

	require.NoError(t, svc.MarkRead(1, n.ID))
	require.NoError(t, db.First(&got, n.ID).Error)
	require.True(t, got.IsRead)
}

func TestMarkAllReadOnlyTouchesCaller(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, zap.NewNop())
	st, ch := seedStoryWithChapter(t, db)

	for _, uid := range []uint{1, 1, 2} {
		require.NoError(t, db.Create(&models.NotificationModel{
			UserID: uid, StoryID: st.ID, ChapterID: ch.ID,
		}).Error)
	}

	require.NoError(t, svc.MarkAllRead(1))

	var unreadMine, unreadOther int64
	db.Model(&models.NotificationModel{}).Where("user_id = 1 AND is_read = ?", false).Count(&unreadMine)
	db.Model(&models.NotificationModel{}).Where("user_id = 2 AND is_read = ?", false).Count(&unreadOther)
	require.Zero(t, unreadMine)
	require.EqualValues(t, 1, unreadOther)
}

func TestListGrouped(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, zap.NewNop())

	stA := models.StoryModel{Title: "A", Slug: "a", Author: "tg"}
	stB := models.StoryModel{Title: "B", Slug: "b", Author: "tg"}
	require.NoError(t, db.Create(&stA).Error)
	require.NoError(t, db.Create(&stB).Error)

	mkChapter := func(st models.StoryModel, n int) models.ChapterModel {
		ch := models.ChapterModel{
			StoryID: st.ID, Title: "c", Slug: uuid.NewString(), ChapterNumber: n,
		}
		require.NoError(t, db.Create(&ch).Error)
		return ch
	}

	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	mkNotif := func(ch models.ChapterModel, st models.StoryModel, read bool, at time.Time) {
		n := models.NotificationModel{UserID: 1, StoryID: st.ID, ChapterID: ch.ID, IsRead: read}
		require.NoError(t, db.Create(&n).Error)
		require.NoError(t, db.Model(&n).Update("created_at", at).Error)
	}

	// Story A: two rows, one unread; its newest row is older than story B's.
	mkNotif(mkChapter(stA, 1), stA, true, base)
	mkNotif(mkChapter(stA, 2), stA, false, base.Add(10*time.Minute))
	// Story B: one unread row, newest overall.
	mkNotif(mkChapter(stB, 1), stB, false, base.Add(20*time.Minute))

	groups, err := svc.ListGrouped(1, false)
	require.NoError(t, err)
	require.Len(t, groups, 2)

	require.Equal(t, stB.ID, groups[0].StoryID)
	require.Equal(t, 1, groups[0].UnreadCount)
	require.Len(t, groups[0].Chapters, 1)

	require.Equal(t, stA.ID, groups[1].StoryID)
	require.Equal(t, 1, groups[1].UnreadCount)
	require.Len(t, groups[1].Chapters, 2)
	require.Equal(t, base.Add(10*time.Minute).Unix(), groups[1].LatestCreatedAt.Unix())
}

func TestListGroupedEntryIDIsChapterID(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, zap.NewNop())
	st, ch := seedStoryWithChapter(t, db)

	// Push the notification id sequence past the chapter id so the two
	// can't coincide by accident.
	for i := 0; i < 5; i++ {
		n := models.NotificationModel{UserID: 2, StoryID: st.ID, ChapterID: ch.ID}
		require.NoError(t, db.Create(&n).Error)
	}
	n := models.NotificationModel{UserID: 1, StoryID: st.ID, ChapterID: ch.ID}
	require.NoError(t, db.Create(&n).Error)
	require.NotEqual(t, ch.ID, n.ID)

	groups, err := svc.ListGrouped(1, false)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Len(t, groups[0].Chapters, 1)

	entry := groups[0].Chapters[0]
	require.Equal(t, ch.ID, entry.ID)
	require.Equal(t, ch.ID, entry.ChapterID)
	require.Equal(t, n.ID, entry.NotificationID)
}

func TestListGroupedUnreadOnly(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, zap.NewNop())
	st, ch := seedStoryWithChapter(t, db)

	require.NoError(t, db.Create(&models.NotificationModel{
		UserID: 1, StoryID: st.ID, ChapterID: ch.ID, IsRead: true,
	}).Error)

	groups, err := svc.ListGrouped(1, true)
	require.NoError(t, err)
	require.Empty(t, groups)
}

func TestDeleteIsOwnerScoped(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, zap.NewNop())
	st, ch := seedStoryWithChapter(t, db)

	n := models.NotificationModel{UserID: 1, StoryID: st.ID, ChapterID: ch.ID}
	require.NoError(t, db.Create(&n).Error)

	require.NoError(t, svc.Delete(2, n.ID))
	var count int64
	db.Model(&models.NotificationModel{}).Count(&count)
	require.EqualValues(t, 1, count)

	require.NoError(t, svc.Delete(1, n.ID))
	db.Model(&models.NotificationModel{}).Count(&count)
	require.Zero(t, count)
}

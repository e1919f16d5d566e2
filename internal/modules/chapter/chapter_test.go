package chapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/p09nguyen/pntruyen2/internal/models"
	"github.com/p09nguyen/pntruyen2/internal/modules/notification"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
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
		&models.StoryViewModel{},
		&models.CommentModel{},
		&models.ChapterReportModel{},
	))
	log := zap.NewNop()
	return NewService(db, nil, log, notification.NewService(db, log)), db
}

func seedStory(t *testing.T, db *gorm.DB) models.StoryModel {
	t.Helper()
	st := models.StoryModel{Title: "Truyện", Slug: "truyen", Author: "tg"}
	require.NoError(t, db.Create(&st).Error)
	return st
}

func TestReadIncrementsViewCountEachFetch(t *testing.T) {
	svc, db := newTestService(t)
	st := seedStory(t, db)

	ch, err := svc.Create(&CreateChapterDTO{StoryID: st.ID, Title: "C1", ChapterNumber: 1})
	require.NoError(t, err)

	d1, err := svc.Read(context.Background(), ch.ID, "", "", 0)
	require.NoError(t, err)
	require.Equal(t, 1, d1.ViewCount)

	d2, err := svc.Read(context.Background(), ch.ID, "", "", 0)
	require.NoError(t, err)
	require.Equal(t, 2, d2.ViewCount)

	var stored models.ChapterModel
	require.NoError(t, db.First(&stored, ch.ID).Error)
	require.Equal(t, 2, stored.ViewCount)
}

func TestReadRecordsOneDailyViewPerUserStory(t *testing.T) {
	svc, db := newTestService(t)
	st := seedStory(t, db)

	ch, err := svc.Create(&CreateChapterDTO{StoryID: st.ID, Title: "C1", ChapterNumber: 1})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := svc.Read(context.Background(), ch.ID, "", "", 42)
		require.NoError(t, err)
	}

	var count int64
	db.Model(&models.StoryViewModel{}).
		Where("user_id = ? AND story_id = ?", 42, st.ID).
		Count(&count)
	require.EqualValues(t, 1, count)
}

func TestReadAnonymousSkipsDailyView(t *testing.T) {
	svc, db := newTestService(t)
	st := seedStory(t, db)

	ch, err := svc.Create(&CreateChapterDTO{StoryID: st.ID, Title: "C1", ChapterNumber: 1})
	require.NoError(t, err)

	_, err = svc.Read(context.Background(), ch.ID, "", "", 0)
	require.NoError(t, err)

	var count int64
	db.Model(&models.StoryViewModel{}).Count(&count)
	require.Zero(t, count)
}

func TestReadBySlugPairResolvesChapter(t *testing.T) {
	svc, db := newTestService(t)
	st := seedStory(t, db)

	_, err := svc.Create(&CreateChapterDTO{StoryID: st.ID, Title: "C1", ChapterNumber: 1})
	require.NoError(t, err)

	detail, err := svc.Read(context.Background(), 0, "truyen", "chuong-1", 0)
	require.NoError(t, err)
	require.NotNil(t, detail)
	require.Equal(t, "truyen", detail.StorySlug)
	require.Equal(t, "Truyện", detail.StoryTitle)
}

func TestReadNavigationPointers(t *testing.T) {
	svc, db := newTestService(t)
	st := seedStory(t, db)

	c1, err := svc.Create(&CreateChapterDTO{StoryID: st.ID, Title: "C1", ChapterNumber: 1})
	require.NoError(t, err)
	c2, err := svc.Create(&CreateChapterDTO{StoryID: st.ID, Title: "C2", ChapterNumber: 2})
	require.NoError(t, err)
	c3, err := svc.Create(&CreateChapterDTO{StoryID: st.ID, Title: "C3", ChapterNumber: 3})
	require.NoError(t, err)

	detail, err := svc.Read(context.Background(), c2.ID, "", "", 0)
	require.NoError(t, err)
	require.NotNil(t, detail.Prev)
	require.Equal(t, c1.ID, detail.Prev.ID)
	require.NotNil(t, detail.Next)
	require.Equal(t, c3.ID, detail.Next.ID)

	first, err := svc.Read(context.Background(), c1.ID, "", "", 0)
	require.NoError(t, err)
	require.Nil(t, first.Prev)
}

func TestCreateFansOutToBookmarkers(t *testing.T) {
	svc, db := newTestService(t)
	st := seedStory(t, db)

	require.NoError(t, db.Create(&models.BookmarkModel{UserID: 5, StoryID: st.ID}).Error)

	ch, err := svc.Create(&CreateChapterDTO{StoryID: st.ID, Title: "C10", ChapterNumber: 10})
	require.NoError(t, err)

	var rows []models.NotificationModel
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	require.Equal(t, uint(5), rows[0].UserID)
	require.Equal(t, ch.ID, rows[0].ChapterID)
}

func TestCreateDuplicateNumberSuffixesSlug(t *testing.T) {
	svc, db := newTestService(t)
	st := seedStory(t, db)

	c1, err := svc.Create(&CreateChapterDTO{StoryID: st.ID, Title: "C1", ChapterNumber: 1})
	require.NoError(t, err)
	require.Equal(t, "chuong-1", c1.Slug)

	c1b, err := svc.Create(&CreateChapterDTO{StoryID: st.ID, Title: "C1 lại", ChapterNumber: 1})
	require.NoError(t, err)
	require.Equal(t, "chuong-1-1", c1b.Slug)
}

func TestCreateBulkReportsPerItemResults(t *testing.T) {
	svc, db := newTestService(t)
	st := seedStory(t, db)

	results := svc.CreateBulk([]CreateChapterDTO{
		{StoryID: st.ID, Title: "C1", ChapterNumber: 1},
		{StoryID: st.ID, Title: "", ChapterNumber: 2}, // missing title
		{StoryID: 9999, Title: "C3", ChapterNumber: 3}, // missing story
		{StoryID: st.ID, Title: "C4", ChapterNumber: 4},
	})
	require.Len(t, results, 4)

	added := 0
	for _, r := range results {
		if r.Success {
			added++
		}
	}
	require.Equal(t, 2, added)
	require.False(t, results[1].Success)
	require.False(t, results[2].Success)

	var count int64
	db.Model(&models.ChapterModel{}).Count(&count)
	require.EqualValues(t, 2, count)
}

// An array body with an invalid element must still come back 200 with that
// element failed, not reject the whole batch with 400.
func TestCreateHandlerBulkKeepsPartialFailures(t *testing.T) {
	svc, db := newTestService(t)
	st := seedStory(t, db)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/chapters", NewHandler(svc).create)

	body := fmt.Sprintf(
		`[{"story_id":%d,"title":"C1","chapter_number":1},{"story_id":%d,"title":"","chapter_number":2}]`,
		st.ID, st.ID)
	req := httptest.NewRequest(http.MethodPost, "/chapters", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool             `json:"success"`
		Results []BulkItemResult `json:"results"`
		Total   int              `json:"total"`
		Added   int              `json:"added"`
		Failed  int              `json:"failed"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.Equal(t, 2, resp.Total)
	require.Equal(t, 1, resp.Added)
	require.Equal(t, 1, resp.Failed)
	require.True(t, resp.Results[0].Success)
	require.False(t, resp.Results[1].Success)

	var count int64
	db.Model(&models.ChapterModel{}).Count(&count)
	require.EqualValues(t, 1, count)
}

func TestUpdateNumberRegeneratesSlug(t *testing.T) {
	svc, _ := newTestService(t)
	db := svc.db
	st := seedStory(t, db)

	ch, err := svc.Create(&CreateChapterDTO{StoryID: st.ID, Title: "C1", ChapterNumber: 1})
	require.NoError(t, err)

	n := 5
	updated, err := svc.Update(ch.ID, &UpdateChapterDTO{ChapterNumber: &n})
	require.NoError(t, err)
	require.Equal(t, 5, updated.ChapterNumber)
	require.Equal(t, "chuong-5", updated.Slug)
}

func TestDeleteCascadesReports(t *testing.T) {
	svc, db := newTestService(t)
	st := seedStory(t, db)

	ch, err := svc.Create(&CreateChapterDTO{StoryID: st.ID, Title: "C1", ChapterNumber: 1})
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.ChapterReportModel{
		ChapterID: ch.ID, ReportContent: "lỗi", Status: models.ReportPending,
	}).Error)

	require.NoError(t, svc.Delete(ch.ID))

	var reports, chapters int64
	db.Model(&models.ChapterReportModel{}).Count(&reports)
	db.Model(&models.ChapterModel{}).Count(&chapters)
	require.Zero(t, reports)
	require.Zero(t, chapters)
}

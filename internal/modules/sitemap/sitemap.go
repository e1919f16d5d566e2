package sitemap

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/p09nguyen/pntruyen2/internal/models"
)

func RegisterRoutes(rg *gin.RouterGroup, db *gorm.DB, webURL string) {
	render := func(c *gin.Context) {
		xml, err := buildSitemap(db, webURL)
		if err != nil {
			c.String(500, "error generating sitemap")
			return
		}
		c.Header("Content-Type", "application/xml; charset=utf-8")
		c.String(200, xml)
	}
	rg.GET("/sitemap.xml", render)
	rg.GET("/sitemap", render)
}

type sitemapURL struct {
	Loc        string
	LastMod    time.Time
	ChangeFreq string
	Priority   float64
}

func buildSitemap(db *gorm.DB, base string) (string, error) {
	var urls []sitemapURL

	urls = append(urls, sitemapURL{
		Loc: base, LastMod: time.Now(),
		ChangeFreq: "daily", Priority: 1.0,
	})

	var stories []models.StoryModel
	if err := db.Select("id, slug, updated_at").Find(&stories).Error; err != nil {
		return "", err
	}
	storySlugs := make(map[uint]string, len(stories))
	for _, st := range stories {
		storySlugs[st.ID] = st.Slug
		urls = append(urls, sitemapURL{
			Loc:        fmt.Sprintf("%s/truyen/%s", base, st.Slug),
			LastMod:    st.UpdatedAt,
			ChangeFreq: "daily",
			Priority:   0.8,
		})
	}

	var chapters []models.ChapterModel
	if err := db.Select("story_id, slug, updated_at").Find(&chapters).Error; err != nil {
		return "", err
	}
	for _, ch := range chapters {
		storySlug, ok := storySlugs[ch.StoryID]
		if !ok {
			continue
		}
		urls = append(urls, sitemapURL{
			Loc:        fmt.Sprintf("%s/truyen/%s/%s", base, storySlug, ch.Slug),
			LastMod:    ch.UpdatedAt,
			ChangeFreq: "monthly",
			Priority:   0.6,
		})
	}

	return renderXML(urls), nil
}

func renderXML(urls []sitemapURL) string {
	xml := `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
`
	for _, u := range urls {
		xml += fmt.Sprintf(`  <url>
    <loc>%s</loc>
    <lastmod>%s</lastmod>
    <changefreq>%s</changefreq>
    <priority>%.1f</priority>
  </url>
`, escapeXML(u.Loc), u.LastMod.Format("2006-01-02"), u.ChangeFreq, u.Priority)
	}
	xml += `</urlset>`
	return xml
}

func escapeXML(s string) string {
	out := ""
	for _, r := range s {
		switch r {
		case '&':
			out += "&amp;"
		case '<':
			out += "&lt;"
		case '>':
			out += "&gt;"
		default:
			out += string(r)
		}
	}
	return out
}

package app

import (
	"github.com/gin-gonic/gin"

	"github.com/p09nguyen/pntruyen2/internal/middleware"
	"github.com/p09nguyen/pntruyen2/internal/modules/auth"
	"github.com/p09nguyen/pntruyen2/internal/modules/bookmark"
	"github.com/p09nguyen/pntruyen2/internal/modules/category"
	"github.com/p09nguyen/pntruyen2/internal/modules/chapter"
	"github.com/p09nguyen/pntruyen2/internal/modules/comment"
	"github.com/p09nguyen/pntruyen2/internal/modules/featured"
	"github.com/p09nguyen/pntruyen2/internal/modules/feedback"
	"github.com/p09nguyen/pntruyen2/internal/modules/notification"
	"github.com/p09nguyen/pntruyen2/internal/modules/report"
	"github.com/p09nguyen/pntruyen2/internal/modules/sitemap"
	"github.com/p09nguyen/pntruyen2/internal/modules/stats"
	"github.com/p09nguyen/pntruyen2/internal/modules/story"
	"github.com/p09nguyen/pntruyen2/internal/modules/user"
	"github.com/p09nguyen/pntruyen2/internal/pkg/mail"
	pkgredis "github.com/p09nguyen/pntruyen2/internal/pkg/redis"
	"github.com/p09nguyen/pntruyen2/internal/pkg/response"
)

func (a *App) registerRoutes(rc *pkgredis.Client) {
	r := a.router
	db := a.db

	authMW := middleware.Auth(db)
	optionalAuthMW := middleware.OptionalAuth(db)
	adminMW := middleware.RequireAdmin()

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c, "Không tìm thấy đường dẫn")
	})
	r.NoMethod(func(c *gin.Context) {
		response.MethodNotAllowed(c)
	})

	// Rate limiting runs on every route (requires Redis).
	r.Use(middleware.RateLimit(rc.Raw()))

	// Root-level endpoints
	root := r.Group("")
	sitemap.RegisterRoutes(root, db, a.cfg.WebURL)

	api := r.Group("/api")

	// Shared services
	mailer := mail.New(a.cfg.Mail)
	notifSvc := notification.NewService(db, a.logger)
	authSvc := auth.NewService(db, a.logger, mailer, a.cfg.WebURL)

	auth.NewHandler(authSvc).RegisterRoutes(api, optionalAuthMW)
	auth.NewGoogleHandler(authSvc, a.cfg.Google.ClientID).RegisterRoutes(api)

	story.NewHandler(story.NewService(db)).RegisterRoutes(api, authMW, adminMW)
	chapter.NewHandler(chapter.NewService(db, rc, a.logger, notifSvc)).
		RegisterRoutes(api, optionalAuthMW, authMW, adminMW)
	category.NewHandler(category.NewService(db)).RegisterRoutes(api, authMW, adminMW)
	bookmark.NewHandler(bookmark.NewService(db)).RegisterRoutes(api, authMW)
	notification.NewHandler(notifSvc).RegisterRoutes(api, authMW)
	comment.NewHandler(comment.NewService(db)).RegisterRoutes(api, optionalAuthMW, authMW)
	report.NewHandler(report.NewService(db)).RegisterRoutes(api, optionalAuthMW, authMW, adminMW)
	feedback.NewHandler(feedback.NewService(db)).RegisterRoutes(api, optionalAuthMW, authMW, adminMW)
	featured.NewHandler(featured.NewService(db)).RegisterRoutes(api, authMW, adminMW)
	user.NewHandler(user.NewService(db, a.logger)).RegisterRoutes(api, authMW, adminMW)
	stats.NewHandler(stats.NewService(db)).RegisterRoutes(api, authMW, adminMW)
}

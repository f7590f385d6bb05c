package handler

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Janhavi187/event-attendance-system/internal/httpmiddleware"
)

func requestID(c *gin.Context) string {
	return httpmiddleware.GetRequestID(c)
}

// NewRouter mounts pages, the JSON API and the operational endpoints.
// limiter may be nil to disable rate limiting of /api.
func NewRouter(h *Handler, limiter httpmiddleware.Limiter) *gin.Engine {
	r := gin.New()
	// ids may contain an escaped '/', match on the raw path and decode params
	r.UseRawPath = true
	r.UnescapePathValues = true
	if err := r.SetTrustedProxies(h.proxyCIDRs()); err != nil {
		h.log.Error("set trusted proxies", "error", err)
	}
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestID())
	r.Use(httpmiddleware.RequestLogger(h.log, "/healthz", "/metrics"))
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", httpmiddleware.RequestIDHeader},
		ExposeHeaders:   []string{"Content-Disposition", httpmiddleware.RequestIDHeader},
		MaxAge:          12 * time.Hour,
	}))
	r.Use(httpmiddleware.SecurityHeaders())
	r.Use(h.metrics.GinMiddleware())

	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(h.metrics.Handler()))

	r.GET("/", h.page("index.html"))
	r.GET("/scanner", h.page("scanner.html"))
	r.GET("/admin", h.page("admin.html"))
	r.GET("/student/:id", h.page("student.html"))

	api := r.Group("/api")
	if limiter != nil {
		api.Use(httpmiddleware.RateLimit(limiter, h.log))
	}
	api.POST("/register", h.Register)
	api.GET("/student/:id", h.Student)
	api.POST("/attendance/:id", h.MarkAttendance)
	api.GET("/students", h.Students)
	api.GET("/export", h.Export)

	return r
}

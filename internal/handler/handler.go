// Package handler exposes the attendance service over HTTP.
package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Janhavi187/event-attendance-system/internal/attendance"
	"github.com/Janhavi187/event-attendance-system/internal/logger"
	"github.com/Janhavi187/event-attendance-system/internal/metrics"
	"github.com/Janhavi187/event-attendance-system/internal/qr"
	"github.com/Janhavi187/event-attendance-system/internal/report"
	"github.com/Janhavi187/event-attendance-system/internal/store"
	"github.com/Janhavi187/event-attendance-system/web"
)

const (
	msgNotFound       = "Not found"
	msgAlreadyMarked  = "Already marked present"
	msgInvalidRequest = "invalid request body"
	msgExportFailed   = "Error exporting"
)

// Archiver queues a printable copy of a freshly issued QR code.
type Archiver interface {
	Enqueue(ctx context.Context, studentID, url string) error
}

// Pinger reports database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators of a Handler. Archive and Redis are optional.
type Deps struct {
	Attendance *attendance.Service
	Exporter   *report.Exporter
	Archive    Archiver
	DB         Pinger
	Redis      *store.Redis
	Metrics    *metrics.Metrics
	Log        *logger.Logger

	// BaseURL overrides the scheme://host derived from each request.
	BaseURL string
	// TrustedProxies may set X-Forwarded-For and X-Forwarded-Proto.
	TrustedProxies []string
}

type Handler struct {
	att      *attendance.Service
	exporter *report.Exporter
	archive  Archiver
	db       Pinger
	redis    *store.Redis
	metrics  *metrics.Metrics
	log      *logger.Logger
	baseURL  string
	proxies  []netip.Prefix
	pages    map[string][]byte
}

// New loads the embedded pages and builds a Handler.
func New(d Deps) (*Handler, error) {
	h := &Handler{
		att:      d.Attendance,
		exporter: d.Exporter,
		archive:  d.Archive,
		db:       d.DB,
		redis:    d.Redis,
		metrics:  d.Metrics,
		log:      d.Log,
		baseURL:  strings.TrimRight(d.BaseURL, "/"),
		pages:    make(map[string][]byte),
	}
	if h.metrics == nil {
		h.metrics = metrics.New()
	}
	if h.log == nil {
		h.log = logger.Nop()
	}
	for _, p := range d.TrustedProxies {
		prefix, err := parseProxy(p)
		if err != nil {
			return nil, err
		}
		h.proxies = append(h.proxies, prefix)
	}
	for _, name := range []string{"index.html", "scanner.html", "admin.html", "student.html"} {
		b, err := web.Page(name)
		if err != nil {
			return nil, fmt.Errorf("load page %s: %w", name, err)
		}
		h.pages[name] = b
	}
	return h, nil
}

type studentJSON struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Email      string  `json:"email"`
	Attendance bool    `json:"attendance"`
	Timestamp  *string `json:"timestamp"`
}

func toJSON(st attendance.Student) studentJSON {
	out := studentJSON{ID: st.ID, Name: st.Name, Email: st.Email, Attendance: st.Attendance}
	if st.Timestamp != nil {
		ts := attendance.FormatTimestamp(*st.Timestamp)
		out.Timestamp = &ts
	}
	return out
}

func fail(c *gin.Context, message string) {
	c.JSON(http.StatusOK, gin.H{"success": false, "message": message})
}

func (h *Handler) page(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", h.pages[name])
	}
}

func parseProxy(s string) (netip.Prefix, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "/") {
		prefix, err := netip.ParsePrefix(s)
		if err != nil {
			return netip.Prefix{}, fmt.Errorf("trusted proxy %q: %w", s, err)
		}
		return prefix.Masked(), nil
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("trusted proxy %q: %w", s, err)
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

func (h *Handler) proxyCIDRs() []string {
	out := make([]string, 0, len(h.proxies))
	for _, p := range h.proxies {
		out = append(out, p.String())
	}
	return out
}

func (h *Handler) fromTrustedProxy(c *gin.Context) bool {
	addr, err := netip.ParseAddr(c.RemoteIP())
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range h.proxies {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// requestBaseURL is the configured public URL, or scheme://host of the
// request. X-Forwarded-Proto only counts when sent by a trusted proxy.
func (h *Handler) requestBaseURL(c *gin.Context) string {
	if h.baseURL != "" {
		return h.baseURL
	}
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" && h.fromTrustedProxy(c) {
		switch p := strings.ToLower(strings.TrimSpace(strings.Split(proto, ",")[0])); p {
		case "http", "https":
			scheme = p
		}
	}
	return scheme + "://" + c.Request.Host
}

type registerRequest struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Register handles POST /api/register.
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.metrics.Registrations.WithLabelValues(metrics.OutcomeError).Inc()
		fail(c, msgInvalidRequest)
		return
	}

	ctx := c.Request.Context()
	base := h.requestBaseURL(c)
	reg, err := h.att.Register(ctx, attendance.RegisterRequest{ID: req.ID, Name: req.Name, Email: req.Email}, base)
	if err != nil {
		h.metrics.Registrations.WithLabelValues(metrics.OutcomeError).Inc()
		h.log.Error("register student", "error", err, "request_id", requestID(c))
		fail(c, err.Error())
		return
	}
	h.metrics.Registrations.WithLabelValues(metrics.OutcomeOK).Inc()

	if h.archive != nil {
		if err := h.archive.Enqueue(ctx, reg.ID, qr.StudentURL(base, reg.ID)); err != nil {
			h.log.Warn("enqueue qr archive", "student_id", reg.ID, "error", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "id": reg.ID, "qrDataUrl": reg.QRDataURL})
}

// Student handles GET /api/student/:id.
func (h *Handler) Student(c *gin.Context) {
	st, err := h.att.Student(c.Request.Context(), c.Param("id"))
	if err != nil {
		if !errors.Is(err, attendance.ErrNotFound) {
			h.log.Error("get student", "error", err, "request_id", requestID(c))
		}
		fail(c, msgNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "student": toJSON(st)})
}

// MarkAttendance handles POST /api/attendance/:id.
func (h *Handler) MarkAttendance(c *gin.Context) {
	at, err := h.att.Mark(c.Request.Context(), c.Param("id"))
	switch {
	case err == nil:
		h.metrics.Marks.WithLabelValues(metrics.OutcomeOK).Inc()
		c.JSON(http.StatusOK, gin.H{"success": true, "timestamp": attendance.FormatTimestamp(at)})
	case errors.Is(err, attendance.ErrNotFound):
		h.metrics.Marks.WithLabelValues(metrics.OutcomeNotFound).Inc()
		fail(c, msgNotFound)
	case errors.Is(err, attendance.ErrAlreadyMarked):
		h.metrics.Marks.WithLabelValues(metrics.OutcomeAlreadyMarked).Inc()
		fail(c, msgAlreadyMarked)
	default:
		h.metrics.Marks.WithLabelValues(metrics.OutcomeError).Inc()
		h.log.Error("mark attendance", "error", err, "request_id", requestID(c))
		fail(c, err.Error())
	}
}

// Students handles GET /api/students.
func (h *Handler) Students(c *gin.Context) {
	list, err := h.att.Students(c.Request.Context())
	if err != nil {
		h.log.Error("list students", "error", err, "request_id", requestID(c))
		fail(c, err.Error())
		return
	}
	out := make([]studentJSON, 0, len(list))
	for _, st := range list {
		out = append(out, toJSON(st))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "students": out})
}

// Export handles GET /api/export.
func (h *Handler) Export(c *gin.Context) {
	b, err := h.exporter.Export(c.Request.Context())
	if err != nil {
		h.metrics.Exports.WithLabelValues(metrics.OutcomeError).Inc()
		h.log.Error("export attendance", "error", err, "request_id", requestID(c))
		c.String(http.StatusInternalServerError, msgExportFailed)
		return
	}
	h.metrics.Exports.WithLabelValues(metrics.OutcomeOK).Inc()
	c.Header("Content-Disposition", "attachment; filename="+report.FileName)
	c.Data(http.StatusOK, report.ContentType, b)
}

// Healthz reports database and, when configured, redis connectivity.
func (h *Handler) Healthz(c *gin.Context) {
	ctx := c.Request.Context()
	dbHealthy := h.db != nil && h.db.Ping(ctx) == nil
	resp := gin.H{"db": dbHealthy, "redis": "disabled"}
	healthy := dbHealthy
	if h.redis.Enabled() {
		redisHealthy := h.redis.Healthy(ctx)
		resp["redis"] = redisHealthy
		healthy = healthy && redisHealthy
	}

	status := http.StatusOK
	resp["status"] = "ok"
	if !healthy {
		status = http.StatusServiceUnavailable
		resp["status"] = "degraded"
	}
	c.JSON(status, resp)
}

package certificates

import (
	"errors"
	"mime"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/balu-16/certificate-place-final/pkg/workflows"
)

type Handler struct {
	service Service
	logger  *zap.Logger
}

func NewHandler(service Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	certs := rg.Group("/certificates")
	{
		certs.GET("", h.ListApproved)
		certs.GET("/pending", h.ListPending)
		certs.POST("/render", h.RenderPayload)
		certs.POST("/decode", h.DecodePayload)
		certs.GET("/:id", h.GetCertificate)
		certs.GET("/:id/download", h.Download)
		certs.GET("/:id/preview", h.Preview)
		certs.GET("/:id/inspect", h.Inspect)
		certs.POST("/:id/request", h.Request)
		certs.PUT("/:id/review", h.Review)
		certs.POST("/:id/archive", h.Archive)
		certs.GET("/:id/archive", h.ArchivedCopy)
		certs.GET("/:id/access-logs", h.AccessLogs)
	}
}

// payloadRequest carries a certificate payload in any of its stored shapes.
type payloadRequest struct {
	Payload any `json:"payload"`
}

func (h *Handler) ListApproved(c *gin.Context) {
	phone := c.Query("phone")
	if phone == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "phone is required"})
		return
	}

	students, err := h.service.ListApproved(c.Request.Context(), phone)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, students)
}

func (h *Handler) ListPending(c *gin.Context) {
	students, err := h.service.ListPending(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, students)
}

func (h *Handler) GetCertificate(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	student, err := h.service.GetCertificate(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"student":         student,
		"has_certificate": student.HasCertificate(),
		"status":          student.Status(),
		"download_name":   student.DownloadFilename(),
	})
}

func (h *Handler) Download(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	artifact, err := h.service.Download(c.Request.Context(), id, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.sendPDF(c, artifact, "attachment", artifact.Filename)
}

// Preview shows the certificate inline. Clients that cannot open it inline
// retry with ?fallback=download and get the same bytes as an attachment.
func (h *Handler) Preview(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	artifact, err := h.service.Preview(c.Request.Context(), id, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}

	if c.Query("fallback") == "download" {
		h.sendPDF(c, artifact, "attachment", PreviewFilename)
		return
	}
	h.sendPDF(c, artifact, "inline", artifact.Filename)
}

func (h *Handler) Inspect(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	report, err := h.service.Inspect(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handler) Request(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req CertificateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	student, err := h.service.Request(c.Request.Context(), id, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, student)
}

func (h *Handler) Review(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Reviewer == "" {
		req.Reviewer = actor(c)
	}

	result, err := h.service.Review(c.Request.Context(), id, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) Archive(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	result, err := h.service.Archive(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *Handler) ArchivedCopy(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	artifact, err := h.service.ArchivedCopy(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.sendPDF(c, artifact, "attachment", artifact.Filename)
}

func (h *Handler) AccessLogs(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	entries, err := h.service.AccessLogs(c.Request.Context(), id, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *Handler) RenderPayload(c *gin.Context) {
	var req payloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	artifact, err := h.service.RenderPayload(c.Request.Context(), req.Payload)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.sendPDF(c, artifact, "inline", artifact.Filename)
}

func (h *Handler) DecodePayload(c *gin.Context) {
	var req payloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.service.InspectPayload(c.Request.Context(), req.Payload))
}

func (h *Handler) sendPDF(c *gin.Context, artifact *Artifact, disposition, filename string) {
	c.Header("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": filename}))
	c.Header("X-Certificate-Source", string(artifact.Source))
	c.Header("X-Certificate-Format", string(artifact.Format))
	c.Header("X-Certificate-Valid", strconv.FormatBool(artifact.Verified))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, artifact.ContentType, artifact.Data)
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Certificate request failed", zap.String("path", c.FullPath()), zap.Error(err))
	} else {
		h.logger.Warn("Certificate request rejected", zap.String("path", c.FullPath()), zap.Int("status", status), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	var transition *workflows.TransitionError
	switch {
	case errors.Is(err, ErrCertificateNotFound), errors.Is(err, ErrNoArchive):
		return http.StatusNotFound
	case errors.Is(err, ErrNotApproved), errors.Is(err, ErrRequestLimitReached), errors.As(err, &transition):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidReviewAction), errors.Is(err, ErrMissingCertificateID):
		return http.StatusBadRequest
	case errors.Is(err, ErrStorageDisabled), errors.Is(err, ErrAccessLogsDisabled):
		return http.StatusServiceUnavailable
	case IsPayloadError(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func actor(c *gin.Context) string {
	return c.GetHeader("X-User-ID")
}

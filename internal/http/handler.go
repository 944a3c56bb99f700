package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"occupancy-service/internal/service"
)

type Handler struct {
	occupancyService *service.OccupancyService
	log              zerolog.Logger
}

func NewHandler(
	occupancyService *service.OccupancyService,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		occupancyService: occupancyService,
		log:              log,
	}
}

func (h *Handler) Register(r *gin.Engine, authMiddleware gin.HandlerFunc) {
	r.GET("/health", h.health)

	// Public endpoints
	public := r.Group("/api/v1")
	{
		public.GET("/cameras", h.listCameras)
		public.GET("/cameras/:id/counts", h.cameraCounts)
		public.GET("/cameras/:id/events", h.cameraEvents)
		public.GET("/cameras/:id/stream", h.cameraStream)
		public.GET("/events", h.archivedEvents)
		public.GET("/stats/summary", h.statsSummary)
	}

	// Protected endpoints
	protected := r.Group("/api/v1")
	protected.Use(authMiddleware)
	{
		protected.POST("/cameras/:id/start", h.startCamera)
		protected.POST("/cameras/:id/stop", h.stopCamera)
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"cameras": h.occupancyService.Health(),
	})
}

func (h *Handler) listCameras(c *gin.Context) {
	c.JSON(http.StatusOK, successResponse(h.occupancyService.Cameras()))
}

func (h *Handler) cameraCounts(c *gin.Context) {
	counts, err := h.occupancyService.Counts(c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(counts))
}

func (h *Handler) cameraEvents(c *gin.Context) {
	limit := 0
	if l := c.Query("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, errorResponse("limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	events, err := h.occupancyService.Events(c.Param("id"), limit)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(events))
}

// cameraStream serves the live annotated feed as MJPEG. Each part is a
// complete JPEG; slow clients receive the most recent frame, never a
// backlog.
func (h *Handler) cameraStream(c *gin.Context) {
	frames, cancel, err := h.occupancyService.SubscribeFrames(c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	defer cancel()

	c.Header("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	c.Header("Cache-Control", "no-cache")
	c.Status(http.StatusOK)

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		h.log.Error().Msg("response writer does not support streaming")
		return
	}

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case frame, open := <-frames:
			if !open {
				return
			}
			if _, err := fmt.Fprintf(c.Writer,
				"--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(frame.Data)); err != nil {
				return
			}
			if _, err := c.Writer.Write(frame.Data); err != nil {
				return
			}
			if _, err := c.Writer.Write([]byte("\r\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// archivedEvents serves persisted history with optional camera and
// time-range filters. The per-camera in-memory log is served by
// cameraEvents; this endpoint needs the archive.
func (h *Handler) archivedEvents(c *gin.Context) {
	var cameraID *string
	if id := strings.TrimSpace(c.Query("camera_id")); id != "" {
		cameraID = &id
	}

	var from, to *time.Time
	if f := strings.TrimSpace(c.Query("from")); f != "" {
		parsed, err := time.Parse(time.RFC3339, f)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("from must be RFC3339"))
			return
		}
		from = &parsed
	}
	if tq := strings.TrimSpace(c.Query("to")); tq != "" {
		parsed, err := time.Parse(time.RFC3339, tq)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("to must be RFC3339"))
			return
		}
		to = &parsed
	}

	limit := 0
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	offset := 0
	if o := c.Query("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	events, err := h.occupancyService.ArchivedEvents(c.Request.Context(), cameraID, from, to, limit, offset)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(events))
}

func (h *Handler) statsSummary(c *gin.Context) {
	report, err := h.occupancyService.Summary(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(report))
}

func (h *Handler) startCamera(c *gin.Context) {
	if err := h.occupancyService.StartCamera(c.Param("id")); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) stopCamera(c *gin.Context) {
	if err := h.occupancyService.StopCamera(c.Param("id")); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, service.ErrUnknownCamera):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
	default:
		h.log.Error().Err(err).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

func successResponse(data interface{}) gin.H {
	return gin.H{
		"data": data,
	}
}

func errorResponse(message string) gin.H {
	return gin.H{
		"error": message,
	}
}

// Package api exposes the HTTP surface of the transcription service: job
// submission, the async completion callback, and the health probe.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/skillsenselab/scribe/internal/config"
	"github.com/skillsenselab/scribe/internal/correlate"
	apperrors "github.com/skillsenselab/scribe/internal/errors"
	"github.com/skillsenselab/scribe/internal/logger"
	"github.com/skillsenselab/scribe/internal/media"
	"github.com/skillsenselab/scribe/internal/orchestrate"
)

// Handler bundles the dependencies of the HTTP handlers.
type Handler struct {
	orchestrator *orchestrate.Orchestrator
	fetcher      *media.Fetcher
	normalizer   media.Normalizer
	correlator   *correlate.Registry
	pipeline     config.PipelineConfig
	mediaCfg     config.MediaConfig
	callback     config.CallbackConfig
	log          *logger.Logger
}

// NewHandler creates the API handler set.
func NewHandler(
	orchestrator *orchestrate.Orchestrator,
	fetcher *media.Fetcher,
	normalizer media.Normalizer,
	correlator *correlate.Registry,
	cfg *config.Config,
	log *logger.Logger,
) *Handler {
	if normalizer == nil {
		normalizer = media.NopNormalizer{}
	}
	return &Handler{
		orchestrator: orchestrator,
		fetcher:      fetcher,
		normalizer:   normalizer,
		correlator:   correlator,
		pipeline:     cfg.Pipeline,
		mediaCfg:     cfg.Media,
		callback:     cfg.Callback,
		log:          log.WithComponent("api"),
	}
}

// RegisterRoutes attaches all routes to the gin engine.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", h.Health)

	v1 := r.Group("/api/v1")
	v1.POST("/transcriptions", h.Transcribe)
	v1.POST("/callbacks/clova", h.ClovaCallback)
}

// Health answers the liveness probe. It reports whether the callback path
// is configured without ever exposing the secret itself.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":             "ok",
		"callbackConfigured": h.callback.Secret != "",
	})
}

// respondError writes the structured error response, mapping application
// errors to their recommended status and everything else to 500.
func (h *Handler) respondError(c *gin.Context, err error) {
	if appErr, ok := apperrors.AsAppError(err); ok {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		c.JSON(status, appErr.ToResponse())
		return
	}
	h.log.Error("unhandled error", logger.ErrorFields("handle request", err))
	c.JSON(http.StatusInternalServerError,
		apperrors.Internal("internal error", err).ToResponse())
}

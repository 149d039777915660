package api

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/skillsenselab/scribe/internal/errors"
	"github.com/skillsenselab/scribe/internal/logger"
	"github.com/skillsenselab/scribe/internal/media"
	"github.com/skillsenselab/scribe/internal/transcription"
	"github.com/skillsenselab/scribe/internal/validation"
)

// transcribeRequest is the JSON body for URL-sourced submissions. Toggle
// fields are pointers so absent values fall back to configured defaults.
type transcribeRequest struct {
	URL             string  `json:"url" validate:"omitempty,url"`
	Language        string  `json:"language" validate:"omitempty,max=16"`
	SpeakerLabels   *bool   `json:"speakerLabels"`
	Timestamps      *bool   `json:"timestamps"`
	Keyterms        *bool   `json:"keyterms"`
	Correction      *bool   `json:"correction"`
	Verification    *bool   `json:"verification"`
	DurationSeconds float64 `json:"durationSeconds" validate:"omitempty,min=0"`
}

// Transcribe accepts a media submission, either a multipart upload under the
// "file" field or a JSON body naming a URL to fetch, and runs every enabled
// engine against it. The response is the per-engine batch result.
func (h *Handler) Transcribe(c *gin.Context) {
	ctx := c.Request.Context()

	in, req, err := h.resolveInput(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer in.Release()

	if !media.IsAudioVideo(in.MIME) {
		h.respondError(c, apperrors.InvalidInput("file",
			"media must be an audio or video type, got "+in.MIME))
		return
	}

	prepared, err := h.normalizer.Normalize(ctx, in)
	if err != nil {
		// Normalization is best effort. Engines that cannot take the raw
		// format reject it themselves later.
		h.log.Warn("normalization failed, using raw media",
			logger.ErrorFields("normalize", err))
		prepared = in
	}
	if prepared != in {
		defer prepared.Release()
	}

	job := h.jobConfig(req)

	h.log.Info("job accepted", logger.Fields(
		"file", in.Name,
		"mime", prepared.MIME,
		"size", prepared.Size(),
		"language", job.Language,
	))

	batch := h.orchestrator.Run(ctx, prepared, job)
	c.JSON(http.StatusOK, batch)
}

// resolveInput materializes the media buffer from the request, multipart
// upload first, URL fetch otherwise.
func (h *Handler) resolveInput(c *gin.Context) (*media.Input, *transcribeRequest, error) {
	contentType := c.ContentType()
	if strings.HasPrefix(contentType, "multipart/") {
		in, req, err := h.inputFromUpload(c)
		return in, req, err
	}

	var req transcribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, nil, apperrors.InvalidInput("body", "malformed JSON body").WithCause(err)
	}
	if err := validation.Validate(&req); err != nil {
		return nil, nil, err
	}
	if req.URL == "" {
		return nil, nil, apperrors.MissingField("file")
	}

	in, err := h.fetcher.Fetch(c.Request.Context(), req.URL)
	if err != nil {
		return nil, nil, err
	}
	return in, &req, nil
}

func (h *Handler) inputFromUpload(c *gin.Context) (*media.Input, *transcribeRequest, error) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return nil, nil, apperrors.MissingField("file")
	}
	if fileHeader.Size > h.mediaCfg.MaxUploadBytes {
		return nil, nil, apperrors.PayloadTooLarge("upload", fileHeader.Size, h.mediaCfg.MaxUploadBytes)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, nil, apperrors.InvalidInput("file", "cannot open uploaded file").WithCause(err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.mediaCfg.MaxUploadBytes+1))
	if err != nil {
		return nil, nil, apperrors.InvalidInput("file", "cannot read uploaded file").WithCause(err)
	}
	if int64(len(data)) > h.mediaCfg.MaxUploadBytes {
		return nil, nil, apperrors.PayloadTooLarge("upload", int64(len(data)), h.mediaCfg.MaxUploadBytes)
	}

	mime := media.DetectMIME(fileHeader.Header.Get("Content-Type"), fileHeader.Filename, data)
	req := requestFromForm(c)
	return media.NewInput(data, mime, fileHeader.Filename), req, nil
}

// requestFromForm reads the toggle fields from multipart form values using
// the same names as the JSON body.
func requestFromForm(c *gin.Context) *transcribeRequest {
	req := &transcribeRequest{Language: c.PostForm("language")}
	req.SpeakerLabels = formBool(c, "speakerLabels")
	req.Timestamps = formBool(c, "timestamps")
	req.Keyterms = formBool(c, "keyterms")
	req.Correction = formBool(c, "correction")
	req.Verification = formBool(c, "verification")
	if raw := c.PostForm("durationSeconds"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil && v > 0 {
			req.DurationSeconds = v
		}
	}
	return req
}

func formBool(c *gin.Context, name string) *bool {
	raw := c.PostForm(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &v
}

// jobConfig folds the request toggles over the configured defaults into the
// immutable per-job configuration.
func (h *Handler) jobConfig(req *transcribeRequest) transcription.JobConfig {
	job := transcription.JobConfig{
		SpeakerLabels: true,
		Timestamps:    true,
		Keyterms:      h.pipeline.KeytermsEnabled,
		Correction:    h.pipeline.CorrectionEnabled,
		Verification:  h.pipeline.VerificationEnabled,
	}
	if req == nil {
		return job
	}

	job.Language = req.Language
	job.DurationOverride = req.DurationSeconds
	if req.SpeakerLabels != nil {
		job.SpeakerLabels = *req.SpeakerLabels
	}
	if req.Timestamps != nil {
		job.Timestamps = *req.Timestamps
	}
	if req.Keyterms != nil {
		job.Keyterms = *req.Keyterms
	}
	if req.Correction != nil {
		job.Correction = *req.Correction
	}
	if req.Verification != nil {
		job.Verification = *req.Verification
	}
	return job
}

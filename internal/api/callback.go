package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/skillsenselab/scribe/internal/correlate"
	apperrors "github.com/skillsenselab/scribe/internal/errors"
	"github.com/skillsenselab/scribe/internal/logger"
	"github.com/skillsenselab/scribe/internal/transcription"
)

// signatureHeader carries the hex HMAC-SHA256 of the raw request body.
const signatureHeader = "X-Callback-Signature"

// clovaCallback is the completion payload delivered by the engine once an
// async recognition job finishes.
type clovaCallback struct {
	Token    string                  `json:"token"`
	Text     string                  `json:"text"`
	Segments []transcription.Segment `json:"segments,omitempty"`
}

// ClovaCallback receives async completion callbacks. The payload signature
// is verified before anything in the body is trusted. Duplicate and unknown
// tokens are acknowledged and discarded so the engine stops redelivering.
func (h *Handler) ClovaCallback(c *gin.Context) {
	if h.callback.Secret == "" {
		h.respondError(c, apperrors.ServiceUnavailable("callback endpoint"))
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.respondError(c, apperrors.InvalidInput("body", "cannot read request body").WithCause(err))
		return
	}

	if !h.verifySignature(body, c.GetHeader(signatureHeader)) {
		h.log.Warn("callback signature rejected", logger.Fields(
			"remote", c.ClientIP(),
		))
		h.respondError(c, apperrors.InvalidSignature())
		return
	}

	var payload clovaCallback
	if err := json.Unmarshal(body, &payload); err != nil {
		h.respondError(c, apperrors.InvalidInput("body", "malformed callback body").WithCause(err))
		return
	}
	if payload.Token == "" {
		h.respondError(c, apperrors.MissingField("token"))
		return
	}

	matched := h.correlator.Resolve(payload.Token, correlate.Payload{
		Text:     payload.Text,
		Segments: payload.Segments,
	})

	h.log.Info("callback received", logger.Fields(
		logger.FieldCorrelationID, payload.Token,
		"matched", matched,
	))

	c.JSON(http.StatusOK, gin.H{"acknowledged": true, "matched": matched})
}

// verifySignature compares the expected body HMAC against the presented
// signature in constant time.
func (h *Handler) verifySignature(body []byte, presented string) bool {
	if presented == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(h.callback.Secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(presented))
}

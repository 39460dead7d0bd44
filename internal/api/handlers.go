package api

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"

	"github.com/sirupsen/logrus"

	"wmbench/internal/audio"
	"wmbench/internal/models"
	"wmbench/internal/watermarking"
)

// maxBodyBytes bounds a request; ten minutes of 48kHz audio as JSON fits.
const maxBodyBytes = 1 << 30

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Set *watermarking.Set
	Log logrus.FieldLogger
}

// NewHandlers creates a new Handlers struct.
func NewHandlers(set *watermarking.Set, log logrus.FieldLogger) *Handlers {
	return &Handlers{Set: set, Log: log}
}

// --- Helper Functions ---

// respondWithJSON is a helper to send a JSON response.
func (h *Handlers) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			h.Log.WithError(err).Warn("failed to encode response")
		}
	}
}

// respondWithError is a helper to send a JSON error message.
func (h *Handlers) respondWithError(w http.ResponseWriter, code int, message string) {
	h.Log.WithField("status", code).Warn(message)
	h.respondWithJSON(w, code, models.ErrorResponse{Error: message})
}

// decode parses the JSON body into req.
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, req interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request JSON: "+err.Error())
		return false
	}
	return true
}

// resolve validates the buffer and looks up the named watermarker.
func (h *Handlers) resolve(w http.ResponseWriter, algorithm string, buf audio.Buffer) (watermarking.Watermarker, bool) {
	if err := buf.Validate(); err != nil {
		h.respondWithError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	wm, err := h.Set.Get(algorithm)
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Unknown watermark algorithm: "+err.Error())
		return nil, false
	}
	return wm, true
}

// HandleEmbedWatermark embeds the payload and returns the new samples.
func (h *Handlers) HandleEmbedWatermark(w http.ResponseWriter, r *http.Request) {
	var req models.EmbedRequest
	if !h.decode(w, r, &req) {
		return
	}
	wm, ok := h.resolve(w, req.Algorithm, audio.Buffer{Samples: req.Samples, SampleRate: req.SampleRate})
	if !ok {
		return
	}

	out, err := wm.Embed(r.Context(), req.Samples, req.SampleRate, req.Payload)
	if err != nil {
		h.respondWithError(w, http.StatusUnprocessableEntity, "Failed to embed watermark: "+err.Error())
		return
	}
	if len(out) != len(req.Samples) {
		h.respondWithError(w, http.StatusInternalServerError,
			fmt.Sprintf("watermarker %s returned %d samples for %d", wm.Name(), len(out), len(req.Samples)))
		return
	}

	h.respondWithJSON(w, http.StatusOK, models.EmbedResponse{Algorithm: wm.Name(), Samples: out})
}

// HandleDetectWatermark scores the samples against the payload.
func (h *Handlers) HandleDetectWatermark(w http.ResponseWriter, r *http.Request) {
	var req models.DetectRequest
	if !h.decode(w, r, &req) {
		return
	}
	wm, ok := h.resolve(w, req.Algorithm, audio.Buffer{Samples: req.Samples, SampleRate: req.SampleRate})
	if !ok {
		return
	}

	score, err := wm.Detect(r.Context(), req.Samples, req.SampleRate, req.Payload)
	if err != nil {
		h.respondWithError(w, http.StatusUnprocessableEntity, "Failed to detect watermark: "+err.Error())
		return
	}
	if math.IsNaN(score) || score < 0 || score > 1 {
		h.respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("watermarker %s scored %v", wm.Name(), score))
		return
	}

	h.respondWithJSON(w, http.StatusOK, models.DetectResponse{Algorithm: wm.Name(), Score: score})
}

func (h *Handlers) HandleWatermarkAlgorithmListing(w http.ResponseWriter, r *http.Request) {
	h.respondWithJSON(w, http.StatusOK, h.Set.ListSupportedAlgorithms())
}

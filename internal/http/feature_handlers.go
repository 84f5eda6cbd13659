package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/kjstillabower/plants-doctor/internal/service"
	"github.com/kjstillabower/plants-doctor/internal/validation"
)

const multipartOverhead = 1 << 20

type translateRequest struct {
	Text     string `json:"text" validate:"max=5000"`
	Language string `json:"language" validate:"max=32"`
}

type chatRequest struct {
	Text string `json:"text" validate:"max=4000"`
}

// Diagnose handles POST /api/detector/diagnose with a multipart "image" field.
func (h *Handler) Diagnose(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFrom(r)
	image, err := h.readImage(w, r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	analysis, err := h.svc.Detector.Diagnose(r.Context(), sess.Token, image)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

// readImage returns the uploaded image bytes, or nil when no file was sent.
// Uploads over the size limit are cut one byte past it so the detector rejects them.
func (h *Handler) readImage(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	limit := h.maxImageBytes
	if limit <= 0 {
		limit = 10 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, &service.UserError{Message: service.MsgImageTooLarge, Err: validation.ErrInvalidRequest}
		}
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, &service.UserError{Message: service.MsgNoImage, Err: validation.ErrInvalidRequest}
	}
	file, _, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, &service.UserError{Message: service.MsgNoImage, Err: validation.ErrInvalidRequest}
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Translate handles POST /api/detector/translate.
func (h *Handler) Translate(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFrom(r)
	var req translateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	out, err := h.svc.Detector.Translate(r.Context(), sess.Token, req.Text, req.Language)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"translation": out,
		"language":    service.LanguageName(req.Language),
	})
}

// Languages handles GET /api/detector/languages.
func (h *Handler) Languages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, service.Languages)
}

// Weather handles GET /api/weather?lat=&lon=.
func (h *Handler) Weather(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFrom(r)
	q := r.URL.Query()
	lat, lon, err := validation.ValidateCoordinates(q.Get("lat"), q.Get("lon"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	data, err := h.svc.Weather.Forecast(r.Context(), sess.Token, lat, lon)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

// Learn handles GET /api/learn.
func (h *Handler) Learn(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFrom(r)
	resources, err := h.svc.Learn.Resources(r.Context(), sess.Token)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resources)
}

// ChatTranscript handles GET /api/chat/messages.
func (h *Handler) ChatTranscript(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFrom(r)
	writeJSON(w, http.StatusOK, h.svc.Community.Transcript(sess.Token))
}

// ChatSend handles POST /api/chat/messages and returns the model's reply.
func (h *Handler) ChatSend(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFrom(r)
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	reply, err := h.svc.Community.Send(r.Context(), sess.Token, req.Text)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

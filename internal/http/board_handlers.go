package http

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/kjstillabower/plants-doctor/internal/validation"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type eventRequest struct {
	Date        string `json:"date"`
	Title       string `json:"title" validate:"max=200"`
	Description string `json:"description" validate:"max=2000"`
}

type postRequest struct {
	Title   string `json:"title" validate:"max=200"`
	Content string `json:"content" validate:"max=10000"`
}

type replyRequest struct {
	Content string `json:"content" validate:"max=5000"`
}

// ListEvents handles GET /api/scheduler/events?date=. The date defaults to today.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFrom(r)
	date := r.URL.Query().Get("date")
	if date == "" {
		date = h.now().Format(validation.DateLayout)
	}
	events, err := h.svc.Scheduler.EventsOn(r.Context(), sess.User.Email, date)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// AddEvent handles POST /api/scheduler/events. The date defaults to today.
func (h *Handler) AddEvent(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFrom(r)
	var req eventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if req.Date == "" {
		req.Date = h.now().Format(validation.DateLayout)
	}
	e, err := h.svc.Scheduler.AddEvent(r.Context(), sess.User.Email, req.Date, req.Title, req.Description)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// ExportEvents handles GET /api/scheduler/export.
func (h *Handler) ExportEvents(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFrom(r)
	var buf bytes.Buffer
	if err := h.svc.Scheduler.Export(r.Context(), sess.User.Email, &buf); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="farm-tasks.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// ListPosts handles GET /api/forum/posts.
func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.svc.Forum.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// CreatePost handles POST /api/forum/posts.
func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFrom(r)
	var req postRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	p, err := h.svc.Forum.CreatePost(r.Context(), sess.User, req.Title, req.Content)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// GetPost handles GET /api/forum/posts/{id}.
func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Forum.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// AddReply handles POST /api/forum/posts/{id}/replies.
func (h *Handler) AddReply(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFrom(r)
	var req replyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	reply, err := h.svc.Forum.AddReply(r.Context(), sess.User, mux.Vars(r)["id"], req.Content)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, reply)
}

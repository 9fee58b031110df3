package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/yuin/goldmark"

	"pdf-chat/internal/app"
	"pdf-chat/internal/chat"
	"pdf-chat/internal/events"
	"pdf-chat/internal/httputil"
	"pdf-chat/internal/pdftext"
)

// multipart framing allowance on top of the file size limit
const formOverhead = 1 << 20

type questionRequest struct {
	Question string `json:"question" validate:"required,notblank"`
}

type transcriptTurn struct {
	chat.Turn
	HTML string `json:"html,omitempty"`
}

func newRouter(deps app.Deps) http.Handler {
	r := httputil.NewRouter(deps.Log)

	r.Get("/healthz", httputil.HealthHandler(deps.Log))
	r.Get("/api/locale", localeHandler(deps))

	r.Route("/api/sessions", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if deps.Config.RequestTimeout > 0 {
				r.Use(middleware.Timeout(deps.Config.RequestTimeout))
			}
			r.Post("/", createSessionHandler(deps))
			r.Get("/{id}", getSessionHandler(deps))
			r.Delete("/{id}", deleteSessionHandler(deps))
			r.Post("/{id}/document", uploadHandler(deps))
			r.Post("/{id}/questions", questionHandler(deps))
			r.Get("/{id}/transcript", transcriptHandler(deps))
		})
		// Streams stay open for the session's lifetime.
		r.Get("/{id}/events", eventsHandler(deps))
	})
	return r
}

func localeHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, deps.Lang)
	}
}

func createSessionHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := deps.Sessions.Create()
		httputil.WriteJSON(w, http.StatusCreated, s.Snapshot())
	}
}

func getSessionHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookupSession(deps, w, r)
		if !ok {
			return
		}
		httputil.WriteJSON(w, http.StatusOK, s.Snapshot())
	}
}

func deleteSessionHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Sessions.Close(chi.URLParam(r, "id")); err != nil {
			writeSessionError(deps, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func uploadHandler(deps app.Deps) http.HandlerFunc {
	maxFileSize := deps.Config.MaxUploadSize

	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookupSession(deps, w, r)
		if !ok {
			return
		}
		log := deps.Log.With("session_id", s.ID())

		tooLarge := fmt.Sprintf("file too large (max %d bytes)", maxFileSize)
		if r.ContentLength > maxFileSize+formOverhead {
			httputil.Fail(log, w, tooLarge, nil, http.StatusRequestEntityTooLarge)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxFileSize+formOverhead)
		if err := r.ParseMultipartForm(maxFileSize); err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				httputil.Fail(log, w, tooLarge, err, http.StatusRequestEntityTooLarge)
				return
			}
			httputil.Fail(log, w, "invalid multipart form", err, http.StatusBadRequest)
			return
		}
		defer func() {
			if err := r.MultipartForm.RemoveAll(); err != nil {
				log.Warn("failed to remove multipart temp files", "err", err)
			}
		}()

		file, header, err := r.FormFile("file")
		if err != nil {
			httputil.Fail(log, w, "file is required", err, http.StatusBadRequest)
			return
		}
		defer file.Close()

		if !pdftext.IsPDFName(header.Filename) {
			httputil.Fail(log, w, "unsupported file type (only PDF allowed)", nil, http.StatusUnsupportedMediaType)
			return
		}
		if header.Size > maxFileSize {
			httputil.Fail(log, w, tooLarge, nil, http.StatusRequestEntityTooLarge)
			return
		}

		content, err := io.ReadAll(io.LimitReader(file, maxFileSize+1))
		if err != nil {
			httputil.Fail(log, w, "failed to read file", err, http.StatusInternalServerError)
			return
		}
		if int64(len(content)) > maxFileSize {
			httputil.Fail(log, w, tooLarge, nil, http.StatusRequestEntityTooLarge)
			return
		}

		info, err := s.LoadDocument(r.Context(), header.Filename, content)
		if err != nil {
			writeSessionError(deps, w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"document": info,
			"state":    s.State(),
		})
	}
}

func questionHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookupSession(deps, w, r)
		if !ok {
			return
		}

		var req questionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.Fail(deps.Log, w, "invalid payload", err, http.StatusBadRequest)
			return
		}
		if err := httputil.Validator.Struct(&req); err != nil {
			httputil.ValidationError(deps.Log, w, err)
			return
		}

		turn, err := s.Ask(r.Context(), req.Question)
		if err != nil {
			writeSessionError(deps, w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"turn":  turn,
			"turns": len(s.Turns()),
		})
	}
}

func transcriptHandler(deps app.Deps) http.HandlerFunc {
	md := goldmark.New()

	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookupSession(deps, w, r)
		if !ok {
			return
		}
		turns := s.Turns()
		out := make([]transcriptTurn, 0, len(turns))
		for _, t := range turns {
			tt := transcriptTurn{Turn: t}
			if t.Role == chat.RoleModel && t.Failure == "" {
				var buf bytes.Buffer
				if err := md.Convert([]byte(t.Content), &buf); err != nil {
					deps.Log.Warn("failed to render markdown", "session_id", s.ID(), "err", err)
				} else {
					tt.HTML = buf.String()
				}
			}
			out = append(out, tt)
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"session_id": s.ID(),
			"turns":      out,
		})
	}
}

func eventsHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := lookupSession(deps, w, r)
		if !ok {
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			httputil.Fail(deps.Log, w, "streaming unsupported", nil, http.StatusInternalServerError)
			return
		}

		ch, cancel := deps.Broker.Subscribe(s.ID())
		defer cancel()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		if err := writeSSE(w, "snapshot", s.Snapshot()); err != nil {
			return
		}
		flusher.Flush()

		for {
			select {
			case <-r.Context().Done():
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				if err := writeSSE(w, string(ev.Type), ev); err != nil {
					deps.Log.Debug("event stream closed", "session_id", s.ID(), "err", err)
					return
				}
				flusher.Flush()
				if ev.Type == events.TypeSessionClosed {
					return
				}
			}
		}
	}
}

func writeSSE(w io.Writer, event string, data any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, body)
	return err
}

func lookupSession(deps app.Deps, w http.ResponseWriter, r *http.Request) (*chat.Session, bool) {
	s, err := deps.Sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeSessionError(deps, w, err)
		return nil, false
	}
	return s, true
}

// writeSessionError maps session failures onto HTTP statuses. User-facing
// messages come from the active language pack.
func writeSessionError(deps app.Deps, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrSessionNotFound):
		httputil.Fail(deps.Log, w, "session not found", err, http.StatusNotFound)
	case errors.Is(err, chat.ErrSessionClosed):
		httputil.Fail(deps.Log, w, "session closed", err, http.StatusGone)
	case errors.Is(err, chat.ErrBusy):
		httputil.Fail(deps.Log, w, deps.Lang.Busy, err, http.StatusConflict)
	case chat.IsKind(err, chat.KindNoDocumentLoaded):
		httputil.Fail(deps.Log, w, deps.Lang.NoDocument, err, http.StatusConflict)
	case chat.IsKind(err, chat.KindDocumentParse):
		httputil.Fail(deps.Log, w, deps.Lang.ParseFailed, err, http.StatusUnprocessableEntity)
	default:
		httputil.Fail(deps.Log, w, "internal error", err, http.StatusInternalServerError)
	}
}

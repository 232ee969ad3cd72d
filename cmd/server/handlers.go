package main

import (
	"bytes"
	"embed"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"pdf-insights/internal/app"
	"pdf-insights/internal/form"
	"pdf-insights/internal/httputil"
	"pdf-insights/internal/qa"
	"pdf-insights/internal/session"
)

// requestOverhead leaves room for multipart framing or the JSON envelope on top of the document limit.
const requestOverhead = 1 << 20

//go:embed templates/index.html
var templatesFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templatesFS, "templates/index.html"))

type fileView struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Size  int64  `json:"size"`
	Pages int    `json:"pages,omitempty"`
}

// stateView is the session state without the document bytes.
type stateView struct {
	File     *fileView `json:"file"`
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	Loading  bool      `json:"loading"`
	Error    string    `json:"error,omitempty"`
}

func newStateView(st session.State) stateView {
	v := stateView{
		Question: st.Question,
		Answer:   st.Answer,
		Loading:  st.Loading,
		Error:    st.Error,
	}
	if st.File != nil {
		v.File = &fileView{Name: st.File.Name, Type: st.File.Type, Size: st.File.Size, Pages: st.File.Pages}
	}
	return v
}

func routes(deps app.Deps) http.Handler {
	r := httputil.NewRouter(deps.Log)
	r.Get("/healthz", httputil.HealthHandler(deps.Log))
	r.Post("/api/answer", answerHandler(deps))

	r.Group(func(r chi.Router) {
		r.Use(withSession)
		r.Get("/", pageHandler(deps))
		r.Post("/file", fileHandler(deps))
		r.Post("/ask", askHandler(deps))
		r.Get("/api/state", stateHandler(deps))
		r.Delete("/api/state", resetHandler(deps))
	})
	return r
}

// wantsJSON reports whether the client asked for JSON rather than the page.
func wantsJSON(r *http.Request) bool {
	return lo.ContainsBy(strings.Split(r.Header.Get("Accept"), ","), func(part string) bool {
		mt, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		return err == nil && mt == "application/json"
	})
}

// respond sends JSON clients the state and browsers back to the page.
func respond(w http.ResponseWriter, r *http.Request, status int, st session.State) {
	if wantsJSON(r) {
		httputil.WriteJSON(w, status, newStateView(st))
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func pageHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := deps.Form.State(r.Context(), sessionID(r))
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to load state", err, http.StatusInternalServerError)
			return
		}
		var buf bytes.Buffer
		if err := pageTemplate.Execute(&buf, newStateView(st)); err != nil {
			httputil.Fail(deps.Log, w, "failed to render page", err, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if _, err := buf.WriteTo(w); err != nil {
			deps.Log.Warn("page write failed", "err", err)
		}
	}
}

func fileHandler(deps app.Deps) http.HandlerFunc {
	maxFileSize := deps.Config.MaxUploadSize

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		log := deps.Log.With("session_id", sessionID(r))

		if maxFileSize > 0 {
			if r.ContentLength > maxFileSize+requestOverhead {
				httputil.Fail(log, w, fmt.Sprintf("file too large (max %d bytes)", maxFileSize), nil, http.StatusBadRequest)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxFileSize+requestOverhead)
		}

		var up *form.Upload
		file, header, err := r.FormFile("file")
		switch {
		case errors.Is(err, http.ErrMissingFile):
		case err != nil:
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				httputil.Fail(log, w, fmt.Sprintf("file too large (max %d bytes)", maxFileSize), err, http.StatusBadRequest)
				return
			}
			httputil.Fail(log, w, "invalid upload", err, http.StatusBadRequest)
			return
		default:
			defer file.Close()
			up = &form.Upload{
				Name: header.Filename,
				Type: header.Header.Get("Content-Type"),
				Data: file,
			}
		}

		st, err := deps.Form.SelectFile(ctx, sessionID(r), up)
		switch {
		case errors.Is(err, form.ErrInvalidFile):
			respond(w, r, http.StatusBadRequest, st)
		case err != nil:
			httputil.Fail(log, w, "failed to store file", err, http.StatusInternalServerError)
		default:
			respond(w, r, http.StatusOK, st)
		}
	}
}

func askHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := deps.Log.With("session_id", sessionID(r))

		question, err := readQuestion(r)
		if err != nil {
			httputil.Fail(log, w, "invalid request body", err, http.StatusBadRequest)
			return
		}

		st, err := deps.Form.SubmitQuestion(r.Context(), sessionID(r), question)
		switch {
		case err == nil:
			respond(w, r, http.StatusOK, st)
		case errors.Is(err, form.ErrQuestionRequired), errors.Is(err, form.ErrFileRequired):
			respond(w, r, http.StatusBadRequest, st)
		case errors.Is(err, form.ErrBusy):
			respond(w, r, http.StatusConflict, st)
		case errors.Is(err, form.ErrAnswerFailed):
			respond(w, r, http.StatusBadGateway, st)
		default:
			httputil.Fail(log, w, "failed to submit question", err, http.StatusInternalServerError)
		}
	}
}

func readQuestion(r *http.Request) (string, error) {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt != "application/json" {
		return r.FormValue("question"), nil
	}
	var body struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return "", err
	}
	return body.Question, nil
}

func stateHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := deps.Form.State(r.Context(), sessionID(r))
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to load state", err, http.StatusInternalServerError)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, newStateView(st))
	}
}

func resetHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Form.Reset(r.Context(), sessionID(r)); err != nil {
			httputil.Fail(deps.Log, w, "failed to reset state", err, http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func answerHandler(deps app.Deps) http.HandlerFunc {
	maxDocumentSize := deps.Config.MaxUploadSize

	return func(w http.ResponseWriter, r *http.Request) {
		if maxDocumentSize > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, int64(base64.StdEncoding.EncodedLen(int(maxDocumentSize)))+requestOverhead)
		}

		var in qa.Input
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				httputil.Fail(deps.Log, w, fmt.Sprintf("document too large (max %d bytes)", maxDocumentSize), err, http.StatusBadRequest)
				return
			}
			httputil.Fail(deps.Log, w, "invalid request body", err, http.StatusBadRequest)
			return
		}

		out, err := deps.QA.Answer(r.Context(), in)
		switch {
		case errors.Is(err, qa.ErrInvalidInput):
			httputil.ValidationError(deps.Log, w, err)
		case err != nil:
			httputil.Fail(deps.Log, w, form.MsgAnswerFailed, err, http.StatusBadGateway)
		default:
			httputil.WriteJSON(w, http.StatusOK, out)
		}
	}
}

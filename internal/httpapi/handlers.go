package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/text/language"

	"github.com/MimeLyc/batch-sub-translator/internal/batch"
	"github.com/MimeLyc/batch-sub-translator/internal/jobs"
	"github.com/MimeLyc/batch-sub-translator/internal/service"
	"github.com/MimeLyc/batch-sub-translator/internal/subtitle"
)

const maxUploadBytes = 16 << 20

type loadSessionRequest struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

func (s *Server) handleLoadSession(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	var req loadSessionRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "missing file field")
			return
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			writeError(w, http.StatusBadRequest, "read upload: "+err.Error())
			return
		}
		req.Filename = header.Filename
		req.Content = string(data)
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	req.Filename = filepath.Base(strings.TrimSpace(req.Filename))
	if req.Filename == "" || req.Filename == "." {
		writeError(w, http.StatusBadRequest, "filename is required")
		return
	}
	format, err := subtitle.DetectFormat(req.Filename)
	if err != nil {
		writeError(w, http.StatusUnsupportedMediaType, err.Error())
		return
	}
	doc, err := subtitle.Parse(format, req.Content)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := s.orch.Load(doc); err != nil {
		writeServiceError(w, err)
		return
	}

	s.mu.Lock()
	s.filename = req.Filename
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, s.sessionResponse())
}

type sessionResponse struct {
	Filename string `json:"filename,omitempty"`
	service.Snapshot
}

func (s *Server) sessionResponse() sessionResponse {
	s.mu.RLock()
	name := s.filename
	s.mu.RUnlock()
	return sessionResponse{Filename: name, Snapshot: s.orch.Snapshot()}
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sessionResponse())
}

type runRequest struct {
	TargetLanguage string `json:"target_language"`
	Prompt         string `json:"prompt"`
	Model          string `json:"model"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	tag, err := language.Parse(strings.TrimSpace(req.TargetLanguage))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid target_language")
		return
	}

	s.enqueue(w, jobs.EnqueueRequest{
		Kind:      jobs.KindRun,
		DedupeKey: "run",
		Payload: jobs.Payload{
			TargetLanguage: tag.String(),
			Prompt:         req.Prompt,
			Model:          req.Model,
		},
	})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.orch.Pause()
	writeJSON(w, http.StatusOK, map[string]any{"state": s.orch.State()})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.orch.Resume()
	writeJSON(w, http.StatusOK, map[string]any{"state": s.orch.State()})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	s.orch.Cancel()
	writeJSON(w, http.StatusOK, map[string]any{"state": s.orch.State()})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.orch.Reset(); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.sessionResponse())
}

func itemID(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	return id, err == nil && id > 0
}

func (s *Server) handleRetryItem(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}
	s.enqueue(w, jobs.EnqueueRequest{
		Kind:      jobs.KindRetryItem,
		DedupeKey: "item:" + strconv.Itoa(id),
		Payload:   jobs.Payload{ItemID: id},
	})
}

type updateItemRequest struct {
	TranslatedText string `json:"translated_text"`
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}
	var req updateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := s.orch.UpdateTranslation(id, req.TranslatedText); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.orch.Items()[id-1])
}

func (s *Server) handleRetryBatch(w http.ResponseWriter, r *http.Request) {
	key, err := batch.ParseKey(chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.enqueue(w, jobs.EnqueueRequest{
		Kind:      jobs.KindRetryBatch,
		DedupeKey: "batch:" + key.String(),
		Payload:   jobs.Payload{BatchKey: key.String()},
	})
}

func (s *Server) handleRetryAll(w http.ResponseWriter, r *http.Request) {
	s.enqueue(w, jobs.EnqueueRequest{
		Kind:      jobs.KindRetryAll,
		DedupeKey: "retry-all",
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	mode, err := subtitle.ParseExportMode(r.URL.Query().Get("mode"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	content, err := s.orch.Export(mode)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": s.exportName(mode),
	}))
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, content)
}

func (s *Server) exportName(mode subtitle.ExportMode) string {
	s.mu.RLock()
	name := s.filename
	s.mu.RUnlock()
	snap := s.orch.Snapshot()
	if name == "" {
		name = "subtitle" + snap.Format.Ext()
	}
	if mode == subtitle.ExportOriginal {
		return name
	}
	tag, err := language.Parse(snap.TargetLanguage)
	if err != nil {
		return name
	}
	return subtitle.ExportName(name, tag)
}

func (s *Server) handleListActions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.queue.List())
}

func (s *Server) enqueue(w http.ResponseWriter, req jobs.EnqueueRequest) {
	if !s.orch.Loaded() {
		writeError(w, http.StatusNotFound, "no subtitle loaded")
		return
	}
	action, created := s.queue.Enqueue(req)
	code := http.StatusAccepted
	if !created {
		code = http.StatusOK
	}
	writeJSON(w, code, map[string]any{
		"created": created,
		"action":  action,
	})
}

func writeServiceError(w http.ResponseWriter, err error) {
	var tErr *service.TransError
	if !errors.As(err, &tErr) {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	status := http.StatusInternalServerError
	switch tErr.Type {
	case service.ErrValidation:
		status = http.StatusBadRequest
	case service.ErrNotFound:
		status = http.StatusNotFound
	case service.ErrBusy:
		status = http.StatusConflict
	case service.ErrCodec:
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, map[string]any{
		"error":  tErr.Message,
		"type":   tErr.Type.String(),
		"advice": service.NewDefaultErrorHandler().GetAdvice(tErr),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

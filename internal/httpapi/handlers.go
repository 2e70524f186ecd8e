package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MimeLyc/subtitle-editor/internal/apperr"
	"github.com/MimeLyc/subtitle-editor/internal/config"
	"github.com/MimeLyc/subtitle-editor/internal/editlock"
	"github.com/MimeLyc/subtitle-editor/internal/jobs"
	"github.com/MimeLyc/subtitle-editor/pkg/log"
)

const maxBodyBytes = 8 << 20

type translateRequest struct {
	OriginalLanguage string `json:"originalLanguage"`
	TargetLanguage   string `json:"targetLanguage"`
	Captions         string `json:"captions"`
}

type directorySyncRequest struct {
	Users []struct {
		ID        int64 `json:"id"`
		AccountID int64 `json:"accountId"`
	} `json:"users"`
	Channels []struct {
		ID        int64 `json:"id"`
		AccountID int64 `json:"accountId"`
	} `json:"channels"`
	Videos []struct {
		UUID      string `json:"uuid"`
		ChannelID int64  `json:"channelId"`
	} `json:"videos"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleGetLock(w http.ResponseWriter, r *http.Request) {
	lock, err := s.locks.Get(r.Context(), videoIDFrom(r))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lock)
}

func (s *Server) handlePutLock(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	lock, err := s.locks.Heartbeat(r.Context(), videoIDFrom(r), editlock.ParseLocked(body))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lock)
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req translateRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	result, err := s.translations.RequestTranslation(r.Context(), videoIDFrom(r), req.OriginalLanguage, req.TargetLanguage, req.Captions)
	if err != nil {
		log.Warn("Translate request for video %s rejected: %v", videoIDFrom(r), err)
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": result})
}

func (s *Server) handleCheckStatus(w http.ResponseWriter, r *http.Request) {
	result, err := s.translations.CheckStatus(r.Context(), videoIDFrom(r))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleConsume(w http.ResponseWriter, r *http.Request) {
	consumed, err := s.translations.Consume(r.Context(), videoIDFrom(r))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"consumed": consumed})
}

func (s *Server) handleAvailablePairs(w http.ResponseWriter, r *http.Request) {
	pairs, err := s.translations.AvailablePairs(r.Context())
	if err != nil {
		log.Error("Failed to fetch language pairs: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, pairs)
}

func (s *Server) handleCaptionCreated(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if !isCanonicalVideoID(id) {
		writeError(w, http.StatusBadRequest, "invalid video id")
		return
	}
	if err := s.translations.Invalidate(r.Context(), id); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleDirectorySync(w http.ResponseWriter, r *http.Request) {
	if s.directory == nil {
		writeError(w, http.StatusNotImplemented, "directory is not configured")
		return
	}

	var req directorySyncRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	for _, v := range req.Videos {
		if !isCanonicalVideoID(v.UUID) {
			writeError(w, http.StatusBadRequest, "invalid video id")
			return
		}
	}

	ctx := r.Context()
	for _, u := range req.Users {
		if err := s.directory.UpsertUser(ctx, u.ID, u.AccountID); err != nil {
			writeAppError(w, apperr.Wrap(err, apperr.ErrStorage, "failed to store user"))
			return
		}
	}
	for _, c := range req.Channels {
		if err := s.directory.UpsertChannel(ctx, c.ID, c.AccountID); err != nil {
			writeAppError(w, apperr.Wrap(err, apperr.ErrStorage, "failed to store channel"))
			return
		}
	}
	for _, v := range req.Videos {
		if err := s.directory.UpsertVideo(ctx, v.UUID, v.ChannelID); err != nil {
			writeAppError(w, apperr.Wrap(err, apperr.ErrStorage, "failed to store video"))
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"users":    len(req.Users),
		"channels": len(req.Channels),
		"videos":   len(req.Videos),
	})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	if s.settings == nil {
		writeError(w, http.StatusNotImplemented, "settings store is not configured")
		return
	}
	settings, err := s.settings.GetRuntimeSettings()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	if s.settings == nil {
		writeError(w, http.StatusNotImplemented, "settings store is not configured")
		return
	}

	var req config.RuntimeSettings
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	saved, err := s.settings.UpdateRuntimeSettings(req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// handleListJobs lists translation calls without their caption payloads.
func (s *Server) handleListJobs(w http.ResponseWriter, _ *http.Request) {
	list := s.translations.Jobs()
	for _, job := range list {
		stripPayload(job)
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": list})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.translations.Job(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	stripPayload(job)
	writeJSON(w, http.StatusOK, job)
}

// stripPayload drops the caption text from a job snapshot.
func stripPayload(job *jobs.Job) {
	job.Payload.SRT = ""
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

// writeAppError maps the error type onto a status code.
func writeAppError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch apperr.TypeOf(err) {
	case apperr.ErrValidation:
		status = http.StatusBadRequest
	case apperr.ErrAuthorization:
		writeJSON(w, http.StatusForbidden, map[string]any{})
		return
	case apperr.ErrConflict:
		status = http.StatusConflict
	}
	writeError(w, status, err.Error())
}

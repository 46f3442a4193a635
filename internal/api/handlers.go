package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/tazhate/agendasync/internal/domain"
	"github.com/tazhate/agendasync/internal/service"
)

type SourceResponse struct {
	ID           int64   `json:"id"`
	URL          string  `json:"url"`
	Label        string  `json:"label"`
	LastSyncedAt *string `json:"last_synced_at,omitempty"`
	CreatedAt    string  `json:"created_at"`
}

type SyncResponse struct {
	SourceID  int64  `json:"source_id"`
	Processed int    `json:"processed"`
	Inserted  int    `json:"inserted"`
	Updated   int    `json:"updated"`
	Skipped   int    `json:"skipped,omitempty"`
	Error     string `json:"error,omitempty"`
}

type BatchResponse struct {
	Synced    int `json:"synced"`
	Failed    int `json:"failed"`
	Processed int `json:"processed"`
}

type AddSourceResponse struct {
	Source SourceResponse `json:"source"`
	Sync   SyncResponse   `json:"sync"`
}

func sourceResponse(src *domain.Source) SourceResponse {
	resp := SourceResponse{
		ID:        src.ID,
		URL:       src.URL,
		Label:     src.Label,
		CreatedAt: src.CreatedAt.UTC().Format(time.RFC3339),
	}
	if src.LastSyncedAt != nil {
		ts := src.LastSyncedAt.UTC().Format(time.RFC3339)
		resp.LastSyncedAt = &ts
	}
	return resp
}

func syncResponse(res *service.SyncResult) SyncResponse {
	resp := SyncResponse{
		SourceID:  res.SourceID,
		Processed: res.Processed(),
		Inserted:  res.Inserted,
		Updated:   res.Updated,
		Skipped:   res.Dropped,
	}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}
	return resp
}

// POST /api/users/{userID}/sync
// Login-time refresh: per-source failures are logged, never returned.
func (s *Server) handleSyncUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := idParam(r, "userID")
	if !ok {
		jsonError(w, "invalid user id", http.StatusBadRequest)
		return
	}

	batch, err := s.sync.SyncUser(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	jsonResponse(w, http.StatusOK, BatchResponse{
		Synced:    batch.Succeeded(),
		Failed:    len(batch.Failed()),
		Processed: batch.Processed(),
	})
}

// POST /api/users/{userID}/sources
func (s *Server) handleAddSource(w http.ResponseWriter, r *http.Request) {
	userID, ok := idParam(r, "userID")
	if !ok {
		jsonError(w, "invalid user id", http.StatusBadRequest)
		return
	}

	var req struct {
		URL   string `json:"url"`
		Label string `json:"label"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	src, res, err := s.sync.AddSource(r.Context(), userID, req.URL, req.Label)
	if err != nil {
		writeError(w, err)
		return
	}

	jsonResponse(w, http.StatusCreated, AddSourceResponse{
		Source: sourceResponse(src),
		Sync:   syncResponse(res),
	})
}

// DELETE /api/users/{userID}/sources/{sourceID}
func (s *Server) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	userID, ok := idParam(r, "userID")
	if !ok {
		jsonError(w, "invalid user id", http.StatusBadRequest)
		return
	}
	sourceID, ok := idParam(r, "sourceID")
	if !ok {
		jsonError(w, "invalid source id", http.StatusBadRequest)
		return
	}

	if err := s.sync.DeleteSource(r.Context(), userID, sourceID); err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]bool{"deleted": true})
}

// POST /api/users/{userID}/sources/{sourceID}/sync
func (s *Server) handleSyncSource(w http.ResponseWriter, r *http.Request) {
	userID, ok := idParam(r, "userID")
	if !ok {
		jsonError(w, "invalid user id", http.StatusBadRequest)
		return
	}
	sourceID, ok := idParam(r, "sourceID")
	if !ok {
		jsonError(w, "invalid source id", http.StatusBadRequest)
		return
	}

	res, err := s.sync.SyncSource(r.Context(), userID, sourceID)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, syncResponse(res))
}

// GET /api/users/{userID}/agenda
func (s *Server) handleMyAgenda(w http.ResponseWriter, r *http.Request) {
	userID, ok := idParam(r, "userID")
	if !ok {
		jsonError(w, "invalid user id", http.StatusBadRequest)
		return
	}

	blocks, err := s.agenda.MyAgenda(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if blocks == nil {
		blocks = []domain.AgendaBlock{}
	}
	jsonResponse(w, http.StatusOK, blocks)
}

// GET /api/users/{userID}/friends/{friendID}/agenda
func (s *Server) handleFriendAgenda(w http.ResponseWriter, r *http.Request) {
	userID, ok := idParam(r, "userID")
	if !ok {
		jsonError(w, "invalid user id", http.StatusBadRequest)
		return
	}
	friendID, ok := idParam(r, "friendID")
	if !ok {
		jsonError(w, "invalid friend id", http.StatusBadRequest)
		return
	}

	blocks, err := s.agenda.FriendAgenda(r.Context(), userID, friendID)
	if err != nil {
		writeError(w, err)
		return
	}
	if blocks == nil {
		blocks = []domain.AgendaBlock{}
	}
	jsonResponse(w, http.StatusOK, blocks)
}

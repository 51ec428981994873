package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrijs2005/buddyinbox/internal/backup"
	"github.com/dmitrijs2005/buddyinbox/internal/coordinator"
	"github.com/dmitrijs2005/buddyinbox/internal/lock"
	"github.com/dmitrijs2005/buddyinbox/internal/roomlink"
)

type nameRequest struct {
	Name string `json:"name"`
}

type sendRequest struct {
	Body string `json:"body"`
}

type pinRequest struct {
	PIN string `json:"pin"`
}

type roomRequest struct {
	// Room is a room id or a full room link. Empty creates a random room.
	Room string `json:"room"`
}

type roomResponse struct {
	Room string `json:"room"`
	Link string `json:"link"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// fail maps a coordinator error to a status code.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, coordinator.ErrLocked):
		writeError(w, http.StatusLocked, "locked")
	case errors.Is(err, backup.ErrInvalidBackup):
		writeError(w, http.StatusBadRequest, "invalid backup file")
	case errors.Is(err, roomlink.ErrNoRoom):
		writeError(w, http.StatusBadRequest, "no room in link")
	default:
		s.log.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

func (s *Server) writeState(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, s.coord.Snapshot())
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.writeState(w)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if err := s.coord.Login(r.Context(), req.Name); err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeState(w)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.coord.Logout(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeState(w)
}

func (s *Server) handleRemoveUser(w http.ResponseWriter, r *http.Request) {
	if err := s.coord.RemoveUser(r.Context(), chi.URLParam(r, "name")); err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeState(w)
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sent, err := s.coord.Send(r.Context(), req.Body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !sent {
		writeError(w, http.StatusBadRequest, "nothing to send")
		return
	}
	writeJSON(w, http.StatusCreated, s.coord.Snapshot())
}

func (s *Server) handleOpenConversation(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.coord.OpenConversation(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	n, err := s.coord.DeleteConversation(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": n})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	n, err := s.coord.ClearAll(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": n})
}

func (s *Server) handleLock(w http.ResponseWriter, r *http.Request) {
	if err := s.coord.Lock(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeState(w)
}

func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	var req pinRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := s.coord.Unlock(r.Context(), req.PIN)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	switch res {
	case lock.ResultEmpty:
		writeError(w, http.StatusBadRequest, "pin is required")
	case lock.ResultWrongPIN:
		writeError(w, http.StatusForbidden, res.String())
	default:
		writeJSON(w, http.StatusOK, map[string]string{"result": res.String()})
	}
}

func (s *Server) roomResponse() (roomResponse, error) {
	link, err := s.coord.RoomLink()
	if err != nil {
		return roomResponse{}, err
	}
	return roomResponse{Room: s.coord.Room(), Link: link}, nil
}

func (s *Server) handleRoom(w http.ResponseWriter, r *http.Request) {
	resp, err := s.roomResponse()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleJoinRoom(w http.ResponseWriter, r *http.Request) {
	var req roomRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	want := ""
	if strings.TrimSpace(req.Room) != "" {
		room, err := roomlink.Parse(req.Room)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		want = room
	}
	if _, err := s.coord.CreateRoom(r.Context(), want); err != nil {
		s.fail(w, r, err)
		return
	}

	resp, err := s.roomResponse()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLeaveRoom(w http.ResponseWriter, r *http.Request) {
	if err := s.coord.SwitchRoom(r.Context(), ""); err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeState(w)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	data, err := s.coord.Export(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	name := backup.FileName(s.coord.Now())
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBackupBody))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "backup too large")
		return
	}
	if err := s.coord.Import(r.Context(), raw); err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeState(w)
}

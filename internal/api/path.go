package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/arentkievits/odemis/internal/hardware"
	"github.com/arentkievits/odemis/internal/opticalpath"
	"github.com/arentkievits/odemis/internal/stream"
)

// guessStreamName names the stream built from a guess request.
const guessStreamName = "api-guess"

type setPathRequest struct {
	Mode string `json:"mode"`
}

type guessRequest struct {
	Detectors []string `json:"detectors"`
}

// modeView is a settable mode as listed by GET /path/modes.
type modeView struct {
	Name      string              `json:"name"`
	Detector  string              `json:"detector"`
	Alignment bool                `json:"alignment"`
	Guessable bool                `json:"guessable"`
	Current   bool                `json:"current"`
	Targets   opticalpath.Targets `json:"targets"`
}

func (s *Server) handleGetPath(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"microscope": s.path.MicroscopeRole(),
		"mode":       s.path.CurrentMode(),
	})
}

// handleSetPath moves the optical path to the requested mode. Failed moves
// do not fail the request; they are reported in the returned transition.
func (s *Server) handleSetPath(w http.ResponseWriter, r *http.Request) {
	var req setPathRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Mode == "" {
		writeBadRequest(w, "mode is required")
		return
	}

	tr, err := s.path.SetPath(r.Context(), req.Mode)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.logger.Info("optical path changed via API",
		"mode", req.Mode,
		"status", tr.Status,
		"subject", r.Context().Value(ctxKeySubject),
	)
	writeJSON(w, http.StatusOK, tr)
}

func (s *Server) handleListModes(w http.ResponseWriter, _ *http.Request) {
	current := s.path.CurrentMode()
	modes := s.path.Modes()

	out := make([]modeView, 0, len(modes))
	for _, m := range modes {
		out = append(out, modeView{
			Name:      m.Name,
			Detector:  m.Detector,
			Alignment: opticalpath.IsAlignMode(m.Name),
			Guessable: s.path.IsGuessable(m.Name),
			Current:   m.Name == current,
			Targets:   m.Targets,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"modes": out,
		"count": len(out),
	})
}

// handleGuessMode infers the mode for a set of detectors. One detector is
// guessed as a single stream, several as a composite tried in order.
func (s *Server) handleGuessMode(w http.ResponseWriter, r *http.Request) {
	var req guessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(req.Detectors) == 0 {
		writeBadRequest(w, "at least one detector is required")
		return
	}

	streams := make([]stream.Stream, 0, len(req.Detectors))
	for _, role := range req.Detectors {
		streams = append(streams, stream.NewDetectorStream(role, hardware.NewDetector(role)))
	}
	var st stream.Stream = streams[0]
	if len(streams) > 1 {
		st = stream.NewMultiDetectorStream(guessStreamName, streams...)
	}

	mode, err := s.path.GuessMode(st)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"mode": mode})
}

func (s *Server) handleListTransitions(w http.ResponseWriter, r *http.Request) {
	if s.transitions == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "transition history is not available")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	list, err := s.transitions.ListTransitions(r.Context(), limit)
	if err != nil {
		if errors.Is(err, r.Context().Err()) {
			return
		}
		s.logger.Error("listing transitions failed", "error", err)
		writeInternalError(w, "failed to list transitions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"transitions": list,
		"count":       len(list),
	})
}

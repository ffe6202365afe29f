package api

import (
	"net/http"
	"strings"

	"github.com/banshee-data/pointillist/internal/grbl"
	"github.com/banshee-data/pointillist/internal/httputil"
)

func (s *Server) requireController(w http.ResponseWriter) bool {
	if s.ctrl == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "controller is not connected")
		return false
	}
	return true
}

// machineAction wraps a controller call that takes no arguments.
func (s *Server) machineAction(do func(*http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.requireController(w) {
			return
		}
		if err := do(r); err != nil {
			httputil.WriteJSONError(w, errorStatus(err), err.Error())
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (s *Server) machineStatus(w http.ResponseWriter, r *http.Request) {
	if !s.requireController(w) {
		return
	}
	st, err := s.ctrl.Status(r.Context())
	if err != nil {
		httputil.WriteJSONError(w, errorStatus(err), err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, st)
}

// jogRequest moves one axis by Step in the sign of Direction.
type jogRequest struct {
	Axis      string  `json:"axis"`
	Direction int     `json:"direction"`
	Step      float64 `json:"step"`
	Feed      float64 `json:"feed,omitempty"`
}

func (s *Server) jog(w http.ResponseWriter, r *http.Request) {
	if !s.requireController(w) {
		return
	}
	var req jogRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if req.Direction != 1 && req.Direction != -1 {
		httputil.BadRequest(w, "direction must be 1 or -1")
		return
	}
	if !(req.Step > 0) {
		httputil.BadRequest(w, "step must be positive")
		return
	}
	if req.Feed == 0 {
		req.Feed = s.cfg.JogFeed
	}
	j := grbl.Jog{Axis: req.Axis, Distance: float64(req.Direction) * req.Step, Feed: req.Feed}
	cmd, err := j.Command()
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if _, err := s.ctrl.Send(r.Context(), cmd); err != nil {
		httputil.WriteJSONError(w, errorStatus(err), err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "command": cmd})
}

type commandRequest struct {
	Command string `json:"command"`
}

// sendCommand forwards one raw line and returns any messages the
// controller printed before acknowledging it.
func (s *Server) sendCommand(w http.ResponseWriter, r *http.Request) {
	if !s.requireController(w) {
		return
	}
	var req commandRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	line := strings.TrimSpace(req.Command)
	if line == "" {
		httputil.BadRequest(w, "command is empty")
		return
	}
	resp, err := s.ctrl.Send(r.Context(), line)
	if err != nil {
		httputil.WriteJSONError(w, errorStatus(err), err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

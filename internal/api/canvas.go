package api

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/banshee-data/pointillist/internal/db"
	"github.com/banshee-data/pointillist/internal/gcode"
	"github.com/banshee-data/pointillist/internal/httputil"
	"github.com/banshee-data/pointillist/internal/palette"
	"github.com/banshee-data/pointillist/internal/security"
)

type canvasState struct {
	Rows       int            `json:"rows"`
	Cols       int            `json:"cols"`
	Background palette.ID     `json:"background"`
	UndoDepth  int            `json:"undo_depth"`
	Grid       [][]palette.ID `json:"grid"`
}

func (s *Server) canvasState() canvasState {
	rows, cols := s.canvas.Size()
	return canvasState{
		Rows:       rows,
		Cols:       cols,
		Background: s.canvas.Background(),
		UndoDepth:  s.canvas.UndoDepth(),
		Grid:       s.canvas.Grid().Matrix(),
	}
}

func (s *Server) showCanvas(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, s.canvasState())
}

type paintRequest struct {
	Row int        `json:"row"`
	Col int        `json:"col"`
	ID  palette.ID `json:"id"`
}

func (s *Server) paintCanvas(w http.ResponseWriter, r *http.Request) {
	var req paintRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if !s.cfg.Palette.Contains(req.ID) {
		httputil.BadRequest(w, fmt.Sprintf("unknown paint id %d", req.ID))
		return
	}
	changed, err := s.canvas.Paint(req.Row, req.Col, req.ID)
	if err != nil {
		httputil.WriteJSONError(w, errorStatus(err), err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"changed":    changed,
		"undo_depth": s.canvas.UndoDepth(),
	})
}

func (s *Server) undoCanvas(w http.ResponseWriter, r *http.Request) {
	undone := s.canvas.Undo()
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"undone":     undone,
		"undo_depth": s.canvas.UndoDepth(),
	})
}

func (s *Server) clearCanvas(w http.ResponseWriter, r *http.Request) {
	s.canvas.Clear()
	httputil.WriteJSON(w, http.StatusOK, s.canvasState())
}

type exportRequest struct {
	Name string `json:"name"`
}

type exportResponse struct {
	Path  string      `json:"path"`
	JobID string      `json:"job_id,omitempty"`
	Stats gcode.Stats `json:"stats"`
}

// exportCanvas writes the canvas program under the output directory and,
// when a database is attached, records it as a job.
func (s *Server) exportCanvas(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		req.Name = "canvas"
	}

	ids := s.canvas.Grid()
	prog, err := gcode.Generate(ids, s.cfg.Palette, s.cfg.Gcode)
	if err != nil {
		httputil.WriteJSONError(w, errorStatus(err), err.Error())
		return
	}

	if err := os.MkdirAll(s.cfg.OutputDir, 0o755); err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to create output dir: %v", err))
		return
	}
	path, err := security.ExportPath(s.cfg.OutputDir, req.Name, ".gcode")
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if err := os.WriteFile(path, []byte(prog.String()), 0o644); err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to write program: %v", err))
		return
	}
	log.Printf("exported canvas to %s (%d lines)", path, len(prog.Lines))

	resp := exportResponse{Path: path, Stats: prog.Stats()}
	if s.db != nil {
		job := &db.Job{
			Source:           "canvas:" + security.SanitizeFilename(req.Name),
			Rows:             ids.Rows,
			Cols:             ids.Cols,
			RegionSize:       1,
			FeedRate:         s.cfg.Gcode.FeedRate,
			EngageHeight:     s.cfg.Gcode.EngageHeight,
			InstructionCount: len(prog.Lines),
			GCode:            prog.String(),
			Grid:             toMatrix(ids),
			CreatedAt:        s.Now(),
		}
		if err := s.db.CreateJob(job); err != nil {
			httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to store job: %v", err))
			return
		}
		resp.JobID = job.ID
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

package api

import (
	"bytes"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/banshee-data/pointillist/internal/db"
	"github.com/banshee-data/pointillist/internal/gcode"
	"github.com/banshee-data/pointillist/internal/httputil"
	"github.com/banshee-data/pointillist/internal/palette"
	"github.com/banshee-data/pointillist/internal/preview"
	"github.com/banshee-data/pointillist/internal/quantize"
	"github.com/banshee-data/pointillist/internal/raster"
	"github.com/banshee-data/pointillist/internal/security"
)

// jobParams are the optional form fields of a job upload.
type jobParams struct {
	rows, cols int
	opts       quantize.Options
	seed       uint64
	gcode      gcode.Options
}

func (s *Server) parseJobParams(r *http.Request) (jobParams, error) {
	p := jobParams{
		rows:  s.cfg.ImageRows,
		cols:  s.cfg.ImageCols,
		opts:  s.cfg.Quantize,
		seed:  s.Seed(),
		gcode: s.cfg.Gcode,
	}
	ints := []struct {
		field string
		dst   *int
	}{
		{"rows", &p.rows},
		{"cols", &p.cols},
		{"region_size", &p.opts.RegionSize},
	}
	for _, f := range ints {
		if v := r.FormValue(f.field); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return p, fmt.Errorf("invalid %s %q", f.field, v)
			}
			*f.dst = n
		}
	}
	floats := []struct {
		field string
		dst   *float64
	}{
		{"sharpness", &p.opts.Sharpness},
		{"feed_rate", &p.gcode.FeedRate},
		{"engage_height", &p.gcode.EngageHeight},
	}
	for _, f := range floats {
		if v := r.FormValue(f.field); v != "" {
			x, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return p, fmt.Errorf("invalid %s %q", f.field, v)
			}
			*f.dst = x
		}
	}
	if v := r.FormValue("seed"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return p, fmt.Errorf("invalid seed %q", v)
		}
		p.seed = seed
	}
	if v := r.FormValue("skip_empty"); v != "" {
		skip, err := strconv.ParseBool(v)
		if err != nil {
			return p, fmt.Errorf("invalid skip_empty %q", v)
		}
		if skip {
			p.gcode.EmptyBlocks = gcode.SkipEmptyBlocks
		} else {
			p.gcode.EmptyBlocks = gcode.EmitEmptyBlocks
		}
	}
	return p, nil
}

// jobResponse is a stored job plus program statistics.
type jobResponse struct {
	*db.Job
	Stats *gcode.Stats `json:"stats,omitempty"`
}

func (s *Server) createJob(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		httputil.ServiceUnavailable(w, "job storage")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		httputil.BadRequest(w, "invalid upload: "+err.Error())
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		httputil.BadRequest(w, "missing image file")
		return
	}
	defer file.Close()

	params, err := s.parseJobParams(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	grid, err := raster.Decode(file, params.rows, params.cols)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	ids, err := quantize.Quantize(grid, s.cfg.Palette, params.opts, quantize.NewRand(params.seed))
	if err != nil {
		httputil.WriteJSONError(w, errorStatus(err), err.Error())
		return
	}
	prog, err := gcode.Generate(ids, s.cfg.Palette, params.gcode)
	if err != nil {
		httputil.WriteJSONError(w, errorStatus(err), err.Error())
		return
	}

	job := JobRecord(security.SanitizeFilename(filepath.Base(header.Filename)), ids, s.cfg.Palette, params.opts, params.seed, params.gcode, prog)
	job.CreatedAt = s.Now()
	if err := s.db.CreateJob(job); err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to store job: %v", err))
		return
	}
	log.Printf("created job %s from %s: %dx%d dots, %d lines", job.ID, job.Source, job.Rows, job.Cols, job.InstructionCount)

	stats := prog.Stats()
	httputil.WriteJSON(w, http.StatusCreated, jobResponse{Job: job, Stats: &stats})
}

// JobRecord describes a generated program for storage. CreatedAt is left
// for the caller.
func JobRecord(source string, ids *quantize.IDGrid, p palette.Palette, opts quantize.Options, seed uint64, gopts gcode.Options, prog *gcode.Program) *db.Job {
	job := &db.Job{
		Source:           source,
		Rows:             ids.Rows,
		Cols:             ids.Cols,
		RegionSize:       opts.RegionSize,
		Sharpness:        opts.Sharpness,
		Seed:             seed,
		FeedRate:         gopts.FeedRate,
		EngageHeight:     gopts.EngageHeight,
		InstructionCount: len(prog.Lines),
		GCode:            prog.String(),
		Grid:             toMatrix(ids),
	}
	for _, u := range quantize.Usage(ids, p) {
		job.Colors = append(job.Colors, db.JobColor{ColorID: int(u.ID), Name: u.Name, Hex: u.Hex, Cells: u.Cells})
	}
	return job
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		httputil.ServiceUnavailable(w, "job storage")
		return
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			httputil.BadRequest(w, "Invalid 'limit' parameter")
			return
		}
		limit = n
	}
	jobs, err := s.db.ListJobs(limit)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to list jobs: %v", err))
		return
	}
	if jobs == nil {
		jobs = []db.Job{}
	}
	httputil.WriteJSON(w, http.StatusOK, jobs)
}

// loadJob fetches the job named in the path, writing the error response
// itself when it fails.
func (s *Server) loadJob(w http.ResponseWriter, r *http.Request) (*db.Job, bool) {
	if s.db == nil {
		httputil.ServiceUnavailable(w, "job storage")
		return nil, false
	}
	job, err := s.db.GetJob(r.PathValue("id"))
	if err != nil {
		httputil.WriteJSONError(w, errorStatus(err), err.Error())
		return nil, false
	}
	return job, true
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.loadJob(w, r)
	if !ok {
		return
	}
	prog, err := gcode.ReadProgram(bytes.NewBufferString(job.GCode))
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	stats := prog.Stats()
	httputil.WriteJSON(w, http.StatusOK, jobResponse{Job: job, Stats: &stats})
}

func (s *Server) jobGcode(w http.ResponseWriter, r *http.Request) {
	job, ok := s.loadJob(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.gcode", job.ID))
	if _, err := w.Write([]byte(job.GCode)); err != nil {
		log.Printf("failed to write gcode for job %s: %v", job.ID, err)
	}
}

func (s *Server) jobGrid(w http.ResponseWriter, r *http.Request) (*db.Job, *quantize.IDGrid, bool) {
	job, ok := s.loadJob(w, r)
	if !ok {
		return nil, nil, false
	}
	ids, err := fromMatrix(job.Grid)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, err.Error())
		return nil, nil, false
	}
	return job, ids, true
}

func (s *Server) jobPreview(w http.ResponseWriter, r *http.Request) {
	job, ids, ok := s.jobGrid(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := preview.RenderChart(w, ids, s.cfg.Palette, s.cfg.Gcode.Layout, job.Source); err != nil {
		log.Printf("failed to render preview for job %s: %v", job.ID, err)
	}
}

func (s *Server) jobDots(w http.ResponseWriter, r *http.Request) {
	job, ids, ok := s.jobGrid(w, r)
	if !ok {
		return
	}
	dot := preview.DefaultDot
	if v := r.URL.Query().Get("dot"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 64 {
			httputil.BadRequest(w, "Invalid 'dot' parameter")
			return
		}
		dot = n
	}
	w.Header().Set("Content-Type", "image/png")
	if err := preview.WritePNG(w, preview.DotImage(ids, s.cfg.Palette, dot)); err != nil {
		log.Printf("failed to write dots for job %s: %v", job.ID, err)
	}
}

func (s *Server) jobPath(w http.ResponseWriter, r *http.Request) {
	job, ok := s.loadJob(w, r)
	if !ok {
		return
	}
	prog, err := gcode.ReadProgram(bytes.NewBufferString(job.GCode))
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	var buf bytes.Buffer
	if err := preview.WritePathPNG(&buf, prog, s.cfg.Palette, 8, 8); err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(buf.Bytes())
}

func (s *Server) jobRuns(w http.ResponseWriter, r *http.Request) {
	job, ok := s.loadJob(w, r)
	if !ok {
		return
	}
	runs, err := s.db.Runs(job.ID)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []db.Run{}
	}
	httputil.WriteJSON(w, http.StatusOK, runs)
}

func toMatrix(g *quantize.IDGrid) [][]int {
	out := make([][]int, g.Rows)
	for r := range out {
		row := make([]int, g.Cols)
		for c, id := range g.Row(r) {
			row[c] = int(id)
		}
		out[r] = row
	}
	return out
}

func fromMatrix(m [][]int) (*quantize.IDGrid, error) {
	ids := make([][]palette.ID, len(m))
	for r, row := range m {
		ids[r] = make([]palette.ID, len(row))
		for c, v := range row {
			ids[r][c] = palette.ID(v)
		}
	}
	return quantize.FromMatrix(ids)
}

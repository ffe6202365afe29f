// Package api serves the plotter's HTTP interface: job generation and
// history, the manual paint canvas, and machine control.
package api

import (
	"errors"
	"log"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/pointillist/internal/canvas"
	"github.com/banshee-data/pointillist/internal/db"
	"github.com/banshee-data/pointillist/internal/gcode"
	"github.com/banshee-data/pointillist/internal/grbl"
	"github.com/banshee-data/pointillist/internal/httputil"
	"github.com/banshee-data/pointillist/internal/palette"
	"github.com/banshee-data/pointillist/internal/preview"
	"github.com/banshee-data/pointillist/internal/quantize"
	"github.com/banshee-data/pointillist/internal/raster"
	"github.com/banshee-data/pointillist/internal/serialmux"
)

// ANSI escape codes for the access log.
const (
	colorCyan      = "\033[36m"
	colorReset     = "\033[0m"
	colorYellow    = "\033[33m"
	colorBoldGreen = "\033[1;32m"
	colorBoldRed   = "\033[1;31m"
)

// maxUploadSize bounds multipart image uploads.
const maxUploadSize = 32 << 20

// Config holds the generation settings a Server applies to every request
// that does not override them.
type Config struct {
	Palette    palette.Palette
	Gcode      gcode.Options
	Quantize   quantize.Options
	ImageRows  int
	ImageCols  int
	CanvasRows int
	CanvasCols int
	OutputDir  string
	// JogFeed is used when a jog request has no feed.
	JogFeed float64
}

// Server routes HTTP requests to the generator, the database and the
// controller. The database and controller are optional; their endpoints
// answer 503 when absent.
type Server struct {
	m      serialmux.SerialMuxInterface
	ctrl   *grbl.Controller
	db     *db.DB
	cfg    Config
	canvas *canvas.Canvas

	// Now and Seed are replaceable in tests.
	Now  func() time.Time
	Seed func() uint64
}

// NewServer builds a server and its manual canvas.
func NewServer(m serialmux.SerialMuxInterface, ctrl *grbl.Controller, database *db.DB, cfg Config) (*Server, error) {
	if cfg.Palette.Len() == 0 {
		return nil, errors.New("api: palette is empty")
	}
	if cfg.JogFeed <= 0 {
		cfg.JogFeed = 1000
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "output"
	}
	cv, err := canvas.New(cfg.CanvasRows, cfg.CanvasCols, canvasFill(cfg.Palette))
	if err != nil {
		return nil, err
	}
	return &Server{
		m:      m,
		ctrl:   ctrl,
		db:     database,
		cfg:    cfg,
		canvas: cv,
		Now:    time.Now,
		Seed:   rand.Uint64,
	}, nil
}

// canvasFill is the background, or the first paint when there is none.
func canvasFill(p palette.Palette) palette.ID {
	if bg := p.Background(); bg != palette.NoBackground {
		return bg
	}
	return p.IDs()[0]
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	code := strconv.Itoa(statusCode)
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + code + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + code + colorReset
	case statusCode >= 400:
		return colorBoldRed + code + colorReset
	default:
		return code
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux registers every route. Admin and debug routes are attached
// separately by the caller.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/palette", s.showPalette)
	mux.HandleFunc("GET /api/palette/swatch.png", s.paletteSwatch)

	mux.HandleFunc("POST /api/jobs", s.createJob)
	mux.HandleFunc("GET /api/jobs", s.listJobs)
	mux.HandleFunc("GET /api/jobs/{id}", s.getJob)
	mux.HandleFunc("GET /api/jobs/{id}/gcode", s.jobGcode)
	mux.HandleFunc("GET /api/jobs/{id}/preview", s.jobPreview)
	mux.HandleFunc("GET /api/jobs/{id}/dots.png", s.jobDots)
	mux.HandleFunc("GET /api/jobs/{id}/path.png", s.jobPath)
	mux.HandleFunc("GET /api/jobs/{id}/runs", s.jobRuns)

	mux.HandleFunc("GET /api/canvas", s.showCanvas)
	mux.HandleFunc("POST /api/canvas/paint", s.paintCanvas)
	mux.HandleFunc("POST /api/canvas/undo", s.undoCanvas)
	mux.HandleFunc("POST /api/canvas/clear", s.clearCanvas)
	mux.HandleFunc("POST /api/canvas/export", s.exportCanvas)

	mux.HandleFunc("GET /api/status", s.machineStatus)
	mux.HandleFunc("POST /api/jog", s.jog)
	mux.HandleFunc("POST /api/command", s.sendCommand)
	mux.HandleFunc("POST /api/home", s.machineAction(func(r *http.Request) error { return s.ctrl.Home(r.Context()) }))
	mux.HandleFunc("POST /api/reset", s.machineAction(func(r *http.Request) error { return s.ctrl.SoftReset(r.Context()) }))
	mux.HandleFunc("POST /api/zero", s.machineAction(func(r *http.Request) error { return s.ctrl.ZeroAll(r.Context()) }))
	mux.HandleFunc("POST /api/resume", s.machineAction(func(*http.Request) error { return s.ctrl.Resume() }))
	mux.HandleFunc("POST /api/hold", s.machineAction(func(*http.Request) error { return s.ctrl.FeedHold() }))
	return mux
}

// AttachAdminRoutes adds the serial console and database pages under
// /debug/.
func (s *Server) AttachAdminRoutes(mux *http.ServeMux) error {
	if s.m != nil {
		s.m.AttachAdminRoutes(mux)
	}
	if s.db != nil {
		return s.db.AttachAdminRoutes(mux)
	}
	return nil
}

// errorStatus maps domain errors to HTTP status codes.
func errorStatus(err error) int {
	var rejected *grbl.ResponseError
	switch {
	case errors.Is(err, db.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, quantize.ErrInvalidInput),
		errors.Is(err, gcode.ErrInvalidInput),
		errors.Is(err, palette.ErrInvalidInput),
		errors.Is(err, raster.ErrInvalidInput),
		errors.Is(err, canvas.ErrOutOfBounds),
		errors.Is(err, grbl.ErrLineTooLong):
		return http.StatusBadRequest
	case errors.As(err, &rejected):
		return http.StatusConflict
	case errors.Is(err, grbl.ErrTransport):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

type paletteEntry struct {
	ID         palette.ID `json:"id"`
	Name       string     `json:"name"`
	Hex        string     `json:"hex"`
	Background bool       `json:"background,omitempty"`
}

func paletteEntries(p palette.Palette) []paletteEntry {
	entries := p.Entries()
	out := make([]paletteEntry, len(entries))
	for i, e := range entries {
		out[i] = paletteEntry{ID: e.ID, Name: e.Name, Hex: e.Hex(), Background: e.ID == p.Background()}
	}
	return out
}

func (s *Server) showPalette(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"background": s.cfg.Palette.Background(),
		"entries":    paletteEntries(s.cfg.Palette),
	})
}

func (s *Server) paletteSwatch(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/png")
	if err := preview.WritePNG(w, palette.Swatch(s.cfg.Palette, 48)); err != nil {
		log.Printf("failed to write swatch: %v", err)
	}
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/pointillist/internal/api"
	"github.com/banshee-data/pointillist/internal/health"
)

// apiConfig builds the API settings from the configuration file.
func (a *app) apiConfig() (api.Config, error) {
	p, err := a.cfg.GetPalette()
	if err != nil {
		return api.Config{}, err
	}
	rows, cols := a.cfg.GetImageSize()
	canvasRows, canvasCols := a.cfg.GetCanvasSize()
	return api.Config{
		Palette:    p,
		Gcode:      a.cfg.GcodeOptions(),
		Quantize:   a.cfg.QuantizeOptions(),
		ImageRows:  rows,
		ImageCols:  cols,
		CanvasRows: canvasRows,
		CanvasCols: canvasCols,
		OutputDir:  a.cfg.GetOutputDir(),
	}, nil
}

func (a *app) serve(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(a.out)
	listen := fs.String("listen", a.cfg.GetListen(), "HTTP listen address")
	grpcListen := fs.String("grpc-listen", a.cfg.GetGRPCListen(), "gRPC health listen address; empty disables it")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *listen == "" {
		return errors.New("listen address is required")
	}

	apiCfg, err := a.apiConfig()
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := a.connect(ctx)
	if err != nil {
		return fmt.Errorf("failed to open controller: %w", err)
	}
	defer conn.Close()

	database, err := a.openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	srv, err := api.NewServer(conn.mux, conn.ctrl, database, apiCfg)
	if err != nil {
		return err
	}
	mux := srv.ServeMux()
	if err := srv.AttachAdminRoutes(mux); err != nil {
		return err
	}

	if *grpcListen != "" {
		hs := health.NewServer()
		if err := hs.Listen(*grpcListen); err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			hs.Track(ctx, conn.mux)
			hs.Stop()
			log.Printf("health routine stopped")
		}()
	}

	server := &http.Server{
		Addr:              *listen,
		Handler:           api.LoggingMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()

		go func() {
			log.Printf("HTTP server listening on %s", *listen)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
				stop()
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}
		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")

	select {
	case err := <-serveErr:
		return fmt.Errorf("failed to start server: %w", err)
	default:
		return nil
	}
}

package serialmux

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/pointillist/internal/monitoring"
)

// localHostRequest makes the request look local so tsweb's debug access
// check passes.
func localHostRequest(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.RemoteAddr = "127.0.0.1:12345"
	return req
}

func TestAdminRoutes_SendCommandAPI(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)
	httpMux := http.NewServeMux()
	mux.AttachAdminRoutes(httpMux)

	tests := []struct {
		name    string
		method  string
		command string
		status  int
		written string
	}{
		{"line", http.MethodPost, "G0 X1", http.StatusOK, "G0 X1\n"},
		{"realtime", http.MethodPost, "~", http.StatusOK, "~"},
		{"soft reset", http.MethodPost, "ctrl-x", http.StatusOK, "\x18"},
		{"blank", http.MethodPost, "   ", http.StatusBadRequest, ""},
		{"wrong method", http.MethodGet, "G0", http.StatusMethodNotAllowed, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port.WriteBuffer.Reset()
			form := url.Values{"command": {tt.command}}
			req := localHostRequest(tt.method, "/debug/send-command-api", strings.NewReader(form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			w := httptest.NewRecorder()
			httpMux.ServeHTTP(w, req)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.status, w.Body.String())
			}
			if got := port.Written(); got != tt.written {
				t.Errorf("written = %q, want %q", got, tt.written)
			}
		})
	}
}

func TestAdminRoutes_SendCommandPage(t *testing.T) {
	httpMux := http.NewServeMux()
	NewSerialMux(NewTestableSerialPort()).AttachAdminRoutes(httpMux)

	w := httptest.NewRecorder()
	httpMux.ServeHTTP(w, localHostRequest(http.MethodGet, "/debug/send-command", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "tail.js") {
		t.Errorf("send-command page: %d %q", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	httpMux.ServeHTTP(w, localHostRequest(http.MethodGet, "/debug/tail.js", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "EventSource") {
		t.Errorf("tail.js: %d", w.Code)
	}
}

func TestAdminRoutes_TailStreamsLines(t *testing.T) {
	monitoring.SetLogger(nil)
	t.Cleanup(monitoring.RestoreLogger)

	d := NewDisabledSerialMux()
	httpMux := http.NewServeMux()
	d.AttachAdminRoutes(httpMux)
	srv := httptest.NewServer(httpMux)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/debug/tail", nil)
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	r := bufio.NewReader(resp.Body)
	if line, _ := r.ReadString('\n'); line != ": ping\n" {
		t.Fatalf("first line = %q", line)
	}
	_, _ = r.ReadString('\n')

	// The disabled mux acknowledges each command, which the tail relays.
	if err := d.SendCommand("G90"); err != nil {
		t.Fatal(err)
	}
	if line, _ := r.ReadString('\n'); line != "data: ok\n" {
		t.Errorf("event = %q", line)
	}
}

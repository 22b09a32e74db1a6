package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kcearns/landing-server/cmd/config"
	"github.com/kcearns/landing-server/cmd/handlers"
	"github.com/kcearns/landing-server/cmd/logger"
	"github.com/kcearns/landing-server/cmd/metrics"
	"github.com/kcearns/landing-server/cmd/middleware"
)

var securityHeaders = map[string]string{
	"X-Content-Type-Options": "nosniff",
	"X-Frame-Options":        "DENY",
	"X-XSS-Protection":       "1; mode=block",
}

func testLogger() *logger.Logger {
	return logger.NewWithWriter(io.Discard, logger.LevelError, "json")
}

func newTestServer(t *testing.T, mutate func(*config.Config)) (*Server, metrics.Client) {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	if mutate != nil {
		mutate(cfg)
	}

	var m metrics.Client = &metrics.NoOpClient{}
	if cfg.Metrics.Enabled {
		m = metrics.NewPrometheusClient(cfg.Metrics.Namespace)
	}

	s, err := New(cfg, testLogger(), m)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	t.Cleanup(s.close)
	return s, m
}

func get(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func assertSecurityHeaders(t *testing.T, header http.Header) {
	t.Helper()
	for k, v := range securityHeaders {
		if got := header.Get(k); got != v {
			t.Errorf("Header %s: expected %q, got %q", k, v, got)
		}
	}
}

func TestLandingPage(t *testing.T) {
	s, _ := newTestServer(t, nil)

	w := get(t, s.Handler(), "GET", "/")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	body := w.Body.String()
	if !strings.Contains(body, handlers.LandingPage().Heading) {
		t.Error("Expected heading text in landing page")
	}

	hrefs := regexp.MustCompile(`<a\s[^>]*href="([^"]+)"`).FindAllStringSubmatch(body, -1)
	if len(hrefs) != 2 {
		t.Fatalf("Expected exactly 2 links, got %d", len(hrefs))
	}
	if hrefs[0][1] != "/api/health" {
		t.Errorf("Expected first link to /api/health, got %s", hrefs[0][1])
	}
	if hrefs[1][1] != handlers.RepositoryURL {
		t.Errorf("Expected second link to %s, got %s", handlers.RepositoryURL, hrefs[1][1])
	}

	assertSecurityHeaders(t, w.Header())
}

func TestLandingPageIdempotent(t *testing.T) {
	s, _ := newTestServer(t, nil)

	first := get(t, s.Handler(), "GET", "/").Body.Bytes()
	for i := 0; i < 20; i++ {
		if got := get(t, s.Handler(), "GET", "/?i=1").Body.Bytes(); !bytes.Equal(first, got) {
			t.Fatalf("Response %d differs from the first", i)
		}
	}

	// A second server stands in for another process
	other, _ := newTestServer(t, nil)
	if got := get(t, other.Handler(), "GET", "/").Body.Bytes(); !bytes.Equal(first, got) {
		t.Error("Landing page differs between server instances")
	}
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := newTestServer(t, nil)

	w := get(t, s.Handler(), "GET", "/api/health")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if w.Body.String() != `{"status":"ok"}` {
		t.Errorf("Expected {\"status\":\"ok\"}, got %q", w.Body.String())
	}

	var status map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("Health response is not JSON: %v", err)
	}
	if status["status"] != "ok" {
		t.Errorf("Expected status ok, got %q", status["status"])
	}

	assertSecurityHeaders(t, w.Header())
}

func TestUndefinedPaths(t *testing.T) {
	s, _ := newTestServer(t, nil)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{"GET", "/nonexistent", http.StatusNotFound},
		{"GET", "/api", http.StatusNotFound},
		{"GET", "/api/health/extra", http.StatusNotFound},
		{"GET", "/index.html", http.StatusNotFound},
		{"POST", "/api/health", http.StatusMethodNotAllowed},
		{"DELETE", "/", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := get(t, s.Handler(), tt.method, tt.path)
			if w.Code != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, w.Code)
			}
			if w.Code < 400 {
				t.Errorf("Undefined route must produce status >= 400, got %d", w.Code)
			}
			assertSecurityHeaders(t, w.Header())
		})
	}
}

// The mux redirects unclean paths to their cleaned form before routing, so an
// undefined path may answer 301 first; the redirect target still ends in 404.
func TestUncleanPathsRedirect(t *testing.T) {
	s, _ := newTestServer(t, nil)

	tests := []struct {
		path         string
		wantLocation string
		wantFinal    int
	}{
		{"//nonexistent", "/nonexistent", http.StatusNotFound},
		{"/api/../nonexistent", "/nonexistent", http.StatusNotFound},
		{"/api/./health", "/api/health", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := get(t, s.Handler(), "GET", tt.path)
			if w.Code != http.StatusMovedPermanently {
				t.Fatalf("Expected 301, got %d", w.Code)
			}
			if loc := w.Header().Get("Location"); loc != tt.wantLocation {
				t.Errorf("Expected Location %q, got %q", tt.wantLocation, loc)
			}
			assertSecurityHeaders(t, w.Header())

			final := get(t, s.Handler(), "GET", w.Header().Get("Location"))
			if final.Code != tt.wantFinal {
				t.Errorf("Expected redirect target to answer %d, got %d", tt.wantFinal, final.Code)
			}
			assertSecurityHeaders(t, final.Header())
		})
	}
}

func TestConcurrentHealthChecks(t *testing.T) {
	s, _ := newTestServer(t, func(c *config.Config) {
		c.Metrics.Enabled = true
		c.Metrics.Port = 9099
		c.Logger.AccessLog = true
		c.RateLimit.Enabled = true
		c.RateLimit.RequestsPerWindow = 1
	})
	h := s.Handler()

	const n = 1000
	codes := make([]int, n)
	bodies := make([]string, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest("GET", "/api/health", nil))
			codes[i] = w.Code
			bodies[i] = w.Body.String()
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if codes[i] != http.StatusOK {
			t.Fatalf("Request %d returned %d", i, codes[i])
		}
		if bodies[i] != bodies[0] {
			t.Fatalf("Request %d body %q diverges from %q", i, bodies[i], bodies[0])
		}
	}
}

func TestConcurrentHealthChecksOverNetwork(t *testing.T) {
	s, _ := newTestServer(t, nil)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	client := &http.Client{
		Timeout:   10 * time.Second,
		Transport: &http.Transport{MaxIdleConnsPerHost: 64},
	}
	defer client.CloseIdleConnections()

	const n = 1000
	sem := make(chan struct{}, 64)
	errs := make(chan error, n)
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			resp, err := client.Get(srv.URL + "/api/health")
			if err != nil {
				errs <- err
				return
			}
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)

			if resp.StatusCode != http.StatusOK || string(body) != `{"status":"ok"}` {
				errs <- errors.New("unexpected response: " + resp.Status + " " + string(body))
				return
			}
			for k, v := range securityHeaders {
				if resp.Header.Get(k) != v {
					errs <- errors.New("missing security header " + k)
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatal(err)
	}
}

func TestRateLimitSparesHealth(t *testing.T) {
	s, _ := newTestServer(t, func(c *config.Config) {
		c.RateLimit.Enabled = true
		c.RateLimit.RequestsPerWindow = 2
	})
	h := s.Handler()

	for i := 0; i < 2; i++ {
		if w := get(t, h, "GET", "/"); w.Code != http.StatusOK {
			t.Fatalf("Landing request %d should succeed, got %d", i+1, w.Code)
		}
	}

	w := get(t, h, "GET", "/")
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("Expected 429 after limit, got %d", w.Code)
	}
	assertSecurityHeaders(t, w.Header())

	for i := 0; i < 50; i++ {
		if w := get(t, h, "GET", "/api/health"); w.Code != http.StatusOK {
			t.Fatalf("Health request %d throttled with %d", i+1, w.Code)
		}
	}
}

func TestAccessLogHeader(t *testing.T) {
	s, _ := newTestServer(t, func(c *config.Config) { c.Logger.AccessLog = true })

	w := get(t, s.Handler(), "GET", "/api/health")
	if w.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("Expected request ID header when access log is enabled")
	}
	if w.Body.String() != `{"status":"ok"}` {
		t.Errorf("Access log must not change the body, got %q", w.Body.String())
	}

	s, _ = newTestServer(t, nil)
	if w := get(t, s.Handler(), "GET", "/api/health"); w.Header().Get(middleware.RequestIDHeader) != "" {
		t.Error("Request ID header should be absent when access log is disabled")
	}
}

func TestMetricsListener(t *testing.T) {
	s, m := newTestServer(t, func(c *config.Config) {
		c.Metrics.Enabled = true
		c.Metrics.Port = 9099
	})
	RecordBuildInfo(m, time.Unix(1700000000, 0))

	get(t, s.Handler(), "GET", "/api/health")
	get(t, s.Handler(), "GET", "/missing")

	// /metrics is not part of the public route table
	if w := get(t, s.Handler(), "GET", "/metrics"); w.Code != http.StatusNotFound {
		t.Errorf("Expected /metrics to be absent from the public listener, got %d", w.Code)
	}

	w := get(t, s.private.Handler, "GET", "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected metrics listener to serve /metrics, got %d", w.Code)
	}

	body := w.Body.String()
	for _, want := range []string{
		`landing_http_requests_total{method="GET",route="health",status_code="200"} 1`,
		`landing_http_requests_total{method="GET",route="other",status_code="404"} 2`,
		`landing_build_info{version="` + logger.Version + `"} 1`,
		`landing_start_time_seconds 1.7e+09`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("Expected metrics to contain %q", want)
		}
	}
}

func TestServeAndShutdown(t *testing.T) {
	s, _ := newTestServer(t, func(c *config.Config) {
		c.Server.ShutdownTimeout = 2 * time.Second
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln, nil) }()

	url := "http://" + ln.Addr().String() + "/api/health"
	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = http.Get(url)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("Server never became reachable: %v", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 from running server, got %d", resp.StatusCode)
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Server did not shut down")
	}

	if _, err := http.Get(url); err == nil {
		t.Error("Expected connection failure after shutdown")
	}
}

func TestRunReportsListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	s, _ := newTestServer(t, func(c *config.Config) { c.Server.Port = port })

	if err := s.Run(context.Background()); err == nil {
		t.Error("Expected error when the port is already in use")
	}
}

package httpkit

import (
	"bytes"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"
)

func TestNewClientDefaults(t *testing.T) {
	c := NewClient()
	if c.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", c.Timeout)
	}
	if _, ok := c.Transport.(*userAgentTransport); !ok {
		t.Errorf("Transport = %T, want *userAgentTransport", c.Transport)
	}
}

func TestUserAgentInjected(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	c := NewClient(WithUserAgent("calldeck-test/1.0"))
	resp, err := c.Get(srv.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	DrainAndClose(resp.Body, 1024)

	if got != "calldeck-test/1.0" {
		t.Errorf("User-Agent = %q, want calldeck-test/1.0", got)
	}
}

func TestUserAgentNotOverridden(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	c := NewClient()
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	req.Header.Set("User-Agent", "custom/2.0")
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	DrainAndClose(resp.Body, 1024)

	if got != "custom/2.0" {
		t.Errorf("User-Agent = %q, want custom/2.0", got)
	}
}

// flakyTransport fails with a retryable error n times before delegating.
type flakyTransport struct {
	failures int32
	base     http.RoundTripper
	calls    int32
}

func (f *flakyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	atomic.AddInt32(&f.calls, 1)
	if atomic.AddInt32(&f.failures, -1) >= 0 {
		return nil, &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}
	}
	return f.base.RoundTrip(req)
}

func TestRetryOnConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ft := &flakyTransport{failures: 2, base: http.DefaultTransport}
	c := NewClient(WithTransport(ft), WithRetry(3, time.Millisecond))

	resp, err := c.Get(srv.URL)
	if err != nil {
		t.Fatalf("Get after retries: %v", err)
	}
	DrainAndClose(resp.Body, 1024)

	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}
	if calls := atomic.LoadInt32(&ft.calls); calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryRewindsPostBody(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		got = string(b)
	}))
	defer srv.Close()

	ft := &flakyTransport{failures: 1, base: http.DefaultTransport}
	c := NewClient(WithTransport(ft), WithRetry(2, time.Millisecond))

	resp, err := c.Post(srv.URL, "application/json", strings.NewReader(`{"k":"v"}`))
	if err != nil {
		t.Fatalf("Post after retry: %v", err)
	}
	DrainAndClose(resp.Body, 1024)

	if got != `{"k":"v"}` {
		t.Errorf("server saw body %q, want full payload", got)
	}
}

func TestRetryExhausted(t *testing.T) {
	ft := &flakyTransport{failures: 10, base: http.DefaultTransport}
	c := NewClient(WithTransport(ft), WithRetry(2, time.Millisecond))

	_, err := c.Get("http://127.0.0.1:0/")
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	// Original attempt plus two retries.
	if calls := atomic.LoadInt32(&ft.calls); calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"host unreachable", syscall.EHOSTUNREACH, true},
		{"net unreachable", syscall.ENETUNREACH, true},
		{"refused", syscall.ECONNREFUSED, true},
		{"refused in op error", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, true},
		{"reset excluded", syscall.ECONNRESET, false},
		{"plain error", errors.New("nope"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryableError(tt.err); got != tt.want {
				t.Errorf("isRetryableError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestReadErrorBody(t *testing.T) {
	body := io.NopCloser(bytes.NewReader([]byte("bad request: missing information")))
	got := ReadErrorBody(body, 16)
	if got != "bad request: mis" {
		t.Errorf("ReadErrorBody = %q", got)
	}
	if got := ReadErrorBody(nil, 16); got != "" {
		t.Errorf("ReadErrorBody(nil) = %q, want empty", got)
	}
}

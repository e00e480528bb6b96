package netcheck

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func okResolver(context.Context, string) error { return nil }

func newTestProbe(t *testing.T, srv *httptest.Server) *Probe {
	t.Helper()
	p := New(testLogger())
	p.Resolve = okResolver
	p.ReferenceEndpoint = srv.URL
	p.Endpoints = []string{srv.URL}
	p.Timeout = 2 * time.Second
	t.Cleanup(p.Close)
	return p
}

func TestCheckSucceeds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := newTestProbe(t, srv)
	result := p.Check(context.Background())

	assert.True(t, result.IsConnected)
	assert.True(t, result.DNSOk)
	assert.True(t, result.HTTPSOk)
	assert.Equal(t, []string{srv.URL}, result.TestedEndpoints)
	assert.Empty(t, result.Error)
	assert.Greater(t, result.Latency, time.Duration(0))
}

func TestReferenceEndpointProbedOnce(t *testing.T) {
	var referenceHits int
	reference := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		referenceHits++
		w.WriteHeader(http.StatusOK)
	}))
	defer reference.Close()
	candidate := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer candidate.Close()

	p := newTestProbe(t, reference)
	p.Endpoints = []string{candidate.URL}

	result := p.Check(context.Background())
	require.True(t, result.IsConnected)

	// Latency comes from the reachability request itself, not a re-probe.
	assert.Equal(t, 1, referenceHits)
	assert.Greater(t, result.Latency, time.Duration(0))
}

func TestDNSFailureShortCircuits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no HTTP request expected after DNS failure")
	}))
	defer srv.Close()

	p := newTestProbe(t, srv)
	p.Resolve = func(context.Context, string) error { return errors.New("NXDOMAIN") }

	result := p.Check(context.Background())
	assert.False(t, result.IsConnected)
	assert.False(t, result.DNSOk)
	assert.False(t, result.HTTPSOk)
	assert.Contains(t, result.Error, "DNS resolution failed")
	assert.Empty(t, result.TestedEndpoints)
}

func TestHTTPSFailureShortCircuits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := newTestProbe(t, srv)
	result := p.Check(context.Background())

	assert.False(t, result.IsConnected)
	assert.True(t, result.DNSOk)
	assert.False(t, result.HTTPSOk)
	assert.Contains(t, result.Error, "HTTPS connectivity check failed")
}

func TestOverrideEndpointReplacesCandidateList(t *testing.T) {
	var endpointHits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpointHits++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := newTestProbe(t, srv)
	p.Endpoints = []string{"https://never-contacted.example.invalid"}
	p.OverrideEndpoint = srv.URL

	result := p.Check(context.Background())
	require.True(t, result.IsConnected)
	assert.Equal(t, []string{srv.URL}, result.TestedEndpoints)
}

func TestCandidateSweepStopsAtFirstSuccess(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer good.Close()
	unreached := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("endpoint after first success must not be probed")
	}))
	defer unreached.Close()

	p := newTestProbe(t, good)
	p.Endpoints = []string{bad.URL, good.URL, unreached.URL}

	result := p.Check(context.Background())
	require.True(t, result.IsConnected)
	assert.Equal(t, []string{bad.URL, good.URL}, result.TestedEndpoints)
}

func TestNoEndpointReachable(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer good.Close()

	p := newTestProbe(t, good)
	p.Endpoints = []string{bad.URL, bad.URL}

	result := p.Check(context.Background())
	assert.False(t, result.IsConnected)
	assert.Equal(t, "failed to connect to any endpoint", result.Error)
	assert.Len(t, result.TestedEndpoints, 2)
}

func TestClosedProbe(t *testing.T) {
	p := New(testLogger())
	p.Close()

	result := p.Check(context.Background())
	assert.False(t, result.IsConnected)
	assert.Equal(t, ErrProbeClosed.Error(), result.Error)
}

package transfer

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPEngineFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.zip":
			fmt.Fprint(w, "zip-bytes")
		case "/slow.zip":
			time.Sleep(200 * time.Millisecond)
			fmt.Fprint(w, "late")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	fs := afero.NewMemMapFs()
	engine, err := NewHTTPEngine(fs, HTTPEngineConfig{Concurrency: 2, ItemTimeout: 5 * time.Second})
	require.NoError(t, err)

	reqs := []Request{
		{URL: srv.URL + "/ok.zip", Dest: "/mirror/a/ok.zip"},
		{URL: srv.URL + "/missing.zip", Dest: "/mirror/a/missing.zip"},
		{URL: srv.URL + "/ok.zip", Dest: "/mirror/b/ok.zip"},
	}
	outcomes := engine.Fetch(context.Background(), reqs)
	require.Len(t, outcomes, 3)

	// Outcomes keep submission order even though items ran concurrently.
	assert.Equal(t, reqs[0], outcomes[0].Request)
	assert.Equal(t, reqs[1], outcomes[1].Request)
	assert.Equal(t, reqs[2], outcomes[2].Request)

	assert.True(t, outcomes[0].OK())
	assert.False(t, outcomes[1].OK())
	assert.Contains(t, outcomes[1].Err.Error(), "status 404")
	assert.True(t, outcomes[2].OK())

	data, err := afero.ReadFile(fs, "/mirror/a/ok.zip")
	require.NoError(t, err)
	assert.Equal(t, "zip-bytes", string(data))

	// A failed item must not leave a destination or partial file behind.
	exists, _ := afero.Exists(fs, "/mirror/a/missing.zip")
	assert.False(t, exists)
	exists, _ = afero.Exists(fs, "/mirror/a/missing.zip.part")
	assert.False(t, exists)
}

func TestHTTPEngineTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	fs := afero.NewMemMapFs()
	engine, err := NewHTTPEngine(fs, HTTPEngineConfig{Concurrency: 1, ItemTimeout: 50 * time.Millisecond})
	require.NoError(t, err)

	outcomes := engine.Fetch(context.Background(), []Request{{URL: srv.URL + "/x.zip", Dest: "/mirror/x.zip"}})
	require.Len(t, outcomes, 1)
	require.False(t, outcomes[0].OK())
	assert.Equal(t, "timeout", outcomes[0].Err.Error())
}

func TestHTTPEnginePartialFailureDoesNotAbortBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad.zip" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, "payload")
	}))
	defer srv.Close()

	fs := afero.NewMemMapFs()
	engine, err := NewHTTPEngine(fs, HTTPEngineConfig{Concurrency: 4})
	require.NoError(t, err)

	reqs := make([]Request, 0, 6)
	for i := 0; i < 5; i++ {
		reqs = append(reqs, Request{URL: fmt.Sprintf("%s/f%d.zip", srv.URL, i), Dest: fmt.Sprintf("/m/f%d.zip", i)})
	}
	reqs = append(reqs, Request{URL: srv.URL + "/bad.zip", Dest: "/m/bad.zip"})

	outcomes := engine.Fetch(context.Background(), reqs)
	okCount := 0
	for _, o := range outcomes {
		if o.OK() {
			okCount++
		}
	}
	assert.Equal(t, 5, okCount)
	assert.False(t, outcomes[5].OK())
}

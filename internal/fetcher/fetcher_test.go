package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elder-shield/guardian-engine/internal/config"
)

func testFetcher() *Fetcher {
	return New(config.FetcherConfig{
		Timeout:      2 * time.Second,
		MaxRedirects: 3,
		MaxBodyBytes: 1024,
		UserAgent:    "GuardianEngine/test",
	}, slog.Default())
}

func TestFetch_Basic(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>hello</body></html>")
	}))
	defer server.Close()

	page, err := testFetcher().Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Contains(t, page.Body, "hello")
	assert.Equal(t, 0, page.RedirectCount)
}

func TestFetch_FollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/end", http.StatusFound)
	})
	mux.HandleFunc("/end", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "landed")
	})

	page, err := testFetcher().Fetch(context.Background(), server.URL+"/start")
	require.NoError(t, err)
	assert.Equal(t, 1, page.RedirectCount)
	assert.Contains(t, page.Body, "landed")
	assert.True(t, strings.HasSuffix(page.FinalURL, "/end"))
}

func TestFetch_BodySizeCapped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, strings.Repeat("x", 10_000))
	}))
	defer server.Close()

	page, err := testFetcher().Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Len(t, page.Body, 1024)
}

func TestFetch_Unreachable(t *testing.T) {
	_, err := testFetcher().Fetch(context.Background(), "http://127.0.0.1:1/")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnreachable))
}

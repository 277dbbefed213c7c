package zoom

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/relay/config"
)

func testZoomConfig(baseURL string) config.ZoomConfig {
	return config.ZoomConfig{
		AccountID:       "acct-1",
		ClientID:        "client-1",
		ClientSecret:    "secret-1",
		APIBaseURL:      baseURL + "/v2",
		OAuthBaseURL:    baseURL,
		TokenTimeoutSec: 2,
		PageTimeoutSec:  2,
		MaxPages:        10,
	}
}

func TestTokenSource_Token(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/oauth/token", r.URL.Path)
		assert.Equal(t, "account_credentials", r.URL.Query().Get("grant_type"))
		assert.Equal(t, "acct-1", r.URL.Query().Get("account_id"))
		want := "Basic " + base64.StdEncoding.EncodeToString([]byte("client-1:secret-1"))
		assert.Equal(t, want, r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-123","token_type":"bearer","expires_in":3599}`))
	}))
	defer srv.Close()

	ts := NewTokenSource(testZoomConfig(srv.URL), srv.Client(), nil)
	tok, err := ts.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-123", tok)
}

func TestTokenSource_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "non-2xx",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"reason":"Invalid client_id or client_secret"}`))
			},
		},
		{
			name: "missing token field",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"token_type":"bearer"}`))
			},
		},
		{
			name: "garbage body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`<html>`))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := NewTokenSource(testZoomConfig(srv.URL), srv.Client(), nil).Token(context.Background())
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrAuth))
		})
	}
}

func TestTokenSource_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ts := NewTokenSource(testZoomConfig(srv.URL), srv.Client(), nil)
	ts.timeout = 50 * time.Millisecond

	start := time.Now()
	_, err := ts.Token(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAuth))
	assert.Less(t, time.Since(start), 2*time.Second)
}

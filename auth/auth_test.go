package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenServer(t *testing.T, expiresIn int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"access_token":"token%d","token_type":"bearer","expires_in":%d}`, n, expiresIn)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestTokenCachedAndHeaderSet(t *testing.T) {
	srv, calls := tokenServer(t, 3600)
	client := NewClientCred(Conf{ClientID: "id", ClientSecret: "secret", AuthURL: srv.URL})
	ctx := context.Background()

	tok, err := client.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "token1", tok.AccessToken)

	req, _ := http.NewRequest(http.MethodPost, "http://mmt.local/status", nil)
	require.NoError(t, client.SetAuthHeader(ctx, req))
	assert.Equal(t, "Bearer token1", req.Header.Get("Authorization"))
	assert.EqualValues(t, 1, calls.Load())

	fresh, err := client.ForceRefresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, "token2", fresh)
}

func TestTokenError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()
	_, err := NewClientCred(Conf{ClientID: "id", AuthURL: srv.URL}).Token(context.Background())
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestConfEnabled(t *testing.T) {
	assert.False(t, Conf{}.Enabled())
	assert.True(t, Conf{ClientID: "a", AuthURL: "http://x"}.Enabled())
}

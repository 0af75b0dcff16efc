package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenServer(t *testing.T, calls *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"token123","token_type":"bearer","expires_in":3600}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGetTokenAndSetAuthHeader(t *testing.T) {
	var calls int32
	srv := tokenServer(t, &calls)
	client := NewClientCred(Conf{ClientID: "id", ClientSecret: "secret", TokenURL: srv.URL}, nil)

	token, err := client.Token()
	require.NoError(t, err)
	assert.Equal(t, "token123", token)

	req, _ := http.NewRequest("GET", "http://example.com", nil)
	require.NoError(t, client.SetAuthHeader(req))
	assert.Equal(t, "Bearer token123", req.Header.Get("Authorization"))
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls), "token is cached")
}

func TestClientAddsBearer(t *testing.T) {
	var calls int32
	tokens := tokenServer(t, &calls)
	var got string
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer api.Close()

	cred := NewClientCred(Conf{ClientID: "id", ClientSecret: "secret", TokenURL: tokens.URL}, nil)
	resp, err := cred.Client().Get(api.URL)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, "Bearer token123", got)
}

func TestForceRefresh(t *testing.T) {
	var calls int32
	srv := tokenServer(t, &calls)
	cred := NewClientCred(Conf{ClientID: "id", TokenURL: srv.URL}, nil)
	_, err := cred.Token()
	require.NoError(t, err)
	_, err = cred.ForceRefresh(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestConfEnabled(t *testing.T) {
	assert.False(t, Conf{}.Enabled())
	assert.True(t, Conf{ClientID: "x"}.Enabled())
}

package profile

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ieltsprediction/payment-server/config"
	"github.com/ieltsprediction/payment-server/internal/model"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(&config.ProfileConfig{
		BaseURL: srv.URL + "/",
		APIKey:  "secret-key",
		Timeout: time.Second,
	})
}

func TestClient_GetProfile(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/profiles/user-1", r.URL.Path)
		assert.Equal(t, "Bearer secret-key", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"email":"lan@example.com","name":"Lan","isPro":true,"expirationDate":"2026-11-01"}`))
	})

	p, err := client.GetProfile(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", p.UserID)
	assert.Equal(t, "lan@example.com", p.Email)
	assert.True(t, p.IsPro)
	assert.Equal(t, "2026-11-01", p.ExpirationDate)
}

func TestClient_GetProfile_NotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.GetProfile(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestClient_GetProfile_ServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down"))
	})

	_, err := client.GetProfile(context.Background(), "user-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestClient_UpdateProfile(t *testing.T) {
	var got model.ProfileUpdate
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/profiles/user-1", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	})

	err := client.UpdateProfile(context.Background(), "user-1", model.ProfileUpdate{
		IsPro:          true,
		ExpirationDate: "2026-12-01",
	})
	require.NoError(t, err)
	assert.True(t, got.IsPro)
	assert.Equal(t, "2026-12-01", got.ExpirationDate)
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client := NewClient(&config.ProfileConfig{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})

	_, err := client.GetProfile(context.Background(), "user-1")
	assert.Error(t, err)
}

func TestClient_EmptyUserID(t *testing.T) {
	client := NewClient(&config.ProfileConfig{BaseURL: "http://127.0.0.1:1"})

	err := client.UpdateProfile(context.Background(), "", model.ProfileUpdate{})
	assert.Error(t, err)
}

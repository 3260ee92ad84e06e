package directory_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenride/seed-engine/directory"
	"github.com/greenride/seed-engine/seed"
)

func TestClient_ResolveEmail(t *testing.T) {
	ctx := context.Background()

	t.Run("known email resolves", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/users/by-email", r.URL.Path)
			assert.Equal(t, "kim@example.com", r.URL.Query().Get("email"))
			w.Write([]byte(`{"userId":"driver-1"}`))
		}))
		defer srv.Close()

		client := directory.NewClient(srv.URL, time.Second, zerolog.Nop())
		id, err := client.ResolveEmail(ctx, "kim@example.com")
		require.NoError(t, err)
		assert.Equal(t, "driver-1", id)
	})

	t.Run("404 maps to not found", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		client := directory.NewClient(srv.URL, time.Second, zerolog.Nop())
		_, err := client.ResolveEmail(ctx, "ghost@example.com")
		assert.True(t, errors.Is(err, directory.ErrUserNotFound))
	})

	t.Run("server errors map to upstream lookup failures", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		client := directory.NewClient(srv.URL, time.Second, zerolog.Nop())
		_, err := client.ResolveEmail(ctx, "kim@example.com")
		assert.True(t, errors.Is(err, seed.ErrUpstreamLookup))
	})

	t.Run("empty user id in the body is treated as not found", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{}`))
		}))
		defer srv.Close()

		client := directory.NewClient(srv.URL, time.Second, zerolog.Nop())
		_, err := client.ResolveEmail(ctx, "kim@example.com")
		assert.True(t, errors.Is(err, directory.ErrUserNotFound))
	})
}

func TestStatic(t *testing.T) {
	resolver := directory.Static{"kim@example.com": "driver-1"}

	id, err := resolver.ResolveEmail(context.Background(), "kim@example.com")
	require.NoError(t, err)
	assert.Equal(t, "driver-1", id)

	_, err = resolver.ResolveEmail(context.Background(), "ghost@example.com")
	assert.True(t, errors.Is(err, directory.ErrUserNotFound))
}

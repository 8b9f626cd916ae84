package creators_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tipzed/go-tipzed/client"
	"github.com/tipzed/go-tipzed/creators"
	"github.com/tipzed/go-tipzed/session"
)

func newService(t *testing.T, handler http.Handler) (*creators.Service, *session.Manager) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	sess, err := session.NewManager(session.NewMemoryStore())
	require.NoError(t, err)

	c, err := client.New(client.Config{BaseURL: server.URL, MaxRequests: 1000}, sess)
	require.NoError(t, err)

	service, err := creators.NewService(c)
	require.NoError(t, err)
	return service, sess
}

func TestService_All(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /creators/all/", func(w http.ResponseWriter, r *http.Request) {
		require.Empty(t, r.Header.Get("Authorization"), "catalog is public")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "success",
			"data": []map[string]any{
				{"id": 1, "slug": "zed-dev", "display_name": "Zed Dev", "wallet_id": 11},
				{"id": 2, "slug": "chanda", "display_name": "Chanda", "wallet_id": 22},
			},
		})
	})

	service, sess := newService(t, mux)
	// Even a logged-in browser must not leak its token to the catalog.
	require.NoError(t, sess.SetTokens("access-1", "refresh-1"))

	all, err := service.All(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "zed-dev", all[0].Slug)
	require.EqualValues(t, 22, all[1].WalletID)
}

func TestService_BySlug(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /creators/zed-dev/", func(w http.ResponseWriter, r *http.Request) {
		require.Empty(t, r.Header.Get("Authorization"), "profile reads are public")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "success",
			"data":   map[string]any{"id": 1, "slug": "zed-dev", "display_name": "Zed Dev", "wallet_id": 11},
		})
	})

	service, sess := newService(t, mux)
	require.NoError(t, sess.SetTokens("access-1", "refresh-1"))

	creator, err := service.BySlug(context.Background(), "zed-dev")
	require.NoError(t, err)
	require.Equal(t, "Zed Dev", creator.DisplayName)

	_, err = service.BySlug(context.Background(), "")
	require.Error(t, err)
}

func TestService_UpdateProfile(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /creators/profile/me", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer access-1", r.Header.Get("Authorization"), "own profile is private")
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "New Bio", req["bio"])
		_, hasCategory := req["category"]
		require.False(t, hasCategory)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "success",
			"data":   map[string]any{"id": 1, "slug": "zed-dev", "bio": "New Bio", "wallet_id": 11},
		})
	})

	service, sess := newService(t, mux)
	require.NoError(t, sess.SetTokens("access-1", "refresh-1"))

	bio := "New Bio"
	creator, err := service.UpdateProfile(context.Background(), creators.UpdateRequest{Bio: &bio})
	require.NoError(t, err)
	require.Equal(t, "New Bio", creator.Bio)
}

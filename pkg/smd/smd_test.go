package smd

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/OpenCHAMI/wattbox/pkg/inventory"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSMD accepts each endpoint ID once and records every request.
type fakeSMD struct {
	mu       sync.Mutex
	known    map[string]bool
	requests []string
	auth     []string
}

func (f *fakeSMD) handler() http.Handler {
	r := chi.NewRouter()
	r.Route("/hsm/v2/Inventory/RedfishEndpoints", func(r chi.Router) {
		r.Post("/", func(w http.ResponseWriter, r *http.Request) {
			var ep inventory.RedfishEndpoint
			if err := json.NewDecoder(r.Body).Decode(&ep); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			f.mu.Lock()
			defer f.mu.Unlock()
			f.requests = append(f.requests, "POST "+ep.ID)
			f.auth = append(f.auth, r.Header.Get("Authorization"))
			if f.known[ep.ID] {
				http.Error(w, "already exists", http.StatusConflict)
				return
			}
			f.known[ep.ID] = true
			w.WriteHeader(http.StatusCreated)
		})
		r.Put("/{xname}", func(w http.ResponseWriter, r *http.Request) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.requests = append(f.requests, "PUT "+chi.URLParam(r, "xname"))
		})
	})
	return r
}

func setup(t *testing.T) (*fakeSMD, *Client) {
	t.Helper()
	f := &fakeSMD{known: map[string]bool{}}
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL+"/", WithAccessToken("abc"), WithCACert(""))
	require.NoError(t, err)
	return f, c
}

func endpoint() inventory.RedfishEndpoint {
	inv := inventory.PDUInventory{
		Hostname: "10.0.0.5",
		Outlets:  []inventory.PDUOutlet{{ID: "1", Name: "Router"}},
	}
	return inventory.ToEndpoint(inv, inventory.Placement{Cabinet: 1000})
}

func TestSendAddsEndpoint(t *testing.T) {
	f, c := setup(t)
	require.NoError(t, c.Send(context.Background(), endpoint(), false))

	assert.Equal(t, []string{"POST x1000m0"}, f.requests)
	assert.Equal(t, []string{"Bearer abc"}, f.auth)
}

func TestSendConflict(t *testing.T) {
	f, c := setup(t)
	ctx := context.Background()
	require.NoError(t, c.Send(ctx, endpoint(), false))

	err := c.Send(ctx, endpoint(), false)
	require.Error(t, err)
	assert.True(t, IsConflict(err))
	assert.Contains(t, err.Error(), "already exists")

	require.NoError(t, c.Send(ctx, endpoint(), true))
	assert.Equal(t, []string{"POST x1000m0", "POST x1000m0", "POST x1000m0", "PUT x1000m0"}, f.requests)
}

func TestWithCACertMissingFile(t *testing.T) {
	_, err := NewClient("https://smd.local", WithCACert("/nonexistent/ca.pem"))
	assert.Error(t, err)
}

package cmd

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/OpenCHAMI/wattbox/internal/cache/sqlite"
	"github.com/OpenCHAMI/wattbox/internal/util"
	"github.com/OpenCHAMI/wattbox/pkg/inventory"
	"github.com/OpenCHAMI/wattbox/pkg/wattbox"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const statusDoc = `{
	"voltage": 121.3,
	"model": "WB-800-IPVM-6",
	"outlets": [
		{"number": 1, "name": "Router", "on": true, "watts": 11.2, "amps": 0.1, "energy": 3.5},
		{"number": 2, "name": "Switch", "on": false},
		{"number": 3, "name": "Modem", "on": true, "resetOnly": true}
	]
}`

type device struct {
	mu       sync.Mutex
	commands []string
}

func (d *device) handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/main", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>WattBox</body></html>"))
	})
	r.Get("/api/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(statusDoc))
	})
	r.Get("/outlet/{action}", func(w http.ResponseWriter, r *http.Request) {
		d.mu.Lock()
		d.commands = append(d.commands, chi.URLParam(r, "action")+" "+r.URL.Query().Get("o"))
		d.mu.Unlock()
	})
	return r
}

func run(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func setup(t *testing.T) (*device, string, string) {
	t.Helper()
	dev := &device{}
	srv := httptest.NewServer(dev.handler())
	t.Cleanup(srv.Close)
	cache := filepath.Join(t.TempDir(), "snapshots.db")
	t.Setenv("MASTER_KEY", "")
	return dev, srv.URL, cache
}

func TestStatusCachesSnapshot(t *testing.T) {
	_, host, cache := setup(t)
	require.NoError(t, run(t, "status", "-H", host, "--cache", cache, "-F", "json", "-l", "disabled"))

	snap, err := sqlite.GetSnapshot(cache, util.HostID(host))
	require.NoError(t, err)
	assert.Len(t, snap.Outlets, 3)
	assert.Equal(t, "WB-800-IPVM-6", snap.Device.Model)
	assert.Equal(t, 3.5, snap.EnergyKWh[1])

	require.NoError(t, run(t, "status", "-H", host, "--cache", cache, "--cached", "-F", "yaml", "-l", "disabled"))
}

func TestOutletPartialFailure(t *testing.T) {
	dev, host, cache := setup(t)
	err := run(t, "outlet", "off", "1", "3", "2", "-H", host, "--cache", cache, "-l", "disabled")
	require.Error(t, err)
	assert.ErrorIs(t, err, wattbox.ErrUnsupported, "outlet 3 is reset-only")
	assert.Contains(t, err.Error(), "1 of 3 outlet commands failed")

	dev.mu.Lock()
	defer dev.mu.Unlock()
	assert.Equal(t, []string{"off 1", "off 2"}, dev.commands)
}

func TestOutletRejectsBadIndex(t *testing.T) {
	dev, host, cache := setup(t)
	err := run(t, "outlet", "on", "zero", "-H", host, "--cache", cache, "-l", "disabled")
	require.Error(t, err)
	assert.Empty(t, dev.commands)
}

func TestSendRegistersEndpoint(t *testing.T) {
	_, host, cache := setup(t)

	var got inventory.RedfishEndpoint
	smd := chi.NewRouter()
	smd.Post("/hsm/v2/Inventory/RedfishEndpoints", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusCreated)
	})
	srv := httptest.NewServer(smd)
	t.Cleanup(srv.Close)

	require.NoError(t, run(t, "send", "-H", host, "--cache", cache, "-l", "disabled",
		"-m", `{"default": {"cabinet": 1000, "controller": 1}}`, srv.URL))

	assert.Equal(t, "x1000m1", got.ID)
	assert.Equal(t, "WB-800-IPVM-6", got.PDUInventory.Model)
	require.Len(t, got.PDUInventory.Outlets, 3)
	assert.Equal(t, "x1000m1p0v3", got.PDUInventory.Outlets[2].ID)
}

package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/OpenCHAMI/wattbox/internal/cache"
	"github.com/OpenCHAMI/wattbox/internal/util"
	"github.com/OpenCHAMI/wattbox/pkg/wattbox"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DEVICES_TABLE_NAME = "wattbox_devices"
	OUTLETS_TABLE_NAME = "wattbox_outlets"
)

var ErrNotCached = errors.New("no cached snapshot")

// CachedDevice is one row of the devices table.
type CachedDevice struct {
	Host       string    `db:"host" json:"host"`
	Voltage    *float64  `db:"voltage" json:"voltage,omitempty"`
	TotalWatts *float64  `db:"total_watts" json:"total_watts,omitempty"`
	TotalAmps  *float64  `db:"total_amps" json:"total_amps,omitempty"`
	Model      string    `db:"model" json:"model,omitempty"`
	Serial     string    `db:"serial" json:"serial,omitempty"`
	Firmware   string    `db:"firmware" json:"firmware,omitempty"`
	FetchedAt  time.Time `db:"fetched_at" json:"fetched_at"`
}

type cachedOutlet struct {
	Host      string   `db:"host"`
	Index     int      `db:"idx"`
	Name      string   `db:"name"`
	IsOn      bool     `db:"is_on"`
	ResetOnly bool     `db:"reset_only"`
	Watts     *float64 `db:"watts"`
	Amps      *float64 `db:"amps"`
	EnergyKWh *float64 `db:"energy_kwh"`
}

func CreateSnapshotCacheIfNotExists(path string) (*sqlx.DB, error) {
	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		host 		TEXT NOT NULL PRIMARY KEY,
		voltage 	REAL,
		total_watts REAL,
		total_amps 	REAL,
		model 		TEXT NOT NULL DEFAULT '',
		serial 		TEXT NOT NULL DEFAULT '',
		firmware 	TEXT NOT NULL DEFAULT '',
		fetched_at 	TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS %s (
		host 		TEXT NOT NULL,
		idx 		INTEGER NOT NULL,
		name 		TEXT NOT NULL DEFAULT '',
		is_on 		INTEGER NOT NULL,
		reset_only 	INTEGER NOT NULL,
		watts 		REAL,
		amps 		REAL,
		energy_kwh 	REAL,
		PRIMARY KEY (host, idx)
	);
	`, DEVICES_TABLE_NAME, OUTLETS_TABLE_NAME)
	if err := util.EnsureParentDir(path); err != nil {
		return nil, err
	}
	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return db, nil
}

// InsertSnapshot replaces the cached snapshot for host.
func InsertSnapshot(path string, host string, t wattbox.Telemetry) error {
	db, err := CreateSnapshotCacheIfNotExists(path)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	device := CachedDevice{
		Host:       host,
		Voltage:    t.Voltage,
		TotalWatts: t.TotalWatts,
		TotalAmps:  t.TotalAmps,
		Model:      t.Device.Model,
		Serial:     t.Device.Serial,
		Firmware:   t.Device.Firmware,
		FetchedAt:  t.FetchedAt,
	}
	_, err = tx.NamedExec(fmt.Sprintf(`INSERT OR REPLACE INTO %s
		(host, voltage, total_watts, total_amps, model, serial, firmware, fetched_at)
		VALUES (:host, :voltage, :total_watts, :total_amps, :model, :serial, :firmware, :fetched_at);`, DEVICES_TABLE_NAME), &device)
	if err != nil {
		return fmt.Errorf("failed to store device: %w", err)
	}

	// outlets that disappeared from the device must not linger
	_, err = tx.Exec(fmt.Sprintf(`DELETE FROM %s WHERE host = ?;`, OUTLETS_TABLE_NAME), host)
	if err != nil {
		return fmt.Errorf("failed to clear outlets: %w", err)
	}
	for _, o := range t.Outlets {
		row := cachedOutlet{
			Host:      host,
			Index:     o.Index,
			Name:      o.Name,
			IsOn:      o.IsOn,
			ResetOnly: o.ResetOnly,
			Watts:     o.Watts,
			Amps:      o.Amps,
		}
		if e, ok := t.EnergyKWh[o.Index]; ok {
			row.EnergyKWh = &e
		}
		_, err = tx.NamedExec(fmt.Sprintf(`INSERT OR REPLACE INTO %s
			(host, idx, name, is_on, reset_only, watts, amps, energy_kwh)
			VALUES (:host, :idx, :name, :is_on, :reset_only, :watts, :amps, :energy_kwh);`, OUTLETS_TABLE_NAME), &row)
		if err != nil {
			return fmt.Errorf("failed to store outlet %d: %w", o.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetSnapshot returns the cached snapshot for host, or ErrNotCached.
func GetSnapshot(path string, host string) (*wattbox.Telemetry, error) {
	db, err := openExisting(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var device CachedDevice
	err = db.Get(&device, fmt.Sprintf("SELECT * FROM %s WHERE host = ?;", DEVICES_TABLE_NAME), host)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", host, ErrNotCached)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve device: %w", err)
	}

	outlets := []cachedOutlet{}
	err = db.Select(&outlets, fmt.Sprintf("SELECT * FROM %s WHERE host = ? ORDER BY idx ASC;", OUTLETS_TABLE_NAME), host)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve outlets: %w", err)
	}

	t := &wattbox.Telemetry{
		Voltage:    device.Voltage,
		TotalWatts: device.TotalWatts,
		TotalAmps:  device.TotalAmps,
		Device: wattbox.DeviceInfo{
			Model:    device.Model,
			Serial:   device.Serial,
			Firmware: device.Firmware,
		},
		FetchedAt: device.FetchedAt,
		Outlets:   make([]wattbox.OutletState, 0, len(outlets)),
	}
	for _, o := range outlets {
		t.Outlets = append(t.Outlets, wattbox.OutletState{
			Index:     o.Index,
			Name:      o.Name,
			IsOn:      o.IsOn,
			ResetOnly: o.ResetOnly,
			Watts:     o.Watts,
			Amps:      o.Amps,
		})
		if o.EnergyKWh != nil {
			if t.EnergyKWh == nil {
				t.EnergyKWh = map[int]float64{}
			}
			t.EnergyKWh[o.Index] = *o.EnergyKWh
		}
	}
	return t, nil
}

func GetCachedHosts(path string) ([]CachedDevice, error) {
	db, err := openExisting(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	results := []CachedDevice{}
	err = db.Select(&results, fmt.Sprintf("SELECT * FROM %s ORDER BY host ASC;", DEVICES_TABLE_NAME))
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve devices: %w", err)
	}
	return results, nil
}

func DeleteSnapshots(path string, hosts ...string) error {
	if len(hosts) == 0 {
		return fmt.Errorf("no hosts given")
	}
	db, err := openExisting(path)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	for _, host := range hosts {
		if host == "" {
			continue
		}
		for _, table := range []string{OUTLETS_TABLE_NAME, DEVICES_TABLE_NAME} {
			if _, err := tx.Exec(fmt.Sprintf("DELETE FROM %s WHERE host = ?;", table), host); err != nil {
				return fmt.Errorf("failed to delete %s from %s: %w", host, table, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// openExisting opens the cache without creating it when the file is missing.
func openExisting(path string) (*sqlx.DB, error) {
	if _, exists := util.PathExists(path); !exists {
		return nil, fmt.Errorf("no cache found at %s", path)
	}
	return CreateSnapshotCacheIfNotExists(path)
}

// SnapshotCache is the file backed cache.Cache of device snapshots. It also
// serves as the poller's sink.
type SnapshotCache struct {
	Path string
}

var _ cache.Cache[wattbox.Telemetry] = SnapshotCache{}

func (c SnapshotCache) Store(host string, t wattbox.Telemetry) error {
	return InsertSnapshot(c.Path, host, t)
}

func (c SnapshotCache) Insert(path string, host string, t wattbox.Telemetry) error {
	return InsertSnapshot(path, host, t)
}

func (c SnapshotCache) Get(path string, host string) (wattbox.Telemetry, error) {
	t, err := GetSnapshot(path, host)
	if err != nil {
		return wattbox.Telemetry{}, err
	}
	return *t, nil
}

func (c SnapshotCache) Keys(path string) ([]string, error) {
	devices, err := GetCachedHosts(path)
	if err != nil {
		return nil, err
	}
	hosts := make([]string, 0, len(devices))
	for _, d := range devices {
		hosts = append(hosts, d.Host)
	}
	return hosts, nil
}

func (c SnapshotCache) Delete(path string, hosts ...string) error {
	return DeleteSnapshots(path, hosts...)
}

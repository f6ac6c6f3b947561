package log

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestSet(t *testing.T) {
	var ll LogLevel
	for _, l := range Levels {
		if err := ll.Set(string(l)); err != nil {
			t.Errorf("%s: unexpected error %v", l, err)
		}
	}
	if err := ll.Set("verbose"); err == nil {
		t.Error("expected an error for an unknown level")
	}
}

func TestInitWithLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "wattbox.log")
	if err := InitWithLogLevel(WARN, path); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		Close()
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	})

	log.Info().Msg("hidden")
	log.Warn().Str("host", "pdu1").Msg("shown")

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(b), "hidden") || !strings.Contains(string(b), `"host":"pdu1"`) {
		t.Errorf("unexpected log contents: %s", b)
	}
}

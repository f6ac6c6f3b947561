package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestGetPrefersLinkedValues(t *testing.T) {
	old := Version
	oldCommit := GitCommit
	t.Cleanup(func() {
		Version = old
		GitCommit = oldCommit
	})
	Version = "v1.2.3"
	GitCommit = "0123456789abcdef0123"

	info := Get()
	if info.Version != "v1.2.3" || info.GoVersion != runtime.Version() {
		t.Errorf("unexpected info %+v", info)
	}
	if s := info.String(); !strings.HasPrefix(s, "v1.2.3 (0123456789ab") {
		t.Errorf("unexpected string %q", s)
	}
}

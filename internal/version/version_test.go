package version

import (
	"strings"
	"testing"
)

func stamp(t *testing.T, v, c, b string) {
	t.Helper()
	origVersion, origCommit, origBuildTime := Version, Commit, BuildTime
	t.Cleanup(func() {
		Version, Commit, BuildTime = origVersion, origCommit, origBuildTime
	})
	Version, Commit, BuildTime = v, c, b
}

func TestString(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		stamp(t, "dev", "unknown", "unknown")

		result := String()
		if result != "dev (unknown) built unknown" {
			t.Errorf("String() = %q", result)
		}
	})

	t.Run("stamped values", func(t *testing.T) {
		stamp(t, "0.3.0", "abc1234", "2026-01-15T12:00:00Z")

		result := String()
		for _, want := range []string{"0.3.0", "(abc1234)", "built 2026-01-15T12:00:00Z"} {
			if !strings.Contains(result, want) {
				t.Errorf("String() = %q, should contain %q", result, want)
			}
		}
	})
}

func TestGet(t *testing.T) {
	stamp(t, "0.3.0", "abc1234", "2026-01-15T12:00:00Z")

	info := Get()
	if info.Version != "0.3.0" || info.Commit != "abc1234" || info.BuildTime != "2026-01-15T12:00:00Z" {
		t.Errorf("Get() = %+v", info)
	}
}

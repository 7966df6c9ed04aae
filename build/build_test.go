package build

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromBuildInfo(t *testing.T) {
	t.Parallel()

	vcs := &debug.BuildInfo{
		GoVersion: "go1.25.0",
		Main:      debug.Module{Path: "github.com/fluxstate/fluxfsm", Version: "v0.3.0"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef"},
			{Key: "vcs.time", Value: "2026-01-02T15:04:05Z"},
			{Key: "vcs.modified", Value: "true"},
		},
	}

	tests := []struct {
		name     string
		bi       *debug.BuildInfo
		injected string
		want     string
	}{
		{"module version", vcs, "", "v0.3.0 (0123456-dirty, 2026-01-02T15:04:05Z) go1.25.0"},
		{"injected wins", vcs, "v1.0.0", "v1.0.0 (0123456-dirty, 2026-01-02T15:04:05Z) go1.25.0"},
		{"no vcs", &debug.BuildInfo{GoVersion: "go1.25.0"}, "", "(devel) go1.25.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, fromBuildInfo(tt.bi, tt.injected).String())
		})
	}
}

func TestFromBuildInfoWithoutEmbeddedData(t *testing.T) {
	t.Parallel()

	info := fromBuildInfo(nil, "")
	assert.Equal(t, develVersion, info.Version)
	assert.NotEmpty(t, info.GoVersion)
	assert.Empty(t, info.Commit)

	assert.Equal(t, "v2.0.0", fromBuildInfo(nil, "v2.0.0").Version)
}

func TestCurrent(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Current(), Current())
	assert.NotEmpty(t, Current().Version)
}

package buildinfo

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func stubBuildInfo(t *testing.T, info *debug.BuildInfo, ok bool) {
	t.Helper()
	prev := readBuildInfo
	readBuildInfo = func() (*debug.BuildInfo, bool) { return info, ok }
	t.Cleanup(func() { readBuildInfo = prev })
}

func TestReadWithoutBuildInfo(t *testing.T) {
	stubBuildInfo(t, nil, false)
	assert.Equal(t, Info{Version: "dev"}, Read())
	assert.Equal(t, "dev", Version())
	assert.Equal(t, "dev", Read().String())
}

func TestReadDevelBuild(t *testing.T) {
	stubBuildInfo(t, &debug.BuildInfo{
		GoVersion: "go1.25.0",
		Main:      debug.Module{Version: "(devel)"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef"},
			{Key: "vcs.modified", Value: "true"},
			{Key: "-tags", Value: "debug"},
		},
	}, true)
	info := Read()
	assert.Equal(t, "dev", info.Version)
	assert.Equal(t, "go1.25.0", info.GoVersion)
	assert.True(t, info.Modified)
	assert.Equal(t, "dev (01234567, dirty, tags: debug)", info.String())
}

func TestReadTaggedBuild(t *testing.T) {
	stubBuildInfo(t, &debug.BuildInfo{Main: debug.Module{Version: "v1.2.0"}}, true)
	assert.Equal(t, "v1.2.0", Read().String())
}

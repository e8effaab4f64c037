package build

import (
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestInfoString(t *testing.T) {
	i := &Info{Version: "1.2.0", GoVersion: "go1.25.5", CommitHash: "0123456789abcdef", Modified: true}
	assert.Equal(t, "lobby-pilot 1.2.0 (0123456789ab-dirty, go1.25.5)", i.String())

	i = &Info{Version: "dev", GoVersion: "go1.25.5"}
	assert.Equal(t, "lobby-pilot dev (unknown, go1.25.5)", i.String())
}

func TestGetBuildInfoCarriesVersion(t *testing.T) {
	info := GetBuildInfo()
	assert.Equal(t, Version, info.Version)
	assert.NotEmpty(t, info.GoVersion)
}

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func newTestApp(st *state) *cli.App {
	return &cli.App{
		Name:   "mkcloud",
		Flags:  globalFlags(),
		Before: st.before,
		Action: func(*cli.Context) error { return nil },
	}
}

func TestConfigFlagSelectsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mkcloud.yaml")
	require.NoError(t, os.WriteFile(path, []byte("libvirt_uri: test:///default\nlog_level: debug\n"), 0o644))

	st := &state{}
	require.NoError(t, newTestApp(st).Run([]string{"mkcloud", "--config", path}))

	assert.Equal(t, "test:///default", st.cfg.LibvirtURI)
	assert.Equal(t, "debug", st.cfg.LogLevel)
	assert.NotNil(t, st.log)
	assert.Nil(t, st.tel)
}

func TestConfigFlagOverridesEnvironment(t *testing.T) {
	dir := t.TempDir()
	fromEnv := filepath.Join(dir, "env.yaml")
	fromFlag := filepath.Join(dir, "flag.yaml")
	require.NoError(t, os.WriteFile(fromEnv, []byte("log_format: json\n"), 0o644))
	require.NoError(t, os.WriteFile(fromFlag, []byte("log_format: text\n"), 0o644))
	t.Setenv("MKCLOUD_CONFIG", fromEnv)

	st := &state{}
	require.NoError(t, newTestApp(st).Run([]string{"mkcloud", "-c", fromFlag}))
	assert.Equal(t, "text", st.cfg.LogFormat)
}

func TestConfigFlagMissingFile(t *testing.T) {
	st := &state{}
	err := newTestApp(st).Run([]string{"mkcloud", "--config", filepath.Join(t.TempDir(), "missing.yaml")})
	assert.ErrorContains(t, err, "configuration error")
	assert.Nil(t, st.cfg)
}

func TestShutdownWithoutTelemetry(t *testing.T) {
	st := &state{}
	assert.NotPanics(t, st.shutdown)
}

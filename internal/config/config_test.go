package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/racingplus/client/internal/config"
	"github.com/racingplus/client/internal/domain"
	"github.com/racingplus/client/internal/infra"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), config.FileName)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad_DevelopmentResolvesAgainstSourceRoot(t *testing.T) {
	t.Setenv(infra.DevEnvVar, "")
	root := t.TempDir()
	path := writeConfig(t, `
mode = "development"

[paths]
source_root = "`+filepath.ToSlash(root)+`"
`)

	cfg, resolved, exists, err := config.Load(path)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, path, resolved)

	assert.True(t, cfg.IsDev())
	assert.Equal(t, root, cfg.Launch.Root)
	assert.Equal(t, filepath.Join(root, infra.SettingsFileName), cfg.Paths.SettingsFile)
	assert.Equal(t, filepath.Join(root, infra.LogFileName), cfg.Paths.LogFile)
	assert.Equal(t, filepath.Join(root, "workers"), filepath.Dir(cfg.Workers.AuthHelper.Command))
	assert.Equal(t, root, filepath.Dir(filepath.Dir(cfg.Workers.Launcher.Command)))
	assert.Equal(t, root, cfg.Workers.LogWatcher.Dir)

	// Development disables the guard and the update check
	assert.False(t, cfg.SingleInstance.Enabled)
	assert.False(t, cfg.Update.Enabled)
}

func TestLoad_ProductionResolvesAgainstExecutable(t *testing.T) {
	t.Setenv(infra.DevEnvVar, "")

	cfg, _, exists, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.False(t, exists)

	exe, err := os.Executable()
	require.NoError(t, err)
	exe, err = filepath.EvalSymlinks(exe)
	require.NoError(t, err)

	assert.False(t, cfg.IsDev())
	assert.Equal(t, filepath.Dir(exe), cfg.Launch.Root)
	assert.Equal(t, filepath.Join(filepath.Dir(filepath.Dir(exe)), infra.SettingsFileName), cfg.Paths.SettingsFile)
	assert.True(t, cfg.SingleInstance.Enabled)
	assert.True(t, cfg.Update.Enabled)
	assert.True(t, cfg.Hotkeys.Enabled)
}

func TestLoad_EnvOverridesMode(t *testing.T) {
	t.Setenv(infra.DevEnvVar, "1")
	path := writeConfig(t, `mode = "production"`)

	cfg, _, _, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, string(infra.LaunchModeDevelopment), cfg.Mode)
	assert.True(t, cfg.IsDev())
}

func TestLoad_DefaultPolicies(t *testing.T) {
	t.Setenv(infra.DevEnvVar, "")
	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)

	policies := cfg.Policies()
	assert.Equal(t, domain.PolicySingle, policies[domain.KindAuthHelper])
	assert.Equal(t, domain.PolicySingle, policies[domain.KindLogWatcher])
	assert.Equal(t, domain.PolicySupersede, policies[domain.KindLauncher])
}

func TestLoad_LauncherPolicyConfigurable(t *testing.T) {
	t.Setenv(infra.DevEnvVar, "")
	path := writeConfig(t, `
[workers.launcher]
command = "/opt/racingplus/isaac"
args = ["--quiet"]
policy = "single"
`)

	cfg, _, _, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, domain.PolicySingle, cfg.Policies()[domain.KindLauncher])

	spec := cfg.WorkerSpec(domain.KindLauncher)
	assert.Equal(t, domain.KindLauncher, spec.Kind)
	assert.Equal(t, filepath.Clean("/opt/racingplus/isaac"), spec.Command)
	assert.Equal(t, []string{"--quiet"}, spec.Args)
}

func TestLoad_BareWorkerCommandLeftForPathLookup(t *testing.T) {
	t.Setenv(infra.DevEnvVar, "")
	path := writeConfig(t, `
[workers.log_watcher]
command = "tail"
`)

	cfg, _, _, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "tail", cfg.Workers.LogWatcher.Command)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	t.Setenv(infra.DevEnvVar, "")

	tests := []struct {
		name string
		body string
	}{
		{"unknown policy", "[workers.auth_helper]\npolicy = \"sometimes\"\n"},
		{"bad listen address", "[shell]\nlisten = \"no-port\"\n"},
		{"unknown mode", "mode = \"staging\"\n"},
		{"negative wait", "[single_instance]\nwait_timeout_seconds = -1\n"},
		{"unknown log level", "[logging]\nlevel = \"loud\"\n"},
		{"update without repo", "[update]\nenabled = true\nrepo = \"\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, err := config.Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_ParseError(t *testing.T) {
	_, _, _, err := config.Load(writeConfig(t, "mode = "))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

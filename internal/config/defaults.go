package config

import (
	"runtime"

	"github.com/racingplus/client/internal/domain"
	"github.com/racingplus/client/internal/infra"
)

const (
	defaultShellListen     = "127.0.0.1:47831"
	defaultLockFile        = "racingplus.lock"
	defaultRegistryFile    = "racingplus.instance.json"
	defaultPendingUpdate   = "racingplus.pending"
	defaultUpdateOwner     = "Zamiell"
	defaultUpdateRepo      = "isaac-racing-client"
	defaultBinaryName      = "racingplus"
	defaultWaitLockSeconds = 10
)

// Default returns the configuration used when no file overrides it.
func Default() Config {
	return Config{
		Mode: string(infra.LaunchModeProduction),
		Paths: Paths{
			SettingsFile:  infra.SettingsFileName,
			LogFile:       infra.LogFileName,
			LockFile:      defaultLockFile,
			RegistryFile:  defaultRegistryFile,
			PendingUpdate: defaultPendingUpdate,
		},
		Shell: Shell{
			Listen: defaultShellListen,
		},
		Workers: Workers{
			AuthHelper: Worker{Command: workerBinary("steam"), Policy: string(domain.DefaultPolicy(domain.KindAuthHelper))},
			LogWatcher: Worker{Command: workerBinary("log-watcher"), Policy: string(domain.DefaultPolicy(domain.KindLogWatcher))},
			Launcher:   Worker{Command: workerBinary("isaac"), Policy: string(domain.DefaultPolicy(domain.KindLauncher))},
		},
		Update: Update{
			Enabled:    true,
			Owner:      defaultUpdateOwner,
			Repo:       defaultUpdateRepo,
			BinaryName: defaultBinaryName,
		},
		Hotkeys: Hotkeys{
			Enabled: true,
		},
		SingleInstance: SingleInstance{
			Enabled:            true,
			WaitTimeoutSeconds: defaultWaitLockSeconds,
		},
		Logging: Logging{
			Level: "info",
		},
	}
}

// workerBinary returns the default worker path relative to the launch root.
func workerBinary(name string) string {
	path := "workers/" + name
	if runtime.GOOS == "windows" {
		path += ".exe"
	}
	return path
}

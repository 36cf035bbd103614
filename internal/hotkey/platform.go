package hotkey

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/racingplus/client/internal/domain"
	"github.com/racingplus/client/internal/infra"
)

// Platform runs the OS helper programs behind hotkeys and game launch.
// Resolved once at startup.
type Platform interface {
	// Name identifies the platform in logs.
	Name() string
	// FocusGame brings the game window to the front.
	FocusGame() error
	// FocusClient brings the client back to the front after the game launched.
	FocusClient() error
	// InvokeGameHotkey runs a named in-game helper.
	InvokeGameHotkey(name string, controller bool) error
}

// ResolvePlatform picks the helper implementation for goos.
// Only Windows ships helper programs; other platforms return domain.ErrUnsupported.
func ResolvePlatform(goos, root string, runner infra.CommandRunner, files infra.FileChecker, logger *zap.Logger) Platform {
	if goos == "windows" {
		return &windowsPlatform{
			programs: filepath.Join(root, "assets", "programs"),
			runner:   runner,
			files:    files,
			logger:   logger.Named("platform"),
		}
	}
	return unsupportedPlatform{goos: goos}
}

type windowsPlatform struct {
	programs string
	runner   infra.CommandRunner
	files    infra.FileChecker
	logger   *zap.Logger
}

func (p *windowsPlatform) Name() string { return "windows" }

func (p *windowsPlatform) FocusGame() error {
	return p.run(filepath.Join(p.programs, "focusIsaac", "focusIsaac.exe"))
}

func (p *windowsPlatform) FocusClient() error {
	return p.run(filepath.Join(p.programs, "focusRacing+", "focusRacing+.exe"))
}

func (p *windowsPlatform) InvokeGameHotkey(name string, controller bool) error {
	program := name
	if controller {
		program += "Controller"
	}
	return p.run(filepath.Join(p.programs, "gameHotkeys", program+".exe"))
}

func (p *windowsPlatform) run(path string) error {
	if !p.files.Exists(path) {
		return fmt.Errorf("helper program missing: %s", path)
	}
	if err := p.runner.Start(path); err != nil {
		return fmt.Errorf("failed to run %s: %w", filepath.Base(path), err)
	}
	p.logger.Debug("helper started", zap.String("path", path))
	return nil
}

type unsupportedPlatform struct {
	goos string
}

func (p unsupportedPlatform) Name() string { return p.goos }

func (unsupportedPlatform) FocusGame() error { return domain.ErrUnsupported }

func (unsupportedPlatform) FocusClient() error { return domain.ErrUnsupported }

func (unsupportedPlatform) InvokeGameHotkey(string, bool) error { return domain.ErrUnsupported }

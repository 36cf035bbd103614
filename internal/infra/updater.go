package infra

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/racingplus/client/internal/domain"
)

// UpdateStatus is the auto-update progress reported to the UI.
type UpdateStatus string

const (
	UpdateChecking     UpdateStatus = "checking-for-update"
	UpdateAvailable    UpdateStatus = "update-available"
	UpdateNotAvailable UpdateStatus = "update-not-available"
	UpdateDownloaded   UpdateStatus = "update-downloaded"
	UpdateError        UpdateStatus = "error"
)

// ErrNoPendingUpdate is returned by QuitAndInstall before an update was downloaded.
var ErrNoPendingUpdate = errors.New("no downloaded update to install")

// UpdateNotice is one status transition of an update check.
type UpdateNotice struct {
	Status  UpdateStatus
	Version string
	Err     error
}

// ReleaseSource provides release metadata and assets.
type ReleaseSource interface {
	LatestRelease(ctx context.Context) (*GitHubRelease, error)
	Download(ctx context.Context, release *GitHubRelease, destPath string) error
}

// Updater checks for, downloads and installs client updates.
type Updater struct {
	releases       ReleaseSource
	currentVersion string
	binaryPath     string
	pendingPath    string
	logger         *zap.Logger

	mu             sync.Mutex
	pendingVersion string
}

// NewUpdater creates an Updater that replaces binaryPath with downloads staged at pendingPath.
func NewUpdater(releases ReleaseSource, currentVersion, binaryPath, pendingPath string, logger *zap.Logger) *Updater {
	return &Updater{
		releases:       releases,
		currentVersion: currentVersion,
		binaryPath:     binaryPath,
		pendingPath:    pendingPath,
		logger:         logger,
	}
}

// Check runs one check-and-download cycle, reporting every status through report.
func (u *Updater) Check(ctx context.Context, report func(UpdateNotice)) error {
	fail := func(err error) error {
		report(UpdateNotice{Status: UpdateError, Err: err})
		return err
	}

	report(UpdateNotice{Status: UpdateChecking})

	release, err := u.releases.LatestRelease(ctx)
	if err != nil {
		return fail(fmt.Errorf("failed to get latest release: %w", err))
	}

	latest := release.Version()
	if !isNewerVersion(latest, u.currentVersion) {
		u.log("client is up to date", zap.String("version", u.currentVersion))
		report(UpdateNotice{Status: UpdateNotAvailable, Version: latest})
		return nil
	}

	u.log("update available", zap.String("current", u.currentVersion), zap.String("latest", latest))
	report(UpdateNotice{Status: UpdateAvailable, Version: latest})

	if err := u.releases.Download(ctx, release, u.pendingPath); err != nil {
		return fail(fmt.Errorf("failed to download update: %w", err))
	}

	u.mu.Lock()
	u.pendingVersion = latest
	u.mu.Unlock()

	u.log("update downloaded", zap.String("path", u.pendingPath))
	report(UpdateNotice{Status: UpdateDownloaded, Version: latest})
	return nil
}

// Pending returns the version of the downloaded update, if any.
func (u *Updater) Pending() (string, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.pendingVersion, u.pendingVersion != ""
}

// QuitAndInstall replaces the running binary with the pending download.
// The caller relaunches and quits afterwards.
func (u *Updater) QuitAndInstall() error {
	version, ok := u.Pending()
	if !ok {
		return ErrNoPendingUpdate
	}
	if _, err := os.Stat(u.pendingPath); err != nil {
		return fmt.Errorf("pending update missing: %w", err)
	}

	rollbackPath, err := u.createRollbackBackup(u.binaryPath)
	if err != nil {
		return fmt.Errorf("failed to create rollback backup: %w", err)
	}
	defer os.RemoveAll(filepath.Dir(rollbackPath))

	u.log("installing update", zap.String("version", version), zap.String("path", u.binaryPath))
	if err := copyFile(u.pendingPath, u.binaryPath); err != nil {
		u.log("install failed, rolling back", zap.Error(err))
		if rbErr := copyFile(rollbackPath, u.binaryPath); rbErr != nil {
			return fmt.Errorf("critical: install failed and rollback failed: install=%w, rollback=%v", err, rbErr)
		}
		_ = os.Chmod(u.binaryPath, 0755)
		return fmt.Errorf("install failed: %w", err)
	}
	_ = os.Chmod(u.binaryPath, 0755)
	_ = os.Remove(u.pendingPath)

	u.mu.Lock()
	u.pendingVersion = ""
	u.mu.Unlock()

	u.log("update installed", zap.String("version", version))
	return nil
}

// createRollbackBackup copies the current binary aside until the install completes
func (u *Updater) createRollbackBackup(binaryPath string) (string, error) {
	tmpDir, err := os.MkdirTemp("", "racingplus-rollback-")
	if err != nil {
		return "", err
	}

	rollbackPath := filepath.Join(tmpDir, filepath.Base(binaryPath))
	if err := copyFile(binaryPath, rollbackPath); err != nil {
		os.RemoveAll(tmpDir)
		return "", err
	}
	return rollbackPath, nil
}

// log logs a message if logger is available
func (u *Updater) log(msg string, fields ...zap.Field) {
	if u.logger != nil {
		u.logger.Info(msg, fields...)
	}
}

// Ensure Updater implements domain.UpdateInstaller.
var _ domain.UpdateInstaller = (*Updater)(nil)

package install

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"

	"go.uber.org/zap"
)

// ReplaceLauncher installs an artifact by swapping it in for a target
// executable, keeping a backup until the new binary verifies. The cached
// artifact itself is left in place.
type ReplaceLauncher struct {
	target     string
	backupPath string
	verifyArgs []string
	logger     *zap.Logger
}

// NewReplaceLauncher creates a new replace launcher. Verification is
// skipped when verifyArgs is empty.
func NewReplaceLauncher(target string, verifyArgs []string, logger *zap.Logger) *ReplaceLauncher {
	return &ReplaceLauncher{
		target:     target,
		backupPath: target + ".backup",
		verifyArgs: verifyArgs,
		logger:     logger.Named("replace-launcher"),
	}
}

// Install implements update.InstallLauncher.
func (l *ReplaceLauncher) Install(ctx context.Context, file, _ string) error {
	if err := copyFile(l.target, l.backupPath); err != nil {
		return fmt.Errorf("failed to create backup: %w", err)
	}

	// Stage next to the target so the final rename stays on one filesystem.
	staged := l.target + ".new"
	if err := copyFile(file, staged); err != nil {
		_ = os.Remove(staged)
		return fmt.Errorf("failed to stage artifact: %w", err)
	}

	if err := os.Chmod(staged, 0755); err != nil {
		_ = os.Remove(staged)
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	if err := os.Rename(staged, l.target); err != nil {
		_ = os.Remove(staged)
		return fmt.Errorf("failed to replace binary: %w", err)
	}

	if err := l.verify(ctx); err != nil {
		if rbErr := l.Rollback(); rbErr != nil {
			l.logger.Error("rollback failed", zap.String("target", l.target), zap.Error(rbErr))
		}
		return fmt.Errorf("new binary verification failed: %w", err)
	}

	_ = os.Remove(l.backupPath)
	l.logger.Info("binary replaced", zap.String("target", l.target), zap.String("file", file))
	return nil
}

// Rollback restores the backup over the target.
func (l *ReplaceLauncher) Rollback() error {
	if _, err := os.Stat(l.backupPath); os.IsNotExist(err) {
		return fmt.Errorf("backup not found: %s", l.backupPath)
	}
	if err := os.Rename(l.backupPath, l.target); err != nil {
		return fmt.Errorf("failed to restore from backup: %w", err)
	}
	return nil
}

func (l *ReplaceLauncher) verify(ctx context.Context) error {
	if len(l.verifyArgs) == 0 {
		return nil
	}
	return exec.CommandContext(ctx, l.target, l.verifyArgs...).Run()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_RDWR|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		_ = os.Remove(dst)
		return err
	}
	return out.Close()
}

// Package install hands verified artifacts to the host installer.
package install

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/narwhalmedia/appupdater/internal/config"
	"github.com/narwhalmedia/appupdater/internal/domain/update"
)

// New builds the launcher selected by the install mode.
func New(cfg config.UpdaterConfig, logger *zap.Logger) (update.InstallLauncher, error) {
	switch cfg.InstallMode {
	case "", "none":
		return NewNoopLauncher(logger), nil
	case "exec":
		return NewExecLauncher(strings.Fields(cfg.InstallCommand), logger)
	case "replace":
		return NewReplaceLauncher(cfg.ReplaceTarget, []string{"--version"}, logger), nil
	default:
		return nil, fmt.Errorf("unsupported install mode %q", cfg.InstallMode)
	}
}

// ExecLauncher runs an external installer with the artifact path and the
// provider authority appended to its arguments.
type ExecLauncher struct {
	command []string
	logger  *zap.Logger
}

// NewExecLauncher creates a new exec launcher
func NewExecLauncher(command []string, logger *zap.Logger) (*ExecLauncher, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("install command must not be empty")
	}
	return &ExecLauncher{
		command: command,
		logger:  logger.Named("exec-launcher"),
	}, nil
}

// Install implements update.InstallLauncher.
func (l *ExecLauncher) Install(ctx context.Context, file, authority string) error {
	args := append(append([]string{}, l.command[1:]...), file, authority)
	cmd := exec.CommandContext(ctx, l.command[0], args...)

	out, err := cmd.CombinedOutput()
	if err != nil {
		l.logger.Error("installer failed",
			zap.String("command", l.command[0]),
			zap.String("file", file),
			zap.ByteString("output", out),
			zap.Error(err),
		)
		return fmt.Errorf("failed to run installer: %w", err)
	}

	l.logger.Info("installer finished", zap.String("file", file), zap.String("authority", authority))
	return nil
}

// NoopLauncher only logs the artifact it would install.
type NoopLauncher struct {
	logger *zap.Logger
}

func NewNoopLauncher(logger *zap.Logger) *NoopLauncher {
	return &NoopLauncher{logger: logger.Named("noop-launcher")}
}

// Install implements update.InstallLauncher.
func (l *NoopLauncher) Install(_ context.Context, file, authority string) error {
	l.logger.Info("install skipped", zap.String("file", file), zap.String("authority", authority))
	return nil
}

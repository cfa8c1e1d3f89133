package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/narwhalmedia/appupdater/internal/domain/update"
	"github.com/narwhalmedia/appupdater/internal/infrastructure/notify"
)

type fetchOptions struct {
	configFile     string
	path           string
	filename       string
	md5            string
	versionCode    int64
	headers        []string
	noRetry        bool
	maxRetries     int
	keepCancelFile bool
	noInstall      bool
	authority      string
	quiet          bool
	noPercentage   bool
	retry          bool
}

func newFetchCmd() *cobra.Command {
	return newFetchCmdWith(&fetchOptions{})
}

func newFetchCmdWith(opts *fetchOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch [URL]",
		Short: "Download an update, reusing a verified cached copy when present",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.build(cmd, args)
			if err != nil {
				return err
			}
			return runFetch(cmd, cfg, opts.retry)
		},
	}

	cmd.Flags().StringVarP(&opts.configFile, "config", "c", "", "YAML or JSON update config file")
	cmd.Flags().StringVarP(&opts.path, "path", "p", "", "Directory to store the artifact in (defaults to the cache directory)")
	cmd.Flags().StringVarP(&opts.filename, "filename", "o", "", "Artifact file name")
	cmd.Flags().StringVar(&opts.md5, "md5", "", "Expected MD5 of the artifact")
	cmd.Flags().Int64Var(&opts.versionCode, "version-code", update.NoVersionCode, "Expected version code of the artifact")
	cmd.Flags().StringArrayVarP(&opts.headers, "header", "H", []string{}, "Request header as 'Key: Value'; can be specified multiple times")
	cmd.Flags().BoolVar(&opts.noRetry, "no-retry", false, "Never offer a retry after a failure")
	cmd.Flags().IntVar(&opts.maxRetries, "max-retries", update.DefaultMaxRetries, "Retry budget for this URL")
	cmd.Flags().BoolVar(&opts.keepCancelFile, "keep-cancel-file", false, "Keep the partial file when cancelled")
	cmd.Flags().BoolVar(&opts.noInstall, "no-install", false, "Do not launch the installer after download")
	cmd.Flags().StringVar(&opts.authority, "authority", "", "Provider authority passed to the installer")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Do not render progress")
	cmd.Flags().BoolVar(&opts.noPercentage, "no-percentage", false, "Render progress without a percentage")
	cmd.Flags().BoolVar(&opts.retry, "retry", false, "Count this run as a retry of a failed session")

	return cmd
}

func (o *fetchOptions) build(cmd *cobra.Command, args []string) (*update.Config, error) {
	var cfg *update.Config
	if o.configFile != "" {
		loaded, err := update.LoadConfigFile(o.configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = update.NewConfig("")
	}
	if len(args) > 0 {
		cfg.URL = args[0]
	}

	flags := cmd.Flags()
	if flags.Changed("path") {
		cfg.WithPath(o.path)
	}
	if flags.Changed("filename") {
		cfg.WithFilename(o.filename)
	}
	if flags.Changed("md5") {
		cfg.WithMD5(o.md5)
	}
	if flags.Changed("version-code") {
		cfg.WithVersionCode(o.versionCode)
	}
	for _, h := range o.headers {
		key, value, ok := strings.Cut(h, ":")
		if !ok {
			return nil, fmt.Errorf("invalid header %q, expected 'Key: Value'", h)
		}
		cfg.WithHeader(strings.TrimSpace(key), strings.TrimSpace(value))
	}
	if o.noRetry {
		cfg.WithRetry(false, cfg.MaxRetries)
	}
	if flags.Changed("max-retries") {
		cfg.WithRetry(cfg.RetryEnabled, o.maxRetries)
	}
	if o.keepCancelFile {
		cfg.WithDeleteCancelFile(false)
	}
	if o.noInstall {
		cfg.WithInstall(false)
	}
	if flags.Changed("authority") {
		cfg.WithAuthority(o.authority)
	}
	if o.quiet || o.noPercentage {
		cfg.WithNotification(!o.quiet, !o.noPercentage)
	}
	cfg.WithCancelSupport(true)

	return cfg, cfg.Validate()
}

// sessionRunner runs one update session to its outcome.
type sessionRunner interface {
	Run(ctx context.Context, cfg *update.Config, observer update.Observer) (*update.Outcome, error)
	Retry(ctx context.Context, cfg *update.Config, observer update.Observer) (*update.Outcome, error)
}

func runFetch(cmd *cobra.Command, cfg *update.Config, retry bool) error {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, cleanup, err := bootstrap()
	if err != nil {
		return err
	}
	defer cleanup()

	return fetch(ctx, app.Updater, app.Config.Updater.AppName, cfg, retry, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// fetch runs the session. Notifications go to stderr so stdout only
// carries the artifact path.
func fetch(ctx context.Context, runner sessionRunner, title string, cfg *update.Config, retry bool, stdout, stderr io.Writer) error {
	observers := notify.Attach(nil, cfg, title, notify.NewConsolePresenter(stderr))

	run := runner.Run
	if retry {
		run = runner.Retry
	}
	out, err := run(ctx, cfg, observers)
	if err != nil {
		return err
	}

	switch out.Kind {
	case update.OutcomeFinished:
		fmt.Fprintln(stdout, out.File)
		return nil
	case update.OutcomeCancelled:
		return errors.New("download cancelled")
	default:
		if out.RetryAllowed {
			return fmt.Errorf("%w (run again with --retry)", out.Err)
		}
		return out.Err
	}
}

package otlivecli

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"otterlive/internal/config"
	"otterlive/internal/index/backend"
	"otterlive/internal/logger"
)

// Options holds the persistent flags. Flags that were set override the
// loaded configuration.
type Options struct {
	ConfigPath   string
	SnapshotPath string
	Backend      string
	LogLevel     string
	ScanAll      bool
	IncludeGlobs []string
	ExcludeGlobs []string
	Workers      int
	Jsonl        bool

	Config *config.Config
}

func (o *Options) Prepare(cmd *cobra.Command) error {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("backend") {
		cfg.Snapshot.Backend = o.Backend
	}
	if flags.Changed("snapshot") {
		cfg.Snapshot.Path = o.SnapshotPath
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = o.LogLevel
	}
	if flags.Changed("all") {
		cfg.Indexer.ScanAll = o.ScanAll
	}
	if flags.Changed("glob") {
		cfg.Indexer.Include = o.IncludeGlobs
	}
	if flags.Changed("exclude") {
		cfg.Indexer.Exclude = o.ExcludeGlobs
	}
	if flags.Changed("workers") {
		if o.Workers < 0 {
			return fmt.Errorf("--workers must be >= 0")
		}
		cfg.Indexer.Workers = o.Workers
	}
	cfg.Snapshot.Backend = backend.NormalizeName(cfg.Snapshot.Backend)
	if err := cfg.Validate(); err != nil {
		return err
	}

	o.Config = cfg
	logger.SetupWriter(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
	return nil
}

type optionsKey struct{}

func optionsFrom(cmd *cobra.Command) *Options {
	if cmd == nil {
		return nil
	}
	root := cmd.Root()
	if root == nil {
		root = cmd
	}
	v := root.Context().Value(optionsKey{})
	opts, _ := v.(*Options)
	return opts
}

func bindFlags(cmd *cobra.Command, opts *Options) {
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", opts.ConfigPath, "YAML config file")
	cmd.PersistentFlags().StringVarP(&opts.SnapshotPath, "snapshot", "s", opts.SnapshotPath, "snapshot file (default: <folder>/.otlive/snapshot.db)")
	cmd.PersistentFlags().StringVar(&opts.Backend, "backend", opts.Backend, "snapshot backend: bolt|sqlite|none")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", opts.LogLevel, "log level: debug|info|warn|error")
	cmd.PersistentFlags().BoolVarP(&opts.ScanAll, "all", "A", opts.ScanAll, "index hidden and ignored files too")
	cmd.PersistentFlags().StringSliceVarP(&opts.ExcludeGlobs, "exclude", "x", nil, "exclude these files (comma separated list: -x *.js,*.sql)")
	cmd.PersistentFlags().StringSliceVarP(&opts.IncludeGlobs, "glob", "g", nil, "only index these files (can repeat)")
	cmd.PersistentFlags().IntVarP(&opts.Workers, "workers", "j", opts.Workers, "index workers (default: CPUs - 1)")
	cmd.PersistentFlags().BoolVar(&opts.Jsonl, "jsonl", opts.Jsonl, "output as JSONL")
}

func ExecuteForTest(cmd *cobra.Command) (string, Options, error) {
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)

	err := cmd.Execute()

	opts := optionsFrom(cmd)
	if opts == nil {
		return out.String(), Options{}, err
	}
	return out.String(), *opts, err
}

func newDefaultOptions() *Options {
	return &Options{
		Backend:  backend.Bolt,
		LogLevel: "warn",
	}
}

func withOptionsContext(cmd *cobra.Command, opts *Options) {
	cmd.SetContext(context.WithValue(context.Background(), optionsKey{}, opts))
}

func trimArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

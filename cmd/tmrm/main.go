// Command tmrm manages subject maps from the command line.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/hupe1980/tmrm"
	"github.com/hupe1980/tmrm/metric"
	"github.com/hupe1980/tmrm/ontology"
	"github.com/hupe1980/tmrm/storage/logstore"
	"github.com/hupe1980/tmrm/storage/sqlstore"
)

const (
	Version = "0.1.0"
	appName = "tmrm"
)

func main() {
	if err := rootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app holds the state shared by subcommands.
type app struct {
	out        io.Writer
	configPath string
	flags      Config
	registry   *prometheus.Registry
}

func rootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out}

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Subject-centric proxy graph store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", "", "Config file path (YAML)")
	pf.StringVar(&a.flags.Backend, "backend", "", "Storage backend (memory, logstore, sql)")
	pf.StringVar(&a.flags.Descriptor, "descriptor", "", "Backend connection descriptor")
	pf.StringVar(&a.flags.SubjectMap, "map", "", "Subject map name")
	pf.StringVar(&a.flags.LabelAlias, "label-alias", "", "Alias whose literals are labels")
	pf.StringVar(&a.flags.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVar(&a.flags.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")

	cmd.AddCommand(
		a.bootstrapCmd(),
		a.importCmd(),
		a.exportCmd(),
		a.proxiesCmd(),
		a.compactCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(a.out, "%s version %s\n", appName, Version)
			},
		},
	)
	return cmd
}

// config merges defaults, the config file and explicitly set flags.
func (a *app) config(cmd *cobra.Command) (*Config, error) {
	cfg := DefaultConfig()
	if a.configPath != "" {
		loaded, err := LoadConfig(a.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	set := func(name string, dst *string, v string) {
		if flags.Changed(name) {
			*dst = v
		}
	}
	set("backend", &cfg.Backend, a.flags.Backend)
	set("descriptor", &cfg.Descriptor, a.flags.Descriptor)
	set("map", &cfg.SubjectMap, a.flags.SubjectMap)
	set("label-alias", &cfg.LabelAlias, a.flags.LabelAlias)
	set("log-level", &cfg.LogLevel, a.flags.LogLevel)
	set("metrics-addr", &cfg.MetricsAddr, a.flags.MetricsAddr)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// open creates a sphere with every backend registered and opens the
// configured subject map.
func (a *app) open(ctx context.Context, cmd *cobra.Command) (*tmrm.Sphere, *tmrm.SubjectMap, error) {
	cfg, err := a.config(cmd)
	if err != nil {
		return nil, nil, err
	}
	level, _ := parseLevel(cfg.LogLevel)

	a.registry = prometheus.NewRegistry()
	collector, err := metric.NewPrometheusCollector(a.registry)
	if err != nil {
		return nil, nil, err
	}
	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, a.registry)
	}

	sphere := tmrm.NewSphere(
		tmrm.WithLogger(tmrm.NewTextLogger(level)),
		tmrm.WithMetricsCollector(collector),
		tmrm.WithLabelAlias(cfg.LabelAlias),
		tmrm.WithStorageFactory(logstore.Name, logstore.Open),
		tmrm.WithStorageFactory(sqlstore.Name, sqlstore.Open),
	)

	st, err := sphere.OpenStorage(ctx, cfg.Backend, cfg.Descriptor)
	if err != nil {
		return nil, nil, err
	}
	m, err := sphere.NewSubjectMap(ctx, st, cfg.SubjectMap)
	if err != nil {
		return nil, nil, errors.Join(err, st.Close())
	}
	return sphere, m, nil
}

func serveMetrics(addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Warn("metrics server stopped", "addr", addr, "error", err)
	}
}

// withMap runs fn against the configured subject map and closes the sphere.
func (a *app) withMap(cmd *cobra.Command, fn func(ctx context.Context, m *tmrm.SubjectMap) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	sphere, m, err := a.open(ctx, cmd)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, sphere.Close()) }()

	return fn(ctx, m)
}

func (a *app) bootstrapCmd() *cobra.Command {
	var classes bool

	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Import the standard ontology",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withMap(cmd, func(ctx context.Context, m *tmrm.SubjectMap) error {
				docs := []string{ontology.Standard}
				if classes {
					docs = append(docs, ontology.Classes)
				}
				for _, doc := range docs {
					res, err := m.ImportOntologyString(ctx, doc)
					if err != nil {
						return err
					}
					a.printImport(res)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&classes, "classes", false, "Also import the class ontology")
	return cmd
}

func (a *app) importCmd() *cobra.Command {
	var graph bool

	cmd := &cobra.Command{
		Use:   "import FILE...",
		Short: "Import ontology documents or exported graphs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withMap(cmd, func(ctx context.Context, m *tmrm.SubjectMap) error {
				for _, path := range args {
					if err := a.importFile(ctx, m, path, graph); err != nil {
						return fmt.Errorf("import %s: %w", path, err)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&graph, "graph", false, "Read files written by export")
	return cmd
}

func (a *app) importFile(ctx context.Context, m *tmrm.SubjectMap, path string, graph bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if graph {
		res, err := m.ImportGraph(ctx, f)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "%s: created %d, added %d, skipped %d\n", res.SubjectMap, res.Created, res.Added, res.Skipped)
		return nil
	}

	res, err := m.ImportOntology(ctx, f)
	if err != nil {
		return err
	}
	a.printImport(res)
	return nil
}

func (a *app) printImport(res *tmrm.ImportResult) {
	fmt.Fprintf(a.out, "%s: bound %d, skipped %d\n", res.SubjectMap, len(res.Bound), len(res.Skipped))
}

func (a *app) exportCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the subject map as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withMap(cmd, func(ctx context.Context, m *tmrm.SubjectMap) error {
				if output == "" || output == "-" {
					return m.Export(ctx, a.out)
				}
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				if err := m.Export(ctx, f); err != nil {
					return errors.Join(err, f.Close())
				}
				return f.Close()
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	return cmd
}

func (a *app) proxiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "proxies",
		Short: "List proxies with their labels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withMap(cmd, func(ctx context.Context, m *tmrm.SubjectMap) error {
				it, err := m.Iterator(ctx)
				if err != nil {
					return err
				}
				for obj, err := range it.All() {
					if err != nil {
						return err
					}
					p, err := obj.Proxy()
					if err != nil {
						return err
					}
					label, err := p.Label(ctx)
					if err != nil {
						return err
					}
					fmt.Fprintf(a.out, "%s\t%s\n", p.ID(), label)
				}
				return nil
			})
		},
	}
}

func (a *app) compactCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compact",
		Short: "Fold the log of a logstore backend into a snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withMap(cmd, func(ctx context.Context, m *tmrm.SubjectMap) error {
				st, ok := m.Storage().(*logstore.Store)
				if !ok {
					return fmt.Errorf("compact: backend is not %s", logstore.Name)
				}
				res, err := st.Compact(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "snapshot %s: %d proxies, %d properties, %d segments merged\n",
					res.Snapshot, res.Proxies, res.Properties, res.SegmentsMerged)
				return nil
			})
		},
	}
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pumped-fn/mscan-go/config"
	"github.com/pumped-fn/mscan-go/extensions"
	"github.com/pumped-fn/mscan-go/heatmap"
	"github.com/pumped-fn/mscan-go/internal/logging"
	"github.com/pumped-fn/mscan-go/internal/tui"
	"github.com/pumped-fn/mscan-go/session"
)

var (
	configPath  string
	root        string
	watchDir    string
	verbose     bool
	metricsAddr string

	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "mscanview",
	Short: "Explore commutativity scan results",
	Long: `mscanview loads test case documents produced by a commutativity scan and
shows, for every pair of operations, how many generated tests found shared
state. Selecting a cell lists the tests behind it.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if root != "" {
			cfg.Root = root
		}
		if watchDir != "" {
			cfg.WatchDir = watchDir
		}

		opts := logging.Options{
			Level:       cfg.Logging.Level,
			Development: cfg.Logging.Development,
			Verbose:     verbose,
			File:        cfg.Logging.File,
		}
		// The terminal UI owns the screen.
		if cmd.Name() == "view" && opts.File == "" {
			opts.File = "mscanview.log"
		}
		logger, err = logging.New(opts)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var viewCmd = &cobra.Command{
	Use:   "view [sources...]",
	Short: "Interactive heatmap and test listing",
	RunE:  runView,
}

var summaryCmd = &cobra.Command{
	Use:   "summary [sources...]",
	Short: "Print each run's non-empty cells",
	RunE:  runSummary,
}

var graphCmd = &cobra.Command{
	Use:   "graph [sources...]",
	Short: "Print the stage graph and live cell subscribers",
	RunE:  runGraph,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "mscan.yaml", "Config file")
	rootCmd.PersistentFlags().StringVar(&root, "root", "", "Directory sources are read from")
	rootCmd.PersistentFlags().StringVar(&watchDir, "watch", "", "Directory watched for new documents")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")

	rootCmd.AddCommand(viewCmd, summaryCmd, graphCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newSession assembles a session with the standard extensions.
func newSession(ctx context.Context, opts ...session.Option) (*session.Session, error) {
	reg := prometheus.NewRegistry()
	opts = append(opts,
		session.WithLogger(logger),
		session.WithExtension(extensions.NewLoggingExtension(logger)),
		session.WithExtension(extensions.NewMetricsExtension(reg)),
		session.WithExtension(extensions.NewGraphDebugExtension(logger.Named("graph"))),
	)

	sess, err := session.New(cfg, opts...)
	if err != nil {
		return nil, err
	}

	if metricsAddr != "" {
		serveMetrics(ctx, reg)
	}
	return sess, nil
}

func serveMetrics(ctx context.Context, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("serving metrics", zap.String("addr", metricsAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}

func runView(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	bridge := tui.NewBridge()
	sess, err := newSession(ctx,
		session.WithSurface(bridge),
		session.WithConsumer(bridge),
		session.WithLayout(tui.GridLayout(cfg.CallOrder().Seq())),
	)
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := sess.Start(ctx, args...); err != nil {
		return err
	}
	return tui.Run(sess, bridge)
}

// loadAll starts a session and waits for every issued load. Failed sources
// are reported and do not stop the command.
func loadAll(ctx context.Context, args []string) (*session.Session, error) {
	sess, err := newSession(ctx)
	if err != nil {
		return nil, err
	}
	if err := sess.Start(ctx, args...); err != nil {
		sess.Close()
		return nil, err
	}
	if err := sess.Wait(); err != nil {
		logger.Warn("some sources failed to load", zap.Error(err))
	}
	return sess, nil
}

func runSummary(cmd *cobra.Command, args []string) error {
	sess, err := loadAll(cmd.Context(), args)
	if err != nil {
		return err
	}
	defer sess.Close()

	var res *heatmap.Result
	var total int
	sess.Scope.Turn(func() {
		res = sess.Heatmap.Result()
		total = sess.Dataset.Output().Peek().Len()
	})
	printSummary(cmd.OutOrStdout(), res, total)
	return nil
}

func printSummary(w io.Writer, res *heatmap.Result, total int) {
	fmt.Fprintf(w, "%d test case(s), %d call(s): %s\n", total, len(res.Calls), strings.Join(res.Calls, " "))
	for _, f := range res.Facets {
		label := f.Label
		if label == "" {
			label = "all"
		}
		fmt.Fprintf(w, "\n%s\n", label)
		for _, c := range f.Cells {
			if c.Matched == 0 {
				continue
			}
			fmt.Fprintf(w, "  %-24s %5d/%-5d %5.1f%%\n",
				c.Calls, c.Matched, c.Total, 100*c.Fraction())
		}
	}
}

func runGraph(cmd *cobra.Command, args []string) error {
	sess, err := loadAll(cmd.Context(), args)
	if err != nil {
		return err
	}
	defer sess.Close()

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Stages:%s\n", extensions.FormatGraph(sess.Scope.Graph(), nil))

	var live map[string][]string
	sess.Scope.Turn(func() {
		live = sess.Scope.ExportDependencyGraph()
	})
	names := make([]string, 0, len(live))
	for name := range live {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(w, "Subscribers:")
	for _, name := range names {
		subs := live[name]
		if len(subs) == 0 {
			subs = []string{"-"}
		}
		fmt.Fprintf(w, "  %s <- %s\n", name, strings.Join(subs, ", "))
	}

	var status string
	sess.Scope.Turn(func() {
		st := sess.Loader.Status().Peek()
		status = fmt.Sprintf("%d loaded, %d failed", len(st.Loaded), len(st.Failed))
	})
	fmt.Fprintf(w, "Sources: %s\n", status)
	return nil
}

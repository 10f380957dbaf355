package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/femtoldap/femtoldap/internal/assemble"
	"github.com/femtoldap/femtoldap/internal/directory"
	"github.com/femtoldap/femtoldap/internal/metrics"
	"github.com/femtoldap/femtoldap/internal/server"
	"github.com/femtoldap/femtoldap/pkg/config"
)

var version = "0.1.0"

var (
	logJSON    bool
	logVerbose bool
	singleCore bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "femtoldap",
	Short: "femtoldap - a stateless read-only LDAPv3 directory server",
	Long:  "A stateless, read-only LDAPv3 directory server backed by a declarative TOML directory.",
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", envOrDefaultBool("LOG_JSON", false), "emit structured logs as JSON instead of text")
	rootCmd.PersistentFlags().BoolVarP(&logVerbose, "log-verbose", "v", envOrDefaultBool("LOG_VERBOSE", false), "enable debug-level logging")
	rootCmd.PersistentFlags().BoolVar(&singleCore, "single-core", envOrDefaultBool("SINGLE_CORE", false), "run with GOMAXPROCS(1)")

	rootCmd.AddCommand(serverCmd)
}

var (
	configFile      string
	configDir       string
	ldapBindAddr    string
	ldapsBindAddr   string
	ldapsCertFile   string
	ldapsKeyFile    string
	metricsBindAddr string
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the directory server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

func init() {
	serverCmd.Flags().StringVarP(&configFile, "config-file", "c", envOrDefaultString("CONFIG_FILE", "config.toml"), "primary TOML directory file")
	serverCmd.Flags().StringVar(&configDir, "config-dir", envOrDefaultString("CONFIG_DIR", ""), "directory of additional *.toml files merged into the primary config")
	serverCmd.Flags().StringVar(&ldapBindAddr, "ldap-bind-addr", envOrDefaultString("LDAP_BIND_ADDR", "0.0.0.0:3389"), "plaintext LDAP bind address, empty to disable")
	serverCmd.Flags().StringVar(&ldapsBindAddr, "ldaps-bind-addr", envOrDefaultString("LDAPS_BIND_ADDR", ""), "TLS LDAP bind address, empty to disable")
	serverCmd.Flags().StringVar(&ldapsCertFile, "ldaps-certificate-file", envOrDefaultString("LDAPS_CERTIFICATE_FILE", ""), "PEM certificate file for LDAPS")
	serverCmd.Flags().StringVar(&ldapsKeyFile, "ldaps-key-file", envOrDefaultString("LDAPS_KEY_FILE", ""), "PEM private key file for LDAPS")
	serverCmd.Flags().StringVar(&metricsBindAddr, "metrics-bind-addr", envOrDefaultString("METRICS_BIND_ADDR", "127.0.0.1:9000"), "Prometheus metrics bind address, empty to disable")
}

func envOrDefaultString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		return v == "1" || v == "true"
	}
	return def
}

func initLogging(jsonFormat, verbose bool) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if verbose {
		opts.Level = slog.LevelDebug
	}
	var handler slog.Handler
	if jsonFormat {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func runServer(ctx context.Context) error {
	initLogging(logJSON, logVerbose)
	if singleCore {
		runtime.GOMAXPROCS(1)
	}

	dir, err := config.Load(configFile, configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	entries, err := assemble.Assemble(dir, version)
	if err != nil {
		return fmt.Errorf("assembling directory: %w", err)
	}
	snap := directory.NewSnapshot(entries)
	slog.Info("directory loaded", "entries", len(entries))

	m := metrics.New()

	srv, err := server.New(snap, m, server.Addresses{
		LDAP:        ldapBindAddr,
		LDAPS:       ldapsBindAddr,
		TLSCertFile: ldapsCertFile,
		TLSKeyFile:  ldapsKeyFile,
	}, version)
	if err != nil {
		return fmt.Errorf("starting server: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var metricsSrv *http.Server
	if metricsBindAddr != "" {
		metricsSrv = &http.Server{Addr: metricsBindAddr, Handler: m.Handler()}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("metrics server failed", "error", err)
			}
		}()
	}

	runErrCh := make(chan error, 1)
	go func() { runErrCh <- srv.Run(ctx) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGHUP:
				slog.Info("received SIGHUP, reloading directory")
				srv.Reload(configFile, configDir)
			default:
				slog.Info("shutting down", "signal", sig.String())
				cancel()
				if metricsSrv != nil {
					metricsSrv.Close()
				}
				return <-runErrCh
			}

		case err := <-runErrCh:
			return err
		}
	}
}

package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/barriernet/barriernet/internal/config"
	"github.com/barriernet/barriernet/internal/diagnostics"
	"github.com/barriernet/barriernet/internal/filter"
	"github.com/barriernet/barriernet/internal/logging"
	"github.com/barriernet/barriernet/internal/screen"
	"github.com/barriernet/barriernet/internal/server"
	"github.com/barriernet/barriernet/internal/switching"
	"github.com/barriernet/barriernet/internal/transport"
	"github.com/barriernet/barriernet/pkg/screens/headless"
)

// jumpZoneDefault is the jump zone width config.BuildScreenTopology gives
// every declared screen; it equals internal/server's own default.
const jumpZoneDefault = 2

var version = "0.1.0"

var (
	cfgFile          string
	foreground       bool
	noTray           bool
	debugLevel       string
	screenName       string
	ipc              bool
	disableCrypto    bool
	logFile          string
	profileDirFlag   string
	stopOnDeskSwitch bool
	enableDragDrop   bool
	address          string
	disableClientCertChecking bool
	autoTrustClients bool
	screensFile      string
	traceIface       string
)

var log = logging.L("main")

var rootCmd = &cobra.Command{
	Use:   "barriernets",
	Short: "barriernet server: shares this machine's keyboard and mouse with secondary screens",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the server daemon",
	Run: func(cmd *cobra.Command, args []string) {
		if !foreground && isWindowsService() {
			if err := runAsService(); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			return
		}
		runServer()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("barriernets v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&foreground, "foreground", "f", false, "run in the foreground instead of backgrounding")
	rootCmd.PersistentFlags().BoolVar(&noTray, "no-tray", false, "disable the system tray icon")
	rootCmd.PersistentFlags().StringVar(&debugLevel, "debug", "", "log level (DEBUG, INFO, NOTE, WARNING, ERROR)")
	rootCmd.PersistentFlags().StringVar(&screenName, "name", "", "screen name to claim (defaults to hostname)")
	rootCmd.PersistentFlags().BoolVar(&ipc, "ipc", false, "enable IPC with the GUI")
	rootCmd.PersistentFlags().BoolVar(&disableCrypto, "disable-crypto", false, "disable TLS (plaintext TCP)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log", "", "log file path")
	rootCmd.PersistentFlags().StringVar(&profileDirFlag, "profile-dir", "", "profile directory for certificate/fingerprint storage")
	rootCmd.PersistentFlags().BoolVar(&stopOnDeskSwitch, "stop-on-desk-switch", false, "stop capturing input when the desktop session switches")
	rootCmd.PersistentFlags().BoolVar(&enableDragDrop, "enable-drag-drop", false, "enable file drag-and-drop between screens")

	runCmd.Flags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	runCmd.Flags().StringVar(&address, "address", ":24800", "address to listen on")
	runCmd.Flags().BoolVar(&disableClientCertChecking, "disable-client-cert-checking", false, "accept any client TLS certificate")
	runCmd.Flags().BoolVar(&autoTrustClients, "auto-trust-clients", false, "trust every connecting client's certificate on first use instead of rejecting until approved")
	runCmd.Flags().StringVar(&screensFile, "screens-config", "", "screens/aliases/links/options topology file")
	runCmd.Flags().StringVar(&traceIface, "trace-iface", "", "capture TCP segments on this interface for --debug network troubleshooting")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initLogging(cfg *config.Config) {
	var output io.Writer = os.Stdout
	if cfg.LogFile != "" {
		rw, err := logging.NewRotatingWriter(cfg.LogFile, 50, 3)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file %s: %v (logging to stdout)\n", cfg.LogFile, err)
		} else {
			output = logging.TeeWriter(os.Stdout, rw)
		}
	}
	logging.Init("text", cfg.Debug, output)
	log = logging.L("main")
}

// daemonComponents holds the running pieces of the server daemon so
// shutdown is a single deterministic call sequence, mirroring the
// teacher's agentComponents. Console mode and the Windows service wrapper
// (service_windows.go) both start one of these and call shutdownDaemon.
type daemonComponents struct {
	srv     *server.Server
	tracer  *diagnostics.PacketTracer
	watcher *config.Watcher
	cancel  context.CancelFunc
	errCh   chan error
}

func shutdownDaemon(comps *daemonComponents) {
	if comps == nil {
		return
	}
	comps.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	comps.srv.Stop(ctx)
	comps.tracer.Stop()
	comps.watcher.Close()
}

// startServer loads config, wires the listener and server engine, and
// begins serving in the background. Callers block on comps.errCh or their
// own shutdown signal, then call shutdownDaemon.
func startServer() (*daemonComponents, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	applyFlagOverrides(cfg)

	initLogging(cfg)
	log.Info("starting server", "version", version, "address", cfg.Address)

	profileDir := cfg.ProfileDir
	if profileDir == "" {
		dir, err := transport.ProfileDir()
		if err != nil {
			return nil, fmt.Errorf("resolve profile directory: %w", err)
		}
		profileDir = dir
	}

	topo, filters, policies, primaryName, screensPath, err := loadTopology(cfg)
	if err != nil {
		return nil, fmt.Errorf("load topology: %w", err)
	}

	var verify transport.TrustVerifier
	var listener net.Listener
	if cfg.DisableCrypto {
		plain, err := net.Listen("tcp", cfg.Address)
		if err != nil {
			return nil, fmt.Errorf("listen: %w", err)
		}
		listener = plain
	} else {
		cert, err := transport.EnsureCert(transport.CertPath(profileDir))
		if err != nil {
			return nil, fmt.Errorf("ensure certificate: %w", err)
		}
		store, err := transport.LoadStore(transport.TrustedClientsPath(profileDir))
		if err != nil {
			return nil, fmt.Errorf("load trusted clients: %w", err)
		}
		if disableClientCertChecking {
			verify = func(transport.Fingerprint) error { return nil }
		} else if autoTrustClients {
			verify = autoTrustVerifier(store)
		} else {
			verify = transport.VerifyAgainst(store)
		}
		tlsLn, err := transport.Listen(cfg.Address, cert, verify)
		if err != nil {
			return nil, fmt.Errorf("listen: %w", err)
		}
		listener = tlsLn
	}

	primaryShape := screen.Shape{X: 0, Y: 0, W: 1920, H: 1080}
	primary := headless.NewPrimary(primaryShape)

	fileDir := filepath.Join(profileDir, "incoming")
	if !cfg.EnableDragDrop {
		fileDir = ""
	}

	srv := server.NewServer(listener, topo, policies, primaryName, primary, filters, cfg, fileDir)

	tracer, err := diagnostics.StartPacketTrace(traceIface, addressPort(cfg.Address))
	if err != nil {
		log.Warn("packet trace disabled", "error", err)
	}

	var watcher *config.Watcher
	if screensPath != "" {
		w, err := config.WatchTopology(screensPath, func(parsed *config.Topology) {
			filters, err := config.BuildFilterList(parsed)
			if err != nil {
				log.Warn("some hotkey actions were skipped on reload", "error", err)
			}
			srv.ReloadConfig(filters, config.BuildPolicies(parsed))
		})
		if err != nil {
			log.Warn("live config reload disabled", "error", err)
		} else {
			watcher = w
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	comps := &daemonComponents{srv: srv, tracer: tracer, watcher: watcher, cancel: cancel, errCh: make(chan error, 1)}
	go func() { comps.errCh <- srv.Serve(ctx) }()
	return comps, nil
}

func runServer() {
	comps, err := startServer()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-comps.errCh:
		if err != nil {
			log.Error("server exited", "error", err)
		}
	}

	shutdownDaemon(comps)
	log.Info("server stopped")
}

func applyFlagOverrides(cfg *config.Config) {
	if debugLevel != "" {
		cfg.Debug = debugLevel
	}
	if screenName != "" {
		cfg.Name = screenName
	}
	if disableCrypto {
		cfg.DisableCrypto = true
	}
	if logFile != "" {
		cfg.LogFile = logFile
	}
	if profileDirFlag != "" {
		cfg.ProfileDir = profileDirFlag
	}
	if stopOnDeskSwitch {
		cfg.StopOnDeskSwitch = true
	}
	if enableDragDrop {
		cfg.EnableDragDrop = true
	}
	if cmdChanged("address") {
		cfg.Address = address
	}
	cfg.DisableClientCertChecking = disableClientCertChecking
	cfg.IPC = ipc
	cfg.NoTray = noTray
	cfg.Foreground = foreground
}

func cmdChanged(name string) bool {
	f := runCmd.Flags().Lookup(name)
	return f != nil && f.Changed
}

// loadTopology reads the screens/aliases/links/options grammar file (§6.3)
// named by cfg.ConfigFile (or --screens-config) and builds the live
// topology, filter list, and switching policies the server needs. With no
// file configured it falls back to a single unlinked screen named after
// cfg.Name or the local hostname, so the daemon can still start headless.
func loadTopology(cfg *config.Config) (*screen.Topology, *filter.List, switching.Policies, screen.Name, string, error) {
	name := cfg.Name
	if name == "" {
		if h, err := os.Hostname(); err == nil {
			name = h
		} else {
			name = "barriernet"
		}
	}
	primaryName := screen.Canonical(name)

	path := cfg.ConfigFile
	if screensFile != "" {
		path = screensFile
	}
	if path == "" {
		topo := screen.NewTopology()
		topo.AddScreen(screen.NewScreen(primaryName))
		return topo, &filter.List{}, switching.Policies{}, primaryName, "", nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, switching.Policies{}, "", "", fmt.Errorf("open screens config %s: %w", path, err)
	}
	defer f.Close()

	parsed, err := config.ParseTopology(f)
	if err != nil {
		return nil, nil, switching.Policies{}, "", "", fmt.Errorf("parse screens config: %w", err)
	}
	topo, err := config.BuildScreenTopology(parsed, jumpZoneDefault)
	if err != nil {
		return nil, nil, switching.Policies{}, "", "", fmt.Errorf("build topology: %w", err)
	}
	filters, err := config.BuildFilterList(parsed)
	if err != nil {
		log.Warn("some hotkey actions were skipped", "error", err)
	}
	policies := config.BuildPolicies(parsed)
	return topo, filters, policies, primaryName, path, nil
}

// addressPort extracts the numeric port from a "host:port" listen address,
// returning 0 if it can't be parsed.
func addressPort(address string) int {
	_, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return 0
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0
	}
	return port
}

func autoTrustVerifier(store *transport.Store) transport.TrustVerifier {
	return func(fp transport.Fingerprint) error {
		if store.IsTrusted(fp) {
			return nil
		}
		if err := store.AddTrusted(fp); err != nil {
			return err
		}
		log.Warn("auto-trusted new client fingerprint", "fingerprint", fp.String())
		return nil
	}
}

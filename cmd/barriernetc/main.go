package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/barriernet/barriernet/internal/client"
	"github.com/barriernet/barriernet/internal/config"
	"github.com/barriernet/barriernet/internal/diagnostics"
	"github.com/barriernet/barriernet/internal/logging"
	"github.com/barriernet/barriernet/internal/screen"
	"github.com/barriernet/barriernet/internal/transport"
	"github.com/barriernet/barriernet/pkg/screens/headless"
)

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
	autoTrustServer  bool
	traceIface       string
)

var log = logging.L("main")

var rootCmd = &cobra.Command{
	Use:   "barriernetc",
	Short: "barriernet client: applies a remote server's keyboard and mouse to this screen",
}

var runCmd = &cobra.Command{
	Use:   "run [server host]:port",
	Short: "Connect to a server and start receiving input",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runClient(args[0])
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("barriernetc v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&foreground, "foreground", "f", false, "run in the foreground instead of backgrounding")
	rootCmd.PersistentFlags().BoolVar(&noTray, "no-tray", false, "disable the system tray icon")
	rootCmd.PersistentFlags().StringVar(&debugLevel, "debug", "", "log level (DEBUG, INFO, NOTE, WARNING, ERROR)")
	rootCmd.PersistentFlags().StringVar(&screenName, "name", "", "screen name to present to the server (defaults to hostname)")
	rootCmd.PersistentFlags().BoolVar(&ipc, "ipc", false, "enable IPC with the GUI")
	rootCmd.PersistentFlags().BoolVar(&disableCrypto, "disable-crypto", false, "disable TLS (plaintext TCP)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log", "", "log file path")
	rootCmd.PersistentFlags().StringVar(&profileDirFlag, "profile-dir", "", "profile directory for certificate/fingerprint storage")
	rootCmd.PersistentFlags().BoolVar(&stopOnDeskSwitch, "stop-on-desk-switch", false, "stop applying input when the desktop session switches")
	rootCmd.PersistentFlags().BoolVar(&enableDragDrop, "enable-drag-drop", false, "enable file drag-and-drop between screens")

	runCmd.Flags().BoolVar(&autoTrustServer, "auto-trust-server", false, "trust the server's certificate fingerprint on first connect instead of refusing until approved")
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

func runClient(address string) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	applyFlagOverrides(cfg)

	initLogging(cfg)
	log.Info("starting client", "version", version, "server", address)

	profileDir := cfg.ProfileDir
	if profileDir == "" {
		dir, err := transport.ProfileDir()
		if err != nil {
			log.Error("resolve profile directory", "error", err)
			os.Exit(1)
		}
		profileDir = dir
	}

	name := cfg.Name
	if name == "" {
		if h, err := os.Hostname(); err == nil {
			name = h
		} else {
			name = "barriernet"
		}
	}

	secondaryShape := screen.Shape{X: 0, Y: 0, W: 1920, H: 1080}
	secondary := headless.NewSecondary(secondaryShape)

	var cert tls.Certificate
	var verify transport.TrustVerifier
	if !cfg.DisableCrypto {
		c, err := transport.EnsureCert(transport.CertPath(profileDir))
		if err != nil {
			log.Error("ensure certificate", "error", err)
			os.Exit(1)
		}
		cert = c

		store, err := transport.LoadStore(transport.TrustedServersPath(profileDir))
		if err != nil {
			log.Error("load trusted servers", "error", err)
			os.Exit(1)
		}
		if autoTrustServer {
			verify = autoTrustVerifier(store)
		} else {
			verify = transport.VerifyAgainst(store)
		}
	}

	fileDir := ""
	if cfg.EnableDragDrop {
		fileDir = filepath.Join(profileDir, "incoming")
	}

	tracer, err := diagnostics.StartPacketTrace(traceIface, addressPort(address))
	if err != nil {
		log.Warn("packet trace disabled", "error", err)
	}
	defer tracer.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := client.Options{
		Address:   address,
		Name:      name,
		Secondary: secondary,
		Config:    cfg,
		FileDir:   fileDir,
		Cert:      cert,
		Verify:    verify,
	}

	if err := client.Connect(ctx, opts); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("client exited", "error", err)
		os.Exit(1)
	}
	log.Info("client stopped")
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
	cfg.IPC = ipc
	cfg.NoTray = noTray
	cfg.Foreground = foreground
}

// addressPort extracts the numeric port from a "host:port" address,
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
		log.Warn("auto-trusted new server fingerprint", "fingerprint", fp.String())
		return nil
	}
}

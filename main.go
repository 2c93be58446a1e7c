// ABOUTME: Entry point for the playback daemon
// ABOUTME: Parses CLI flags, loads the configuration and runs the daemon
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Resonate-Protocol/playd/internal/config"
	"github.com/Resonate-Protocol/playd/internal/daemon"
	"github.com/Resonate-Protocol/playd/internal/discovery"
	"github.com/Resonate-Protocol/playd/internal/version"
)

var (
	configDir   = flag.String("config", defaultConfigDir(), "Configuration directory")
	name        = flag.String("name", "", "Zeroconf service name (default: hostname-playd)")
	logFile     = flag.String("log-file", "playd.log", "Log file path")
	debug       = flag.Bool("debug", false, "Enable debug logging")
	noTUI       = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	crossfade   = flag.Float64("crossfade", -1, "Cross-fade seconds (overrides the config file)")
	exitWhenEnd = flag.Bool("exit", false, "Exit after the last song")
	browse      = flag.Bool("discover", false, "List daemons on the network and exit")
	showVersion = flag.Bool("version", false, "Print the version and exit")
)

func defaultConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".playd"
	}
	return filepath.Join(dir, "playd")
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] [song...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s %s\n", version.Product, version.Version)
		return
	}

	if *browse {
		if err := listPeers(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	useTUI := !*noTUI

	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening log file: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		logrus.SetOutput(f)
	} else {
		logrus.SetOutput(io.MultiWriter(os.Stdout, f))
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if *debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	if err := run(useTUI); err != nil {
		logrus.WithError(err).Error("Daemon failed")
		if useTUI {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func run(useTUI bool) error {
	mgr := config.NewManager(*configDir)
	if err := mgr.Load(); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	settings := mgr.Get()
	if *crossfade >= 0 {
		settings.CrossfadeSeconds = *crossfade
	}

	logrus.WithFields(logrus.Fields{
		"version": version.Version,
		"config":  mgr.GetPath(),
		"songs":   flag.NArg(),
	}).Info("Starting playback daemon")

	d, err := daemon.New(daemon.Config{
		Settings:     settings,
		Songs:        flag.Args(),
		Name:         *name,
		UseTUI:       useTUI,
		ExitWhenDone: *exitWhenEnd,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := d.Run(ctx); err != nil {
		return err
	}
	logrus.Info("Daemon stopped")
	return nil
}

func listPeers() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	peers, err := discovery.Browse(ctx, 3*time.Second)
	if err != nil {
		return err
	}
	if len(peers) == 0 {
		fmt.Println("No daemons found")
		return nil
	}
	for _, p := range peers {
		fmt.Printf("%s\t%s:%d\t%s\n", p.Name, p.Host, p.Port, p.InstanceID)
	}
	return nil
}

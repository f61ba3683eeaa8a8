package main

import (
	"bufio"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"warden/pkg/datastore"
	"warden/pkg/identity"
	"warden/pkg/logging"
	"warden/pkg/server"
	"warden/pkg/version"
)

func main() {
	configFile := flag.String("config", "", "YAML config file path")
	showVersion := flag.Bool("version", false, "Print version and exit")

	cfg := server.DefaultConfig()
	flag.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "TCP bind address for sessions")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database file path")
	flag.StringVar(&cfg.PolicyFile, "policy", "", "YAML policy file (reason presets, staff roles)")
	flag.StringVar(&cfg.DirectoryFile, "directory", "", "YAML roster of known subject ids")
	flag.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "HTTP bind address for Prometheus /metrics (empty to disable)")

	logLevel := flag.String("log-level", "", "Log level: "+logging.LevelNames())
	logFormat := flag.String("log-format", "", "Log format: text or json")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Full())
		return
	}

	if *configFile != "" {
		loaded, err := server.LoadConfig(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
			os.Exit(1)
		}
		// Flags set explicitly win over the file.
		fileCfg := loaded
		flag.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "listen":
				fileCfg.ListenAddr = cfg.ListenAddr
			case "db":
				fileCfg.DBPath = cfg.DBPath
			case "policy":
				fileCfg.PolicyFile = cfg.PolicyFile
			case "directory":
				fileCfg.DirectoryFile = cfg.DirectoryFile
			case "metrics":
				fileCfg.MetricsAddr = cfg.MetricsAddr
			}
		})
		cfg = fileCfg
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}

	// Configure structured logging
	if err := logging.Setup(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging config: %v\n", err)
		os.Exit(1)
	}

	slog.Info("warden starting", "version", version.String())

	st, err := datastore.NewProviderFactory(cfg.DBPath)
	if err != nil {
		slog.Error("open database", "err", err)
		os.Exit(1)
	}

	var directory identity.Directory
	if cfg.DirectoryFile != "" {
		dir, err := identity.LoadDirectory(cfg.DirectoryFile)
		if err != nil {
			slog.Error("load directory", "err", err)
			os.Exit(1)
		}
		directory = dir
	}

	srv, err := server.New(cfg, server.Dependencies{Store: st, Directory: directory})
	if err != nil {
		slog.Error("server setup", "err", err)
		os.Exit(1)
	}

	go runConsole(srv)

	if err := srv.Run(); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}

// runConsole feeds stdin lines to the command dispatcher as the Console
// caller. Exits quietly when stdin closes (e.g. under a service manager).
func runConsole(srv *server.Server) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		srv.DispatchConsole(line)
	}
}

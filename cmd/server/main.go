package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/himanishpuri/VoiceDNA/internal/config"
	"github.com/himanishpuri/VoiceDNA/pkg/logger"
	"github.com/himanishpuri/VoiceDNA/pkg/voiceprint"
)

var (
	configPath     string
	host           string
	port           string
	backend        string
	dbPath         string
	allowedOrigins string
	logLevel       string
)

func init() {
	flag.StringVar(&configPath, "config", "", "Path to YAML config file (env VOICEPRINT_CONFIG)")
	flag.StringVar(&host, "host", "", "Listen host (overrides config)")
	flag.StringVar(&port, "port", "", "Listen port (overrides config)")
	flag.StringVar(&backend, "storage", "", "Enrollment storage: memory, sqlite or bolt")
	flag.StringVar(&dbPath, "db", "", "Path to the enrollment database file")
	flag.StringVar(&allowedOrigins, "origins", "", "Comma-separated list of allowed CORS origins (use * for all)")
	flag.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
}

func main() {
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.GetLogger().Fatalf("Failed to load config: %v", err)
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		logger.GetLogger().Fatalf("Invalid configuration: %v", err)
	}

	log := cfg.ConfigureLogger()

	opts, err := cfg.ServiceOptions(log.WithPrefix("voiceprint"))
	if err != nil {
		log.Fatalf("Failed to configure service: %v", err)
	}
	service, err := voiceprint.NewService(opts...)
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}
	defer service.Close()

	server := NewServer(service, &ServerConfig{
		Addr:           cfg.Addr(),
		Backend:        cfg.Storage.Backend,
		DBPath:         cfg.Storage.Path,
		AllowedOrigins: parseOrigins(cfg.Server.CORSOrigin),
		MaxUploadBytes: cfg.Server.MaxUploadMB << 20,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		ShutdownGrace:  cfg.Server.ShutdownGrace,
	}, log.WithPrefix("http"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		log.Errorf("Server failed: %v", err)
		service.Close()
		os.Exit(1)
	}
}

// applyFlags overrides configuration with flags that were set explicitly.
func applyFlags(cfg *config.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "host":
			cfg.Server.Host = host
		case "port":
			cfg.Server.Port = port
		case "storage":
			cfg.Storage.Backend = backend
		case "db":
			cfg.Storage.Path = dbPath
		case "origins":
			cfg.Server.CORSOrigin = allowedOrigins
		case "log-level":
			cfg.Logging.Level = logLevel
		}
	})
}

func parseOrigins(s string) []string {
	if s == "" || s == "*" {
		return []string{"*"}
	}
	origins := strings.Split(s, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	return origins
}

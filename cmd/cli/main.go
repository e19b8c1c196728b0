package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/himanishpuri/VoiceDNA/internal/config"
	"github.com/himanishpuri/VoiceDNA/pkg/logger"
	"github.com/himanishpuri/VoiceDNA/pkg/voiceprint"
)

// Global flags
var (
	configPath string
	backend    string
	dbPath     string
	resample   bool
	transcode  bool
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "voicedna",
	Short: "Voice enrollment and speaker identification",
	Long: `voicedna - enroll speakers from voice samples and identify them later.

Enrollments are kept in a local database (SQLite by default) so that
identify and list see what enroll stored.

Examples:
  voicedna enroll alice samples/alice.wav
  voicedna identify unknown.wav
  voicedna features unknown.wav
  voicedna list`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Path to YAML config file (env VOICEPRINT_CONFIG)")
	pf.StringVar(&backend, "storage", voiceprint.BackendSQLite, "Enrollment storage: sqlite, bolt or memory")
	pf.StringVar(&dbPath, "db", "", "Path to the enrollment database file")
	pf.BoolVar(&resample, "resample", false, "Resample input to the encoder's rate instead of rejecting it")
	pf.BoolVar(&transcode, "transcode", false, "Decode non-WAV input with ffmpeg")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(enrollCmd, identifyCmd, featuresCmd, listCmd)
}

// createService builds a service from config, environment and flags.
func createService(cmd *cobra.Command) (voiceprint.Service, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	pf := cmd.Flags()
	// an in-memory store would forget every enrollment on exit
	if pf.Changed("storage") || cfg.Storage.Backend == voiceprint.BackendMemory {
		cfg.Storage.Backend = backend
	}
	if pf.Changed("db") {
		cfg.Storage.Path = dbPath
	}
	if pf.Changed("resample") {
		cfg.Embedding.Resample = resample
	}
	if pf.Changed("transcode") {
		cfg.Transcode.Enabled = transcode
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := cfg.ConfigureLogger()
	switch {
	case verbose:
		log.SetLevel(logger.DEBUG)
	case os.Getenv("LOG_LEVEL") == "" && os.Getenv("VOICEPRINT_LOG_LEVEL") == "":
		log.SetLevel(logger.WARN)
	}

	opts, err := cfg.ServiceOptions(log.WithPrefix("voiceprint"))
	if err != nil {
		return nil, err
	}
	return voiceprint.NewService(opts...)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// voice-relay speaks a player's TF2 chat into a voice channel.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/book-expert/logger"
	"github.com/book-expert/voice-relay/internal/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Flag names.
const (
	flagConfig  = "config"
	flagEnvFile = "env-file"
	flagBackend = "backend"
	flagDevice  = "device"
)

// Flag descriptions.
const (
	flagConfigDesc  = "Path to a TOML configuration file (defaults to the central configurator)"
	flagEnvFileDesc = "Path to a .env file with overrides such as STEAM_USER_ID"
	flagBackendDesc = "Speech backend: webapi, google, chatllm or nats (overrides speech.backend)"
	flagDeviceDesc  = "Output device name (overrides playback.device)"
)

// File names.
const (
	bootstrapLogFile = "voice-relay-bootstrap.log"
	logFile          = "voice-relay.log"
	defaultEnvFile   = ".env"
)

// globalFlags holds the values of the persistent flags.
type globalFlags struct {
	configPath string
	envFile    string
	backend    string
	device     string
}

func setupLogger(logPath, fileName string) (*logger.Logger, error) {
	log, err := logger.New(logPath, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

// loadEnv applies the .env file. A missing default file is not an error.
func loadEnv(flags *globalFlags) error {
	err := godotenv.Load(flags.envFile)
	if err == nil {
		return nil
	}

	if errors.Is(err, fs.ErrNotExist) && flags.envFile == defaultEnvFile {
		return nil
	}

	return fmt.Errorf("failed to load %s: %w", flags.envFile, err)
}

// bootstrap loads the environment and configuration, then opens the final logger.
func bootstrap(flags *globalFlags) (*config.Config, *logger.Logger, error) {
	bootstrapLog, err := setupLogger(os.TempDir(), bootstrapLogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return nil, nil, err
	}

	defer func() {
		_ = bootstrapLog.Close()
	}()

	envErr := loadEnv(flags)
	if envErr != nil {
		bootstrapLog.Error("Failed to load environment: %v", envErr)

		return nil, nil, envErr
	}

	cfg, err := loadConfig(flags, bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	bootstrapLog.Info("Configuration loaded successfully.")

	finalLog, err := setupLogger(cfg.Paths.BaseLogsDir, logFile)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return nil, nil, fmt.Errorf("failed to create final logger: %w", err)
	}

	return cfg, finalLog, nil
}

func loadConfig(flags *globalFlags, log *logger.Logger) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)

	if flags.configPath != "" {
		cfg, err = config.LoadFile(flags.configPath)
	} else {
		cfg, err = config.Load(log)
	}

	if err != nil {
		return nil, err
	}

	if flags.backend != "" {
		cfg.Speech.Backend = flags.backend
	}

	if flags.device != "" {
		cfg.Playback.Device = flags.device
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, validateErr
	}

	return cfg, nil
}

func closeLogger(log *logger.Logger) {
	closeErr := log.Close()
	if closeErr != nil {
		fmt.Fprintf(os.Stderr, "error closing logger: %v\n", closeErr)
	}
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{
		configPath: "",
		envFile:    defaultEnvFile,
		backend:    "",
		device:     "",
	}

	rootCmd := &cobra.Command{
		Use:           "voice-relay",
		Short:         "Speak your TF2 chat into voice chat",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&flags.configPath, flagConfig, flags.configPath, flagConfigDesc)
	rootCmd.PersistentFlags().StringVar(&flags.envFile, flagEnvFile, flags.envFile, flagEnvFileDesc)
	rootCmd.PersistentFlags().StringVar(&flags.backend, flagBackend, flags.backend, flagBackendDesc)
	rootCmd.PersistentFlags().StringVar(&flags.device, flagDevice, flags.device, flagDeviceDesc)

	rootCmd.AddCommand(
		newRunCommand(flags),
		newSayCommand(flags),
		newDevicesCommand(),
		newServeSpeechCommand(flags),
	)

	return rootCmd
}

func run() error {
	return newRootCommand().Execute()
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "voice-relay exited with error: %v\n", err)
		os.Exit(1)
	}
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variables that override file settings.
const (
	EnvFrequency   = "TDSIM_FREQUENCY"
	EnvSeed        = "TDSIM_SEED"
	EnvParallel    = "TDSIM_PARALLEL"
	EnvDBPath      = "TDSIM_DB_PATH"
	EnvMonitorPort = "TDSIM_MONITOR_PORT"
	EnvLogLevel    = "TDSIM_LOG_LEVEL"
)

// LoadEnv loads .env files into the process environment. Variables that are
// already set win. Without arguments it loads ".env" if there is one.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		err := godotenv.Load()
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}

		return err
	}

	return godotenv.Load(files...)
}

// ApplyEnv overrides the settings with the TDSIM_* variables that are set,
// then validates the result.
func (f *File) ApplyEnv() error {
	if v, ok := os.LookupEnv(EnvFrequency); ok {
		f.Frequency = v
	}

	if v, ok := os.LookupEnv(EnvSeed); ok {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, EnvSeed, err)
		}

		f.Seed = seed
	}

	if v, ok := os.LookupEnv(EnvParallel); ok {
		parallel, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, EnvParallel, err)
		}

		f.Parallel = parallel
	}

	if v, ok := os.LookupEnv(EnvDBPath); ok {
		f.Recording.Enabled = v != ""
		f.Recording.Path = v
	}

	if v, ok := os.LookupEnv(EnvMonitorPort); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, EnvMonitorPort, err)
		}

		f.Monitoring.Enabled = true
		f.Monitoring.Port = port
	}

	if v, ok := os.LookupEnv(EnvLogLevel); ok {
		f.LogLevel = v
	}

	return f.Validate()
}

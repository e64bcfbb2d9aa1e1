package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds application configuration values.
type Config struct {
	Env string `validate:"required,oneof=dev prod"`
	DB  struct {
		Path        string        `validate:"required"`
		ReadConns   int           `validate:"min=1,max=64"`
		WriteQueue  int           `validate:"min=1"`
		BusyTimeout time.Duration `validate:"min=0"`
		WAL         bool
	}
	Log struct {
		ConsoleLevel string `validate:"required,oneof=debug info warn error"`
		FileLevel    string `validate:"required,oneof=debug info warn error"`
		File         string
	}
	Diag struct {
		// Addr is empty when the diagnostics server is disabled
		Addr string `validate:"omitempty,hostname_port"`
	}
	// Cron specs; an empty spec disables the job
	Maintenance struct {
		Checkpoint string
		Optimize   string
		Integrity  string
	}
}

var validate = validator.New()

// Load reads configuration from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	var c Config
	var err error

	c.Env = getenv("ENV", "prod")

	c.DB.Path = getenv("DB_PATH", "data/wallet.db")
	if c.DB.ReadConns, err = getint("DB_READ_CONNS", 4); err != nil {
		return Config{}, err
	}
	if c.DB.WriteQueue, err = getint("DB_WRITE_QUEUE", 64); err != nil {
		return Config{}, err
	}
	if c.DB.BusyTimeout, err = getduration("DB_BUSY_TIMEOUT", 5*time.Second); err != nil {
		return Config{}, err
	}
	if c.DB.WAL, err = getbool("DB_WAL", true); err != nil {
		return Config{}, err
	}

	c.Log.ConsoleLevel = strings.ToLower(getenv("LOG_CONSOLE_LEVEL", "info"))
	c.Log.FileLevel = strings.ToLower(getenv("LOG_FILE_LEVEL", "debug"))
	c.Log.File = getenv("LOG_FILE", "data/logs/walletdb.log")

	c.Diag.Addr = os.Getenv("DIAG_ADDR")

	c.Maintenance.Checkpoint = getenv("MAINT_CHECKPOINT", "@every 10m")
	c.Maintenance.Optimize = getenv("MAINT_OPTIMIZE", "0 4 * * *")
	c.Maintenance.Integrity = getenv("MAINT_INTEGRITY", "@daily")

	if err := validate.Struct(c); err != nil {
		return Config{}, err
	}
	return c, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return n, nil
}

func getbool(k string, def bool) (bool, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", k, err)
	}
	return b, nil
}

func getduration(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return d, nil
}

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/congo-pay/walletledger/internal/infra"
	"github.com/congo-pay/walletledger/internal/logging"
)

type migratorConfig struct {
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
}

func main() {
	steps := flag.Int("steps", 1, "number of migrations to roll back with \"down\"")
	flag.Parse()

	cmd := flag.Arg(0)
	if cmd == "" {
		cmd = "up"
	}

	if err := run(cmd, *steps); err != nil {
		fmt.Fprintf(os.Stderr, "migrate %s: %v\n", cmd, err)
		os.Exit(1)
	}
}

func run(cmd string, steps int) error {
	_ = godotenv.Load()

	var cfg migratorConfig
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(cfg.LogLevel, "component", "migrate")

	m, err := infra.NewMigrator(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			logger.Warn("close migrator", "error", err)
		}
	}()

	switch cmd {
	case "up":
		if err := m.Up(); err != nil {
			return err
		}
	case "down":
		if err := m.Down(steps); err != nil {
			return err
		}
	case "version":
	default:
		return fmt.Errorf("unknown command %q (want up, down or version)", cmd)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	logger.Info("migrations", "command", cmd, "version", version, "dirty", dirty)
	return nil
}

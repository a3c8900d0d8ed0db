// Package main loads a restaurants JSON document into the backend database.
//
// Usage:
//
//	go run ./cmd/seed --seed-file data/restaurants.json
//	API_DB=./backend.db go run ./cmd/seed --seed-file restaurants.json
//
// Restaurants are upserted by id. Embedded reviews are created only for
// restaurants without reviews, so the tool can be re-run safely.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/jpgfer/mws-restaurant-1/internal/config"
	"github.com/jpgfer/mws-restaurant-1/internal/logger"
	"github.com/jpgfer/mws-restaurant-1/internal/store/sqlite"
)

func main() {
	fs := pflag.NewFlagSet("seed", pflag.ExitOnError)
	config.RegisterFlags(fs)
	_ = fs.Parse(os.Args[1:])

	if err := run(fs); err != nil {
		fmt.Fprintf(os.Stderr, "seed: %v\n", err)
		os.Exit(1)
	}
}

func run(fs *pflag.FlagSet) error {
	cfg, err := config.LoadConfig(fs)
	if err != nil {
		return err
	}
	if cfg.Backend.SeedFile == "" {
		return fmt.Errorf("--seed-file is required")
	}

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		Environment: cfg.App.Environment,
	})
	defer log.Close()

	seed, err := sqlite.ReadSeedFile(cfg.Backend.SeedFile)
	if err != nil {
		return err
	}

	st, err := sqlite.Open(cfg.Backend.DBPath, log.Component("sqlite"))
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	start := time.Now()
	result, err := st.Seed(ctx, seed)
	if err != nil {
		return err
	}

	fmt.Printf("Seeded %s in %v\n", cfg.Backend.DBPath, time.Since(start).Round(time.Millisecond))
	fmt.Printf("   Restaurants: %d\n", result.Restaurants)
	fmt.Printf("   Reviews:     %d\n", result.Reviews)
	return nil
}

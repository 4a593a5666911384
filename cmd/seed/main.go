// Command seed loads the template catalog, provider configs from the
// environment and a fake customer calendar into the configured store.
// It is meant for Postgres; against the memory driver the data dies with
// the process.
//
//	go run ./cmd/seed -customers 40 -appointments 120 -days 14
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"lawncare/internal/app"
	"lawncare/internal/config"
	"lawncare/internal/seed"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	customers := fs.Int("customers", 25, "number of fake customers")
	appointments := fs.Int("appointments", 80, "number of fake appointments")
	days := fs.Int("days", 14, "calendar width in days, starting today")
	rngSeed := fs.Uint64("seed", 0, "random seed; 0 picks one")
	demo := fs.Bool("demo", true, "write fake customers and appointments")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.LoadConfig(nil)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	logger := app.NewSlog(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	rt, err := app.Build(ctx, cfg, logger, app.Options{})
	if err != nil {
		return fmt.Errorf("building runtime: %w", err)
	}
	defer rt.Close()

	stub := cfg.Providers.StubMode || cfg.Environment == "local"
	res, err := seed.New(rt.Repos, rt.Clock, logger).All(ctx, cfg.Providers, stub, *demo, seed.Options{
		Customers:    *customers,
		Appointments: *appointments,
		Days:         *days,
		Seed:         *rngSeed,
	})
	if err != nil {
		return err
	}

	return json.NewEncoder(os.Stdout).Encode(res)
}

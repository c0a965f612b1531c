package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/pairtalk/go/internal/config"
	"github.com/mcdev12/pairtalk/go/internal/gems"
)

// Grant mirrors one entry of the grants JSON file
type Grant struct {
	UserID string `json:"user_id"`
	Gems   int64  `json:"gems"`
}

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: seed_gems <grants.json>\n")
		os.Exit(2)
	}
	ctx := context.Background()

	// 1) Load the grants
	data, err := os.ReadFile(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "read JSON: %v\n", err)
		os.Exit(1)
	}
	var grants []Grant
	if err := json.Unmarshal(data, &grants); err != nil {
		fmt.Fprintf(os.Stderr, "unmarshal JSON: %v\n", err)
		os.Exit(1)
	}

	// 2) Connect using the service configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	store, err := gems.NewPostgresStore(pool, gems.Config{
		StartingBalance: cfg.Gems.StartingBalance,
		ExtendCost:      cfg.Gems.ExtendCost,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "gem store: %v\n", err)
		os.Exit(1)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "schema: %v\n", err)
		os.Exit(1)
	}

	// 3) Apply and count
	var (
		total   = len(grants)
		applied int
		skipped int
		errs    int
	)

	for _, g := range grants {
		if g.UserID == "" || g.Gems <= 0 {
			skipped++
			continue
		}
		balance, err := store.Grant(ctx, g.UserID, g.Gems)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error granting gems to %s: %v\n", g.UserID, err)
			errs++
			continue
		}
		fmt.Printf("%s: %d gems\n", g.UserID, balance)
		applied++
	}

	// 4) Print summary
	fmt.Printf(
		"Gem seed complete: %d total, %d applied, %d skipped, %d errors\n",
		total, applied, skipped, errs,
	)
}

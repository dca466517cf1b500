package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/pflag"

	"github.com/mcdev12/feud/go/internal/dbconfig"
	"github.com/mcdev12/feud/go/internal/questionbank"
)

func main() {
	path := pflag.StringP("file", "f", "", "question bank YAML (defaults to the embedded bank)")
	pflag.Parse()
	ctx := context.Background()

	// 1) Load and validate the bank
	var (
		bank *questionbank.Bank
		err  error
	)
	if *path == "" {
		bank, err = questionbank.Default()
	} else {
		bank, err = questionbank.LoadFile(*path)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "load bank: %v\n", err)
		os.Exit(1)
	}

	// 2) Connect using shared dbconfig
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	src := questionbank.NewPostgresSource(pool)
	if err := src.EnsureSchema(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	// 3) Upsert every set and count
	var (
		total    int
		inserted int
		updated  int
		errs     int
	)
	for _, name := range bank.Sets() {
		qs, err := bank.Questions(ctx, name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error reading set %s: %v\n", name, err)
			errs++
			continue
		}
		res, err := src.SaveSet(ctx, name, qs)
		total += res.Total
		inserted += res.Inserted
		updated += res.Updated
		if err != nil {
			fmt.Fprintf(os.Stderr, "error saving set %s: %v\n", name, err)
			errs++
			continue
		}
		fmt.Printf("set %s: %d questions\n", name, res.Total)
	}

	// 4) Print summary
	fmt.Printf(
		"Questions seed complete: %d total, %d inserted, %d updated, %d errors\n",
		total, inserted, updated, errs,
	)
	if errs > 0 {
		os.Exit(1)
	}
}

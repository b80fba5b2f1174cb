package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"folio.dev/internal/migrate"
	"folio.dev/internal/obs"
	"folio.dev/internal/store/pg"
)

func main() {
	var (
		dsn            = flag.String("dsn", os.Getenv("FOLIO_DATABASE_URL"), "PostgreSQL DSN")
		migrationsPath = flag.String("migrations", "", "Directory with SQL migrations (default: embedded)")
		seedsPath      = flag.String("seeds", "", "Directory with SQL seeds (default: embedded)")
		timeout        = flag.Duration("timeout", 30*time.Second, "Overall timeout")
	)
	flag.Parse()
	logger := obs.Logger()

	if *dsn == "" {
		fatal("missing DSN: provide via -dsn or FOLIO_DATABASE_URL")
	}
	if len(flag.Args()) == 0 {
		fatal("usage: migrate [up|down|seed|status]")
	}

	migrations, seeds := migrate.Embedded()
	if *migrationsPath != "" {
		migrations = os.DirFS(*migrationsPath)
	}
	if *seedsPath != "" {
		seeds = os.DirFS(*seedsPath)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	store, err := pg.Open(*dsn)
	if err != nil {
		fatal("open db", "error", err.Error())
	}
	defer store.Close()

	if err := execute(ctx, migrate.NewManager(store.DB(), migrations, seeds, migrate.WithLogger(logger)), flag.Arg(0)); err != nil {
		cancel()
		store.Close()
		fatal("migrate failed", "command", flag.Arg(0), "error", err.Error())
	}
	logger.Info("migrate done", "command", flag.Arg(0))
}

func execute(ctx context.Context, mgr *migrate.Manager, cmd string) error {
	switch cmd {
	case "up":
		return mgr.Up(ctx)
	case "down":
		return mgr.Down(ctx)
	case "seed":
		return mgr.Seed(ctx)
	case "status":
		steps, err := mgr.Status(ctx)
		if err != nil {
			return err
		}
		for _, s := range steps {
			state := "pending"
			if s.Applied {
				state = s.AppliedAt.Format(time.RFC3339)
			}
			fmt.Printf("%-24s %s\n", s.Name, state)
		}
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func fatal(msg string, args ...any) {
	obs.Logger().Error(msg, args...)
	os.Exit(1)
}

// Command grant-admin assigns the admin role to an identity directly in
// the database. Every runtime role assignment requires an acting admin,
// so the first admin of a deployment has to be granted out of band with
// this tool.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/xenking/card-market/internal/domain/identity"
	"github.com/xenking/card-market/internal/repository"
)

func main() {
	var (
		databaseURL string
		target      string
		role        string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&target, "identity", "", "identity token to assign the role to")
	flag.StringVar(&role, "role", "admin", "role to assign (admin, user, guest)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if target == "" {
		slog.Error("--identity is required")
		os.Exit(1)
	}
	if !identity.Role(role).Valid() {
		slog.Error("unknown role", slog.String("role", role))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, identity.ID(target), identity.Role(role)); err != nil {
		slog.Error("grant failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("role assigned", slog.String("identity", target), slog.String("role", role))
}

func run(ctx context.Context, databaseURL string, target identity.ID, role identity.Role) error {
	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return err
	}

	return repository.NewIdentityRepository(pool).AssignRole(ctx, target, role)
}

package main

import (
	"cmp"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/farmtocup-pos/internal/domain/auth"
	"github.com/xenking/farmtocup-pos/internal/seed"
	"github.com/xenking/farmtocup-pos/internal/storage/postgres"
)

func main() {
	var (
		databaseURL string
		menuFile    string
		jwtSecret   string
		tokenTTL    time.Duration
	)

	flag.StringVar(&databaseURL, "database-url", "", "postgres DSN to seed, DATABASE_URL when unset")
	flag.StringVar(&menuFile, "menu-file", "", "path to a menu JSON file (defaults to the embedded menu)")
	flag.StringVar(&jwtSecret, "jwt-secret", "", "print staff tokens signed with this secret (or JWT_SECRET env)")
	flag.DurationVar(&tokenTTL, "token-ttl", 7*24*time.Hour, "lifetime of printed staff tokens")
	flag.Parse()

	databaseURL = cmp.Or(databaseURL, os.Getenv("DATABASE_URL"))
	jwtSecret = cmp.Or(jwtSecret, os.Getenv("JWT_SECRET"))
	if databaseURL == "" {
		slog.Error("no database to seed, pass --database-url or set DATABASE_URL")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, databaseURL, menuFile); err != nil {
		slog.Error("menu seed failed", slog.Any("error", err))
		os.Exit(1)
	}

	if jwtSecret != "" {
		if err := printTokens(auth.NewTokens([]byte(jwtSecret), tokenTTL)); err != nil {
			slog.Error("staff tokens failed", slog.Any("error", err))
			os.Exit(1)
		}
	}

	slog.Info("menu seeded")
}

func run(ctx context.Context, databaseURL, menuFile string) error {
	menu, err := loadMenu(menuFile)
	if err != nil {
		return errors.Wrap(err, "load menu")
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "open pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "migrate")
	}

	slog.Info("upserting menu",
		slog.Int("products", len(menu.Products)),
		slog.Int("discounts", len(menu.Discounts)),
	)

	if err := seed.Apply(ctx, postgres.NewStore(pool), menu); err != nil {
		return errors.Wrap(err, "apply menu")
	}

	return nil
}

func loadMenu(path string) (*seed.Menu, error) {
	if path == "" {
		slog.Info("using embedded menu")
		return seed.Default()
	}

	slog.Info("reading menu file", slog.String("path", path))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read menu file")
	}
	return seed.Parse(data)
}

// printTokens writes one token per staff role to stdout for local testing.
func printTokens(tokens *auth.Tokens) error {
	staff := []auth.Principal{
		{UserID: "seed-admin", Role: auth.RoleAdmin},
		{UserID: "seed-cashier", Role: auth.RoleCashier},
	}
	for _, p := range staff {
		token, err := tokens.Issue(p)
		if err != nil {
			return errors.Wrapf(err, "issue %s token", p.Role)
		}
		fmt.Printf("%s\t%s\t%s\n", p.Role, p.UserID, token)
	}
	return nil
}

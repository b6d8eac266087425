package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/Santosh-Nagh/Kunafakingdom-POS/internal/obs"
	"github.com/Santosh-Nagh/Kunafakingdom-POS/internal/seed"
	"github.com/Santosh-Nagh/Kunafakingdom-POS/internal/store/postgres"
)

func main() {
	_ = godotenv.Load()

	var (
		databaseURL string
		pinCost     int
		skipMigrate bool
	)
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&pinCost, "pin-cost", bcrypt.DefaultCost, "bcrypt cost for staff PIN hashes")
	flag.BoolVar(&skipMigrate, "skip-migrate", false, "do not apply migrations before seeding")
	flag.Parse()

	logger := obs.NewLogger(os.Getenv("LOG_FORMAT"), os.Getenv("LOG_LEVEL"))

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		logger.Fatal().Msg("database URL is required: set --database-url or DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, logger, databaseURL, pinCost, !skipMigrate); err != nil {
		logger.Fatal().Err(err).Msg("seed failed")
	}
}

func run(ctx context.Context, logger zerolog.Logger, databaseURL string, pinCost int, migrate bool) error {
	if migrate {
		logger.Info().Msg("applying migrations")
		if err := postgres.Migrate(databaseURL); err != nil {
			return errors.Wrap(err, "migrate")
		}
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return err
	}
	st := postgres.New(pool)
	defer st.Close()

	res, err := st.Seed(ctx, seed.Demo(), pinCost)
	if err != nil {
		return err
	}

	logger.Info().
		Int64("branches", res.Branches).
		Int64("categories", res.Categories).
		Int64("products", res.Products).
		Int64("charges", res.Charges).
		Int64("users", res.Users).
		Msg("seed completed")
	return nil
}

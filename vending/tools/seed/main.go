package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/matheusmosca/vending-machine/vending/internal/stock"
)

type options struct {
	file            string
	dsn             string
	defaultQuantity int
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := pflag.NewFlagSet("seed", pflag.ContinueOnError)
	fs.StringVarP(&opts.file, "file", "f", getEnv("STOCK_FILE", ""), "stock file to load (bundled list when empty)")
	fs.StringVar(&opts.dsn, "dsn", getEnv("DATABASE_DSN", defaultDSN()), "catalog database DSN")
	fs.IntVar(&opts.defaultQuantity, "default-quantity", stock.DefaultQuantity, "quantity for products that do not set one")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.defaultQuantity < 0 {
		return opts, fmt.Errorf("--default-quantity must not be negative")
	}
	return opts, nil
}

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		logger.Fatal("invalid flags", zap.Error(err))
	}

	items, err := stock.Load(opts.file, opts.defaultQuantity)
	if err != nil {
		logger.Fatal("failed to load stock list", zap.String("file", opts.file), zap.Error(err))
	}

	db, err := openDB(opts.dsn, logger)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := Seed(ctx, db, items); err != nil {
		logger.Fatal("failed to seed catalog", zap.Error(err))
	}
	logger.Info("catalog seeded", zap.Int("products", len(items)))
}

func openDB(dsn string, logger *zap.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connectivity
	for i := 0; i < 30; i++ {
		if err := db.Ping(); err == nil {
			return db, nil
		}
		logger.Info("waiting for database", zap.Int("attempt", i+1))
		time.Sleep(1 * time.Second)
	}

	db.Close()
	return nil, fmt.Errorf("failed to connect to database after 30 attempts")
}

func defaultDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		getEnv("DATABASE_HOST", "localhost"),
		getEnv("DATABASE_PORT", "5432"),
		getEnv("DATABASE_USER", "root"),
		getEnv("DATABASE_PASSWORD", "vending_pass"),
		getEnv("DATABASE_NAME", "catalog_db"),
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

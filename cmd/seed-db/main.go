// Command seed-db loads users, bearer tokens, products, and discounts into
// the database from a JSON catalog file.
package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/digigoods/internal/storage/postgres"
)

type catalogJSON struct {
	Users []struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
	} `json:"users"`
	Products []struct {
		ID    int64           `json:"id"`
		Name  string          `json:"name"`
		Price decimal.Decimal `json:"price"`
		Stock int             `json:"stock"`
	} `json:"products"`
	Discounts []struct {
		Code                 string          `json:"code"`
		Percentage           decimal.Decimal `json:"percentage"`
		Type                 string          `json:"type"`
		ValidFrom            string          `json:"valid_from"`
		ValidUntil           string          `json:"valid_until"`
		RemainingUses        int             `json:"remaining_uses"`
		ApplicableProductIDs []int64         `json:"applicable_product_ids"`
	} `json:"discounts"`
}

func main() {
	var (
		databaseURL string
		catalogFile string
		token       string
		tokenUser   int64
		tokenPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&catalogFile, "catalog-file", "db/seed/catalog.json", "path to catalog JSON file")
	flag.StringVar(&token, "token", "", "bearer token to seed (or DIGI_SEED_TOKEN env)")
	flag.Int64Var(&tokenUser, "token-user", 1, "user id the seeded token authenticates as")
	flag.StringVar(&tokenPepper, "token-pepper", "", "HMAC pepper for token hashing (or DIGI_TOKEN_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if token == "" {
		token = os.Getenv("DIGI_SEED_TOKEN")
	}
	if tokenPepper == "" {
		tokenPepper = os.Getenv("DIGI_TOKEN_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, catalogFile, token, tokenUser, tokenPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, catalogFile, token string, tokenUser int64, pepper string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	raw, err := os.ReadFile(catalogFile)
	if err != nil {
		return errors.Wrapf(err, "read catalog file %s", catalogFile)
	}

	var catalog catalogJSON
	if err := json.Unmarshal(raw, &catalog); err != nil {
		return errors.Wrap(err, "parse catalog file")
	}

	if err := seedCatalog(ctx, pool, &catalog); err != nil {
		return err
	}

	if token != "" {
		if err := seedToken(ctx, pool, token, tokenUser, pepper); err != nil {
			return errors.Wrap(err, "seed token")
		}
	}

	return nil
}

func seedCatalog(ctx context.Context, pool *pgxpool.Pool, catalog *catalogJSON) error {
	for _, u := range catalog.Users {
		_, err := pool.Exec(ctx,
			`INSERT INTO users (id, username) VALUES ($1, $2)
			 ON CONFLICT (id) DO UPDATE SET username = EXCLUDED.username`,
			u.ID, u.Username,
		)
		if err != nil {
			return errors.Wrapf(err, "seed user %q", u.Username)
		}
	}
	slog.Info("users seeded", slog.Int("count", len(catalog.Users)))

	for _, p := range catalog.Products {
		_, err := pool.Exec(ctx,
			`INSERT INTO products (id, name, price, stock) VALUES ($1, $2, $3, $4)
			 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name,
			   price = EXCLUDED.price, stock = EXCLUDED.stock`,
			p.ID, p.Name, p.Price, p.Stock,
		)
		if err != nil {
			return errors.Wrapf(err, "seed product %q", p.Name)
		}
	}
	slog.Info("products seeded", slog.Int("count", len(catalog.Products)))

	for _, d := range catalog.Discounts {
		validFrom, err := time.Parse(time.DateOnly, d.ValidFrom)
		if err != nil {
			return errors.Wrapf(err, "discount %q: parse valid_from", d.Code)
		}
		validUntil, err := time.Parse(time.DateOnly, d.ValidUntil)
		if err != nil {
			return errors.Wrapf(err, "discount %q: parse valid_until", d.Code)
		}

		var id int64
		err = pool.QueryRow(ctx,
			`INSERT INTO discounts (code, percentage, type, valid_from, valid_until, remaining_uses)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (code) DO UPDATE SET percentage = EXCLUDED.percentage,
			   type = EXCLUDED.type, valid_from = EXCLUDED.valid_from,
			   valid_until = EXCLUDED.valid_until, remaining_uses = EXCLUDED.remaining_uses
			 RETURNING id`,
			d.Code, d.Percentage, d.Type, validFrom, validUntil, d.RemainingUses,
		).Scan(&id)
		if err != nil {
			return errors.Wrapf(err, "seed discount %q", d.Code)
		}

		for _, pid := range d.ApplicableProductIDs {
			_, err := pool.Exec(ctx,
				`INSERT INTO discount_products (discount_id, product_id) VALUES ($1, $2)
				 ON CONFLICT DO NOTHING`,
				id, pid,
			)
			if err != nil {
				return errors.Wrapf(err, "seed discount %q product %d", d.Code, pid)
			}
		}
	}
	slog.Info("discounts seeded", slog.Int("count", len(catalog.Discounts)))

	return nil
}

func seedToken(ctx context.Context, pool *pgxpool.Pool, token string, userID int64, pepper string) error {
	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(token))
	hash := hex.EncodeToString(mac.Sum(nil))

	_, err := pool.Exec(ctx,
		`INSERT INTO auth_tokens (token_hash, user_id, active) VALUES ($1, $2, TRUE)
		 ON CONFLICT (token_hash) DO UPDATE SET user_id = EXCLUDED.user_id, active = TRUE`,
		hash, userID,
	)
	if err != nil {
		return err
	}

	slog.Info("token seeded", slog.Int64("user_id", userID))
	return nil
}

// Package main provides a CLI tool for seeding the database with the admin
// user and the niche inventory.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	appctx "columbarium/internal/core/context"
	"columbarium/internal/core/id"
	"columbarium/internal/domain/niche"
	"columbarium/internal/infrastructure/storage/postgres"
	"columbarium/pkg/logger"
)

// nicheColumns is the COPY column list of the niches table.
var nicheColumns = []string{
	"id", "code", "module", "section", "row_number", "display_number", "type",
	"price", "status", "notes", "version", "created_at", "updated_at",
}

// typePrices is the list price of each niche type.
var typePrices = map[niche.Type]decimal.Decimal{
	niche.TypeWood:    decimal.NewFromInt(25000),
	niche.TypeMarble:  decimal.NewFromInt(35000),
	niche.TypeSpecial: decimal.NewFromInt(50000),
}

func main() {
	_ = godotenv.Load()

	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(dbURL))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	log.Info("connected to database")

	if _, err := seedAdminUser(ctx, pool, log); err != nil {
		log.Fatalw("failed to seed admin user", "error", err)
	}

	layout := inventoryLayout{
		Modules:  splitList(getEnv("SEED_MODULES", "A,B")),
		Sections: splitList(getEnv("SEED_SECTIONS", "1,2")),
		Rows:     getEnvInt("SEED_ROWS", 5),
		Numbers:  getEnvInt("SEED_NUMBERS", 10),
	}

	txManager := postgres.NewTxManager(pool)
	inserted, err := seedNiches(ctx, txManager, layout)
	if err != nil {
		log.Fatalw("failed to seed niches", "error", err)
	}
	log.Infow("niche inventory seeded", "inserted", inserted, "planned", layout.size())

	log.Info("seeding completed successfully")
}

func seedAdminUser(ctx context.Context, pool *postgres.Pool, log *logger.Logger) (id.ID, error) {
	username := strings.ToLower(getEnv("ADMIN_USERNAME", "admin"))
	password := getEnv("ADMIN_PASSWORD", "Admin123!")

	var existingID id.ID
	err := pool.Pool.QueryRow(ctx, `SELECT id FROM users WHERE username = $1`, username).Scan(&existingID)
	if err == nil {
		log.Infow("admin user already exists", "username", username, "user_id", existingID)
		return existingID, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return id.Nil(), fmt.Errorf("check admin exists: %w", err)
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return id.Nil(), fmt.Errorf("hash password: %w", err)
	}

	userID := id.New()
	now := time.Now().UTC()
	_, err = pool.Pool.Exec(ctx, `
		INSERT INTO users (
			id, username, password_hash, full_name, role, is_active,
			failed_login_attempts, created_at, updated_at, version
		)
		VALUES ($1, $2, $3, 'System Administrator', $4, true, 0, $5, $5, 1)
	`, userID, username, string(passwordHash), appctx.RoleAdmin, now)
	if err != nil {
		return id.Nil(), fmt.Errorf("insert admin user: %w", err)
	}

	log.Infow("admin user created", "username", username, "user_id", userID)
	return userID, nil
}

// inventoryLayout describes the physical grid of niches to generate.
type inventoryLayout struct {
	Modules  []string
	Sections []string
	Rows     int
	Numbers  int
}

func (l inventoryLayout) size() int {
	return len(l.Modules) * len(l.Sections) * l.Rows * l.Numbers
}

// typeForRow assigns special niches to the top row and alternates marble
// and wood below it.
func typeForRow(row int) niche.Type {
	switch {
	case row == 1:
		return niche.TypeSpecial
	case row%2 == 0:
		return niche.TypeMarble
	default:
		return niche.TypeWood
	}
}

// generate builds every niche of the layout.
func (l inventoryLayout) generate() []*niche.Niche {
	out := make([]*niche.Niche, 0, l.size())
	for _, module := range l.Modules {
		for _, section := range l.Sections {
			for row := 1; row <= l.Rows; row++ {
				t := typeForRow(row)
				for number := 1; number <= l.Numbers; number++ {
					out = append(out, niche.NewNiche(module, section, row, number, t, typePrices[t]))
				}
			}
		}
	}
	return out
}

// seedNiches copies the niches of layout whose code is not yet taken.
func seedNiches(ctx context.Context, txManager *postgres.TxManager, layout inventoryLayout) (int64, error) {
	planned := layout.generate()
	if len(planned) == 0 {
		return 0, nil
	}

	codes := make([]string, len(planned))
	for i, n := range planned {
		codes[i] = n.Code
	}

	var inserted int64
	err := txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		rows, err := txManager.GetQuerier(ctx).Query(ctx, `SELECT code FROM niches WHERE code = ANY($1)`, codes)
		if err != nil {
			return fmt.Errorf("query existing codes: %w", err)
		}
		existing, err := pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return fmt.Errorf("scan existing codes: %w", err)
		}
		taken := make(map[string]struct{}, len(existing))
		for _, code := range existing {
			taken[code] = struct{}{}
		}

		batch := make([][]any, 0, len(planned))
		for _, n := range planned {
			if _, ok := taken[n.Code]; ok {
				continue
			}
			batch = append(batch, []any{
				n.ID, n.Code, n.Module, n.Section, n.Row, n.Number, string(n.Type),
				n.Price, string(n.Status), n.Notes, n.Version, n.CreatedAt, n.UpdatedAt,
			})
		}
		if len(batch) == 0 {
			return nil
		}

		inserted, err = postgres.NewBatchInserter(txManager).CopyFromSlice(ctx, "niches", nicheColumns, batch)
		if err != nil {
			return fmt.Errorf("copy niches: %w", err)
		}
		return nil
	})
	return inserted, err
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

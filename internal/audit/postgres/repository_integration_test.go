//go:build integration

package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	_ "github.com/jackc/pgx/v5/stdlib" //для goose миграций

	"github.com/brianDahlin/Star-driver/internal/audit"
)

func TestRepository_Integration(t *testing.T) {
	ctx := context.Background()

	// Поднимаем PostgreSQL контейнер через testcontainers
	postgresContainer, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		postgres.WithDatabase("gateway"),
		postgres.WithUsername("gateway_user"),
		postgres.WithPassword("gateway_password"),
	)
	require.NoError(t, err)
	defer func() {
		err := postgresContainer.Terminate(ctx)
		require.NoError(t, err)
	}()

	dsn, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Открываем *sql.DB через pgx stdlib для goose миграций
	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	defer db.Close()

	// Ждём готовности БД через ping с retry
	var pingErr error
	for i := 0; i < 10; i++ {
		pingErr = db.PingContext(ctx)
		if pingErr == nil {
			break
		}
		time.Sleep(1 * time.Second)
	}
	require.NoError(t, pingErr, "Failed to ping database after retries")

	// Вычисляем путь к migrations относительно текущего файла
	_, filename, _, ok := runtime.Caller(0)
	require.True(t, ok, "Failed to get current file path")

	// Текущий файл: internal/audit/postgres/repository_integration_test.go
	// Нужно получить: migrations в корне репозитория
	testDir := filepath.Dir(filename)      // internal/audit/postgres
	auditDir := filepath.Dir(testDir)      // internal/audit
	internalDir := filepath.Dir(auditDir)  // internal
	rootDir := filepath.Dir(internalDir)   // корень
	migrationsDir := filepath.Join(rootDir, "migrations")

	err = goose.UpContext(ctx, db, migrationsDir)
	require.NoError(t, err, "Failed to run migrations")

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	repo := NewRepository(pool)

	t.Run("Record with raw payload", func(t *testing.T) {
		rec := audit.NewRecord("crypay", "inv-1", "ord-1", 150.00, "USDT", "paid", audit.OutcomeFulfilled)
		rec.ExternalOrderID = "frg-1"
		rec.RawPayload = json.RawMessage(`{"invoice_id":"inv-1","order_id":"ord-1"}`)

		err := repo.Record(ctx, rec)
		require.NoError(t, err)

		var (
			provider string
			outcome  string
			payload  []byte
		)
		row := pool.QueryRow(ctx, "SELECT provider, outcome, raw_payload FROM payment_audit WHERE id = $1", rec.ID)
		require.NoError(t, row.Scan(&provider, &outcome, &payload))
		require.Equal(t, "crypay", provider)
		require.Equal(t, string(audit.OutcomeFulfilled), outcome)
		require.JSONEq(t, string(rec.RawPayload), string(payload))
	})

	t.Run("Record without raw payload", func(t *testing.T) {
		rec := audit.NewRecord("wata", "tx-2", "ord-2", 990.00, "RUB", "Declined", audit.OutcomeDeclined)

		err := repo.Record(ctx, rec)
		require.NoError(t, err)

		var payload *string
		row := pool.QueryRow(ctx, "SELECT raw_payload FROM payment_audit WHERE id = $1", rec.ID)
		require.NoError(t, row.Scan(&payload))
		require.Nil(t, payload)
	})
}

package postgres

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"agent-curve-engine/internal/domain"
)

// setupTestDB creates a PostgreSQL container for testing and applies
// migrations. Returns a cleanup function that must be called after tests
// complete.
func setupTestDB(t *testing.T) (*Pool, func()) {
	t.Helper()

	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err, "failed to create pool")

	runMigrations(t, ctx, pool)

	cleanup := func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return pool, cleanup
}

// runMigrations applies the SQL files from internal/storage/migrations.
// Read from disk rather than through the migrations package: importing it
// here would form an import cycle.
func runMigrations(t *testing.T, ctx context.Context, pool *Pool) {
	t.Helper()

	projectRoot := findProjectRoot(t)
	migrationsDir := filepath.Join(projectRoot, "internal", "storage", "migrations", "postgres")

	entries, err := os.ReadDir(migrationsDir)
	require.NoError(t, err, "failed to read migrations directory")

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".sql" {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, file := range files {
		sql, err := os.ReadFile(filepath.Join(migrationsDir, file))
		require.NoError(t, err, "failed to read migration file: %s", file)

		_, err = pool.Exec(ctx, string(sql))
		require.NoError(t, err, "failed to execute migration: %s", file)
	}
}

// findProjectRoot walks up from current directory to find go.mod.
func findProjectRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	require.NoError(t, err, "failed to get working directory")

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (go.mod)")
		}
		dir = parent
	}
}

func testAgent(agentID string) *domain.Agent {
	now := time.Now().UnixMilli()
	return &domain.Agent{
		AgentID: agentID,
		Creator: "0x1111111111111111111111111111111111111111",
		Name:    "Test Agent",
		Symbol:  "TST",
		Config: domain.CurveConfig{
			StartPrice:        0.00004,
			EndPrice:          0.0003,
			TradeableCap:      248_000_000,
			GraduationReserve: 42_000,
			TradingFeeBps:     500,
			CreatorShareBps:   4000,
			PlatformShareBps:  4000,
		},
		State:     domain.CurveState{Phase: domain.PhaseActive},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func testTrade(agentID, tradeID string) *domain.TradeRecord {
	return &domain.TradeRecord{
		TradeID:       tradeID,
		AgentID:       agentID,
		HolderID:      "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		Side:          domain.TradeBuy,
		GrossAmount:   10_000,
		NetAmount:     9_500,
		TokensDelta:   1_000_000,
		Fee:           500,
		CreatorFee:    200,
		PlatformFee:   200,
		LPFee:         100,
		PriceBefore:   0.00004,
		PriceAfter:    0.0000411,
		AvgPrice:      0.0000095,
		SharesSold:    1_000_000,
		ReserveRaised: 9_500,
		ExecutedAt:    time.Now().UnixMilli(),
	}
}

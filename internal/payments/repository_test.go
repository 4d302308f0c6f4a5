package payments

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// dryRunPostgres renders statements with the postgres dialect without a server and records each query's SQL.
func dryRunPostgres(t *testing.T) (*gorm.DB, *[]string) {
	t.Helper()
	conn, err := gorm.Open(postgres.New(postgres.Config{DSN: "host=localhost user=farmlink dbname=farmlink sslmode=disable"}), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
	})
	require.NoError(t, err)

	var statements []string
	require.NoError(t, conn.Callback().Query().After("gorm:query").Register("test:capture", func(tx *gorm.DB) {
		statements = append(statements, tx.Statement.SQL.String())
	}))
	return conn, &statements
}

func TestCheckoutQueriesTakeRowLocks(t *testing.T) {
	conn, statements := dryRunPostgres(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	_, err := repo.FindOrderForUpdate(ctx, uuid.New())
	require.NoError(t, err)
	_, err = repo.FindByOrderIDForUpdate(ctx, uuid.New())
	require.NoError(t, err)

	require.NotEmpty(t, *statements)
	require.Contains(t, (*statements)[0], `FROM "orders"`)
	require.Contains(t, (*statements)[0], "FOR UPDATE")
	last := (*statements)[len(*statements)-1]
	require.Contains(t, last, `FROM "payments"`)
	require.Contains(t, last, "FOR UPDATE")
}

// Package dbtest opens throwaway SQLite databases carrying the application schema.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmlink-backend/pkg/db"
)

// Open returns a client backed by a private in-memory database.
func Open(t testing.TB) *db.Client {
	t.Helper()
	return open(t, "file:"+uuid.NewString()+"?mode=memory&cache=shared")
}

// OpenFile returns a client backed by a database file under t.TempDir().
// Writers take the lock at BEGIN so concurrent transactions serialize instead of failing.
func OpenFile(t testing.TB) *db.Client {
	t.Helper()
	path := filepath.Join(t.TempDir(), "farmlink.db")
	return open(t, "file:"+path+"?_busy_timeout=10000&_txlock=immediate")
}

func open(t testing.TB, dsn string) *db.Client {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(dsn), db.GormConfig())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	client := db.NewFromConn(conn)
	if err := client.ApplySQLiteSchema(context.Background()); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

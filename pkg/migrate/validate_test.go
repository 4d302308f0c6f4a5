package migrate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"
)

func TestValidateDirRejectsBadFilename(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "orders.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	err := ValidateDir(dir)
	if err == nil || !strings.Contains(err.Error(), "invalid migration filename") {
		t.Fatalf("expected filename error, got %v", err)
	}
}

func TestValidateDirRejectsMissingDown(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "20260101000000_orders.sql"), []byte("-- +goose Up\nSELECT 1;\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := ValidateDir(dir); err == nil {
		t.Fatal("expected missing down marker error")
	}
}

func TestValidateFSReportsEveryProblem(t *testing.T) {
	fsys := fstest.MapFS{
		"20260101000000_users.sql":  {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		"20260101000000_orders.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		"20260102000000_items.sql":  {Data: []byte("-- +goose Up\n")},
		"README.md":                 {Data: []byte("ignored")},
	}
	err := ValidateFS(fsys)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	msg := err.Error()
	if !strings.Contains(msg, "duplicate migration version 20260101000000") {
		t.Fatalf("expected duplicate version error, got %v", err)
	}
	if !strings.Contains(msg, "20260102000000_items.sql") {
		t.Fatalf("expected missing down marker error, got %v", err)
	}
}

func TestEmbeddedMigrationsValidate(t *testing.T) {
	if err := ValidateFS(Embedded()); err != nil {
		t.Fatalf("embedded migrations invalid: %v", err)
	}
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Add Payment Method!":      "add_payment_method",
		"  orders--index  ":        "orders_index",
		"%%%":                      "",
		"payments_order_id_unique": "payments_order_id_unique",
	}
	for in, want := range cases {
		if got := slugify(in); got != want {
			t.Errorf("slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCreateRefusesToOverwrite(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)
	path, err := createAt(dir, "add index", now)
	if err != nil {
		t.Fatalf("createAt: %v", err)
	}
	if filepath.Base(path) != "20260401093000_add_index.sql" {
		t.Fatalf("unexpected file %s", path)
	}
	if _, err := createAt(dir, "add index", now); err == nil {
		t.Fatal("expected second create with same version to fail")
	}
}

func TestCreateSQLMigrationWritesTemplate(t *testing.T) {
	dir := t.TempDir()
	path, err := CreateSQLMigration(dir, "Add Payment Method!")
	if err != nil {
		t.Fatalf("CreateSQLMigration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_payment_method.sql") {
		t.Fatalf("unexpected path %s", path)
	}
	if err := ValidateDir(dir); err != nil {
		t.Fatalf("generated migration should validate: %v", err)
	}
}

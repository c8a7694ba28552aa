package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alihaidary/souqna-backend/pkg/migrate"
)

func TestLedgerMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_ledger_and_payouts.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no ledger migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TYPE ledger_entry_kind AS ENUM",
		"CREATE TYPE ledger_entry_status AS ENUM",
		"CREATE TYPE payout_status AS ENUM",
		"CREATE TABLE IF NOT EXISTS ledger_entries",
		"CREATE TABLE IF NOT EXISTS payouts",
		"CREATE TABLE IF NOT EXISTS monthly_quotas",
		"CREATE UNIQUE INDEX IF NOT EXISTS uq_payouts_seller_week",
		"CREATE UNIQUE INDEX IF NOT EXISTS uq_monthly_quota_seller_month",
		"DROP TABLE IF EXISTS ledger_entries",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestOrdersMigrationContainsSchemas(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_orders_and_deliveries.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no orders migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TYPE order_status AS ENUM",
		"CREATE TYPE delivery_status AS ENUM",
		"CREATE TABLE IF NOT EXISTS orders",
		"CREATE TABLE IF NOT EXISTS delivery_orders",
		"CREATE TABLE IF NOT EXISTS delivery_status_logs",
		"settlement_blocked BOOLEAN NOT NULL DEFAULT FALSE",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_delivery_orders_external",
		"CREATE INDEX IF NOT EXISTS idx_orders_no_answer_deadline",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestMigrationDirValidates(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("migration dir invalid: %v", err)
	}
}

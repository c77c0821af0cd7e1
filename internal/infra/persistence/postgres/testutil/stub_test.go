package testutil

import (
	"context"
	"database/sql/driver"
	"testing"
)

func TestStubDBStoresAndQueriesRows(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()

	if err := conn.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	insert := `INSERT INTO "groups" (id, code, payload) VALUES ($1, $2, $3) ON CONFLICT (id) DO UPDATE SET code = excluded.code`
	for _, code := range []string{"AA", "BB"} {
		if _, err := conn.ExecContext(ctx, insert, []driver.NamedValue{{Value: "g1"}, {Value: code}, {Value: []byte("{}")}}); err != nil {
			t.Fatalf("ExecContext insert: %v", err)
		}
	}
	if rows := conn.Tables["groups"]; len(rows) != 1 || rows[0]["code"] != "BB" {
		t.Fatalf("expected upserted row, got %v", rows)
	}

	rows, err := conn.QueryContext(ctx, `SELECT id, code FROM "groups" ORDER BY id`, nil)
	if err != nil {
		t.Fatalf("QueryContext: %v", err)
	}
	dest := make([]driver.Value, 2)
	if err := rows.Next(dest); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if dest[0] != "g1" || dest[1] != "BB" {
		t.Fatalf("unexpected row values: %v", dest)
	}

	res, err := conn.ExecContext(ctx, `DELETE FROM "groups" WHERE code = $1`, []driver.NamedValue{{Value: "BB"}})
	if err != nil {
		t.Fatalf("ExecContext delete: %v", err)
	}
	if n, _ := res.RowsAffected(); n != 1 || len(conn.Tables["groups"]) != 0 {
		t.Fatalf("expected row deleted, affected=%d", n)
	}

	if _, err := conn.ExecContext(ctx, `DROP TABLE IF EXISTS "groups"`, nil); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if got := conn.Statements("insert"); len(got) != 2 {
		t.Fatalf("expected 2 recorded inserts, got %d", len(got))
	}
}

func TestStubFailures(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()
	conn.FailTables = map[string]bool{"marks": true}
	if _, err := conn.ExecContext(ctx, `INSERT INTO "marks" (id) VALUES ($1)`, []driver.NamedValue{{Value: "m"}}); err == nil {
		t.Fatalf("expected insert failure")
	}
	if _, err := conn.QueryContext(ctx, `SELECT payload FROM "marks"`, nil); err == nil {
		t.Fatalf("expected query failure")
	}
	if _, err := conn.ExecContext(ctx, `DELETE FROM "marks"`, nil); err == nil {
		t.Fatalf("expected parse failure for delete without predicate")
	}
	conn.FailBegin = true
	if _, err := conn.BeginTx(ctx, driver.TxOptions{}); err == nil {
		t.Fatalf("expected begin failure")
	}
	conn.FailPing = true
	if err := conn.Ping(ctx); err == nil {
		t.Fatalf("expected ping failure")
	}
}

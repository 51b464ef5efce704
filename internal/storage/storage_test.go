package storage

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := "sqlite://" + filepath.Join(t.TempDir(), "seen.db")
	s, err := NewStore(dsn, "")
	if err != nil {
		t.Fatalf("NewStore error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.EnsureSchema(); err != nil {
		t.Fatalf("EnsureSchema error: %v", err)
	}
	return s
}

func TestEnsureSchemaIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 3; i++ {
		if err := s.EnsureSchema(); err != nil {
			t.Fatalf("EnsureSchema call %d error: %v", i+2, err)
		}
	}
	if !s.DB.Migrator().HasTable("seen_updates") {
		t.Fatalf("expected table seen_updates to exist")
	}
}

func TestEnsureSchemaKeepsExistingTable(t *testing.T) {
	dsn := "sqlite://" + filepath.Join(t.TempDir(), "seen.db")
	s, err := NewStore(dsn, "")
	if err != nil {
		t.Fatalf("NewStore error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	// 旧版本直接用 SQL 建的表：没有 seen_at 索引，seen_at 带默认值
	legacy := `CREATE TABLE seen_updates (
		id INTEGER PRIMARY KEY,
		title TEXT UNIQUE,
		link TEXT,
		seen_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`
	if err := s.DB.Exec(legacy).Error; err != nil {
		t.Fatalf("create legacy table: %v", err)
	}
	if err := s.DB.Exec("INSERT INTO seen_updates (title, link) VALUES (?, ?)", "Old Notice", "http://x/old").Error; err != nil {
		t.Fatalf("seed legacy row: %v", err)
	}

	if err := s.EnsureSchema(); err != nil {
		t.Fatalf("EnsureSchema on existing table error: %v", err)
	}
	if s.DB.Migrator().HasIndex(&SeenUpdate{}, "SeenAt") {
		t.Fatalf("EnsureSchema must not add indexes to an existing table")
	}

	if seen, err := s.HasSeen("Old Notice"); err != nil || !seen {
		t.Fatalf("HasSeen on legacy row = %v, %v; want true", seen, err)
	}
	if err := s.Record("New Notice", "http://x/new"); err != nil {
		t.Fatalf("Record on legacy table error: %v", err)
	}
	if err := s.Record("New Notice", "http://x/again"); err != nil {
		t.Fatalf("duplicate Record on legacy table error: %v", err)
	}
	if n, err := s.CountSeen(); err != nil || n != 2 {
		t.Fatalf("CountSeen = %d, %v; want 2", n, err)
	}
}

func TestHasSeenAfterRecord(t *testing.T) {
	s := newTestStore(t)
	const title = "Result Class X 2025"

	seen, err := s.HasSeen(title)
	if err != nil {
		t.Fatalf("HasSeen error: %v", err)
	}
	if seen {
		t.Fatalf("HasSeen(%q) = true on empty store", title)
	}

	if err := s.Record(title, "http://x/y"); err != nil {
		t.Fatalf("Record error: %v", err)
	}

	if seen, err = s.HasSeen(title); err != nil || !seen {
		t.Fatalf("HasSeen(%q) after Record = %v, %v; want true", title, seen, err)
	}
	if seen, err = s.HasSeen("Result Class XII 2025"); err != nil || seen {
		t.Fatalf("HasSeen for unrecorded title = %v, %v; want false", seen, err)
	}
	// 精确匹配，不做大小写或空白归一
	if seen, _ = s.HasSeen("result class x 2025"); seen {
		t.Fatalf("HasSeen should be an exact match")
	}
}

func TestRecordTwiceKeepsOneRow(t *testing.T) {
	s := newTestStore(t)

	if err := s.Record("Date Sheet 2026", "http://x/a"); err != nil {
		t.Fatalf("first Record error: %v", err)
	}
	if err := s.Record("Date Sheet 2026", "http://x/b"); err != nil {
		t.Fatalf("duplicate Record should be a no-op, got error: %v", err)
	}

	n, err := s.CountSeen()
	if err != nil {
		t.Fatalf("CountSeen error: %v", err)
	}
	if n != 1 {
		t.Fatalf("CountSeen = %d, want 1", n)
	}

	var rec SeenUpdate
	if err := s.DB.Where("title = ?", "Date Sheet 2026").First(&rec).Error; err != nil {
		t.Fatalf("load record: %v", err)
	}
	if rec.Link != "http://x/a" {
		t.Fatalf("existing record must stay unchanged, link = %q", rec.Link)
	}
	if rec.SeenAt.IsZero() {
		t.Fatalf("SeenAt should be set")
	}
}

func TestListSeenNewestFirst(t *testing.T) {
	s := newTestStore(t)

	base := time.Date(2025, 5, 13, 10, 0, 0, 0, time.UTC)
	for i, title := range []string{"first", "second", "third"} {
		rec := SeenUpdate{Title: title, Link: "http://x/" + title, SeenAt: base.Add(time.Duration(i) * time.Hour)}
		if err := s.DB.Create(&rec).Error; err != nil {
			t.Fatalf("seed %s: %v", title, err)
		}
	}

	list, err := s.ListSeen(2)
	if err != nil {
		t.Fatalf("ListSeen error: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("ListSeen(2) returned %d rows", len(list))
	}
	if list[0].Title != "third" || list[1].Title != "second" {
		t.Fatalf("unexpected order: %q, %q", list[0].Title, list[1].Title)
	}

	all, err := s.ListSeen(0)
	if err != nil || len(all) != 3 {
		t.Fatalf("ListSeen(0) = %d rows, %v; want default limit covering 3", len(all), err)
	}
}

func TestClosedStoreReturnsStoreError(t *testing.T) {
	s := newTestStore(t)
	if err := s.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	_, err := s.HasSeen("anything")
	var serr *StoreError
	if !errors.As(err, &serr) {
		t.Fatalf("expected StoreError after Close, got %v", err)
	}
	if serr.Op != "has_seen" {
		t.Fatalf("StoreError.Op = %q, want has_seen", serr.Op)
	}
}

func TestOpenDialector(t *testing.T) {
	cases := []struct {
		dsn        string
		wantSQLite bool
		wantName   string
	}{
		{"sqlite:///tmp/seen.db", true, "sqlite"},
		{"file:seen.db?cache=shared", true, "sqlite"},
		{"postgres://u:p@localhost:5432/db?sslmode=require", false, "postgres"},
		{"host=localhost user=u dbname=db sslmode=disable", false, "postgres"},
	}
	for _, c := range cases {
		d, isSQLite := openDialector(c.dsn)
		if isSQLite != c.wantSQLite {
			t.Fatalf("openDialector(%q) sqlite = %v, want %v", c.dsn, isSQLite, c.wantSQLite)
		}
		if d.Name() != c.wantName {
			t.Fatalf("openDialector(%q) name = %q, want %q", c.dsn, d.Name(), c.wantName)
		}
	}
}

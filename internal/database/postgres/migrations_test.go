package postgres

import (
	"testing"
	"testing/fstest"
)

func TestLoadMigrations_Embedded(t *testing.T) {
	all, err := loadMigrations(migrationsFS)
	if err != nil {
		t.Fatalf("loadMigrations failed: %v", err)
	}
	want := []string{"001_students.sql", "002_known_faces.sql"}
	if len(all) != len(want) {
		t.Fatalf("got %d migrations, want %d", len(all), len(want))
	}
	for i, v := range want {
		if all[i].Version != v {
			t.Errorf("migration %d = %q, want %q", i, all[i].Version, v)
		}
	}
}

func TestLoadMigrations_OrderAndFilter(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/010_later.sql": {Data: []byte("SELECT 10;")},
		"migrations/002_mid.sql":   {Data: []byte("SELECT 2;")},
		"migrations/README.md":     {Data: []byte("not sql")},
		"migrations/001_first.sql": {Data: []byte("SELECT 1;")},
	}
	all, err := loadMigrations(fsys)
	if err != nil {
		t.Fatal(err)
	}
	got := make([]string, len(all))
	for i, m := range all {
		got[i] = m.Version
	}
	want := []string{"001_first.sql", "002_mid.sql", "010_later.sql"}
	if len(got) != len(want) {
		t.Fatalf("versions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("versions = %v, want %v", got, want)
			break
		}
	}
	if all[0].SQL != "SELECT 1;" {
		t.Errorf("SQL = %q", all[0].SQL)
	}
}

func TestLoadMigrations_EmptyFile(t *testing.T) {
	fsys := fstest.MapFS{"migrations/001_blank.sql": {Data: []byte(" \n")}}
	if _, err := loadMigrations(fsys); err == nil {
		t.Error("expected error for empty migration")
	}
}

func TestPendingMigrations(t *testing.T) {
	all := []migration{{Version: "001_a.sql"}, {Version: "002_b.sql"}, {Version: "003_c.sql"}}

	tests := []struct {
		name    string
		applied []string
		want    []string
	}{
		{"fresh database", nil, []string{"001_a.sql", "002_b.sql", "003_c.sql"}},
		{"partially applied", []string{"001_a.sql"}, []string{"002_b.sql", "003_c.sql"}},
		{"gap", []string{"001_a.sql", "003_c.sql"}, []string{"002_b.sql"}},
		{"up to date", []string{"001_a.sql", "002_b.sql", "003_c.sql"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := pendingMigrations(all, tt.applied)
			if len(got) != len(tt.want) {
				t.Fatalf("pending = %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i].Version != tt.want[i] {
					t.Errorf("pending[%d] = %q, want %q", i, got[i].Version, tt.want[i])
				}
			}
		})
	}
}

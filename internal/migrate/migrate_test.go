package migrate

import (
	"errors"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/geovoyager/geovoyager/migrations"
)

func TestLoad_SortsAndPairs(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"000002_second.up.sql":   {Data: []byte("CREATE TABLE b ();")},
		"000002_second.down.sql": {Data: []byte("DROP TABLE b;")},
		"000001_first.up.sql":    {Data: []byte("CREATE TABLE a ();")},
		"README.md":              {Data: []byte("ignored")},
		"embed.go":               {Data: []byte("package migrations")},
	}

	got, err := Load(fsys)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(got))
	}
	if got[0].Version != 1 || got[0].Name != "first" || got[0].Down != "" {
		t.Errorf("unexpected first migration: %+v", got[0])
	}
	if got[1].Version != 2 || got[1].Down != "DROP TABLE b;" {
		t.Errorf("unexpected second migration: %+v", got[1])
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		fsys    fstest.MapFS
		wantErr error
	}{
		{
			name: "down without up",
			fsys: fstest.MapFS{
				"000001_only_down.down.sql": {Data: []byte("DROP TABLE x;")},
			},
			wantErr: ErrMissingUp,
		},
		{
			name: "same version different names",
			fsys: fstest.MapFS{
				"000001_a.up.sql": {Data: []byte("SELECT 1;")},
				"000001_b.up.sql": {Data: []byte("SELECT 2;")},
			},
			wantErr: ErrDuplicateVersion,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Load(tt.fsys)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Load error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_EmbeddedMigrations(t *testing.T) {
	t.Parallel()

	got, err := Load(migrations.FS)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(got) == 0 {
		t.Fatal("expected embedded migrations")
	}
	if got[0].Version != 1 || got[0].Name != "pois" {
		t.Errorf("unexpected first migration: %d_%s", got[0].Version, got[0].Name)
	}
	if !strings.Contains(got[0].Up, "CREATE TABLE IF NOT EXISTS pois") {
		t.Error("pois up migration should create the pois table")
	}
	if !strings.Contains(got[0].Down, "DROP TABLE IF EXISTS pois") {
		t.Error("pois down migration should drop the pois table")
	}
}

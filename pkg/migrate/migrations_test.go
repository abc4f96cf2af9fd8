package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wiedu/wiedu-backend/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no %s migration file found", suffix)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func assertContains(t *testing.T, content string, checks []string) {
	t.Helper()
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("ValidateDir: %v", err)
	}
}

func TestStudiesMigrationGuardsCapacity(t *testing.T) {
	assertContains(t, readMigration(t, "create_studies"), []string{
		"CREATE TABLE IF NOT EXISTS studies",
		"CHECK (max_members >= 2)",
		"CHECK (current_members >= 1 AND current_members <= max_members)",
		"DROP TABLE IF EXISTS studies",
	})
}

func TestMembershipMigrationIsUniquePerUser(t *testing.T) {
	assertContains(t, readMigration(t, "create_study_memberships"), []string{
		"CONSTRAINT ux_study_memberships_study_user UNIQUE (study_id, user_id)",
		"FOREIGN KEY (study_id) REFERENCES studies(id) ON DELETE CASCADE",
	})
}

func TestRequestMigrationHasPendingPartialIndex(t *testing.T) {
	assertContains(t, readMigration(t, "create_study_requests"), []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_study_requests_pending",
		"WHERE status = 'pending'",
	})
}

func TestCreateSQLMigrationWritesGooseTemplate(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Study Tags!")
	if err != nil {
		t.Fatalf("CreateSQLMigration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_study_tags.sql") {
		t.Fatalf("unexpected filename %s", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("generated migration should validate: %v", err)
	}
}

func TestCreateSQLMigrationRejectsEmptyName(t *testing.T) {
	if _, err := migrate.CreateSQLMigration(t.TempDir(), " !! "); err == nil {
		t.Fatal("expected error for name without letters")
	}
}

func TestValidateDirRejectsMalformedMigrations(t *testing.T) {
	cases := map[string]struct {
		file string
		body string
	}{
		"sequential version": {
			file: "00001_create_things.sql",
			body: "-- +goose Up\nSELECT 1;\n-- +goose Down\nSELECT 1;\n",
		},
		"missing down": {
			file: "20260901090000_create_things.sql",
			body: "-- +goose Up\nSELECT 1;\n",
		},
		"down before up": {
			file: "20260901090000_create_things.sql",
			body: "-- +goose Down\nSELECT 1;\n-- +goose Up\nSELECT 1;\n",
		},
		"unterminated block": {
			file: "20260901090000_create_things.sql",
			body: "-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose Down\nSELECT 1;\n",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			if err := os.WriteFile(filepath.Join(dir, tc.file), []byte(tc.body), 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}
			if err := migrate.ValidateDir(dir); err == nil {
				t.Fatalf("expected %s to be rejected", name)
			}
		})
	}
}

func TestValidateDirAllowsEmptyDir(t *testing.T) {
	if err := migrate.ValidateDir(t.TempDir()); err != nil {
		t.Fatalf("empty dir should validate: %v", err)
	}
}

func TestValidateDirRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "create_things.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := migrate.ValidateDir(dir); err == nil {
		t.Fatal("expected invalid filename error")
	}
}

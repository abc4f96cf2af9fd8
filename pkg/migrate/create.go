package migrate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"unicode"

	"github.com/pressly/goose/v3"
)

// sqlTemplate leaves a reminder that the sqlite test schema mirrors every
// table change made here.
var sqlTemplate = template.Must(template.New("wiedu.sql-migration").Parse(`-- +goose Up
-- +goose StatementBegin
-- {{.CamelName}}: mirror table changes in pkg/db/dbtest.Schema
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- revert {{.CamelName}}
-- +goose StatementEnd
`))

// CreateSQLMigration writes <dir>/<YYYYMMDDHHMMSS>_<snake_name>.sql through
// goose and returns its path.
func CreateSQLMigration(dir string, name string) (string, error) {
	if dir == "" {
		return "", errors.New("dir is required")
	}
	trimmed := strings.TrimFunc(name, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsNumber(r) })
	if trimmed == "" {
		return "", fmt.Errorf("name %q has no letters or digits", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}

	before, err := sqlFiles(dir)
	if err != nil {
		return "", err
	}
	if err := goose.CreateWithTemplate(nil, dir, sqlTemplate, trimmed, "sql"); err != nil {
		return "", fmt.Errorf("create migration: %w", err)
	}
	after, err := sqlFiles(dir)
	if err != nil {
		return "", err
	}
	for path := range after {
		if !before[path] {
			return path, nil
		}
	}
	return "", fmt.Errorf("migration for %q was not written to %s", name, dir)
}

func sqlFiles(dir string) (map[string]bool, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	files := make(map[string]bool, len(matches))
	for _, m := range matches {
		files[m] = true
	}
	return files, nil
}

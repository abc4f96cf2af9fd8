package migrate

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pressly/goose/v3"
)

const timestampDigits = 14

// ValidateDir checks the goose SQL migrations in dir. Versions must be unique
// YYYYMMDDHHMMSS timestamps, each file needs an Up section followed by a Down
// section, and StatementBegin/StatementEnd blocks must pair up. An empty dir
// is valid.
func ValidateDir(dir string) error {
	if dir == "" {
		return errors.New("dir is required")
	}

	migrations, err := goose.CollectMigrations(dir, 0, goose.MaxVersion)
	if errors.Is(err, goose.ErrNoMigrationFiles) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("collect migrations: %w", err)
	}

	seen := make(map[int64]string, len(migrations))
	for _, m := range migrations {
		name := filepath.Base(m.Source)
		if len(strconv.FormatInt(m.Version, 10)) != timestampDigits {
			return fmt.Errorf("migration %q: version must be a YYYYMMDDHHMMSS timestamp", name)
		}
		if prev, ok := seen[m.Version]; ok {
			return fmt.Errorf("duplicate migration version %d in %q and %q", m.Version, prev, name)
		}
		seen[m.Version] = name

		if err := checkDirectives(m.Source); err != nil {
			return fmt.Errorf("migration %q: %w", name, err)
		}
	}
	return nil
}

func checkDirectives(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var up, down bool
	open := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "-- +goose Up"):
			up = true
		case strings.HasPrefix(line, "-- +goose Down"):
			if !up {
				return errors.New("down section before up section")
			}
			if open != 0 {
				return errors.New("up section ends inside a statement block")
			}
			down = true
		case strings.HasPrefix(line, "-- +goose StatementBegin"):
			if open++; open > 1 {
				return errors.New("nested statement block")
			}
		case strings.HasPrefix(line, "-- +goose StatementEnd"):
			if open--; open < 0 {
				return errors.New("statement block end without begin")
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	switch {
	case !up:
		return errors.New(`missing "-- +goose Up"`)
	case !down:
		return errors.New(`missing "-- +goose Down"`)
	case open != 0:
		return errors.New("unterminated statement block")
	}
	return nil
}

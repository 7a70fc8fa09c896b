package mysql

import (
	"context"
	"fmt"
	"io/fs"
	"strings"
	"time"
)

const schemaTable = "journal_schema_versions"

// schemaStep is one embedded .sql file split into statements.
type schemaStep struct {
	version string
	file    string
	stmts   []string
}

// migrate brings the journal schema up to date. Every pending step runs in
// its own transaction together with its version row.
func (s *JournalStore) migrate(ctx context.Context, files fs.FS) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+schemaTable+` (
    version VARCHAR(32) NOT NULL PRIMARY KEY,
    applied_at BIGINT NOT NULL
)`); err != nil {
		return fmt.Errorf("create %s: %w", schemaTable, err)
	}

	done, err := s.appliedVersions(ctx)
	if err != nil {
		return err
	}
	steps, err := schemaSteps(files)
	if err != nil {
		return err
	}
	for _, step := range steps {
		if done[step.version] {
			continue
		}
		if err := s.apply(ctx, step); err != nil {
			return err
		}
		s.log.Info("journal schema migrated", "version", step.version, "file", step.file)
	}
	return nil
}

func (s *JournalStore) appliedVersions(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT version FROM `+schemaTable)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", schemaTable, err)
	}
	defer rows.Close()

	done := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan %s: %w", schemaTable, err)
		}
		done[version] = true
	}
	return done, rows.Err()
}

func (s *JournalStore) apply(ctx context.Context, step schemaStep) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema step %s: %w", step.version, err)
	}
	defer tx.Rollback()

	for _, stmt := range step.stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema step %s: %w", step.file, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO `+schemaTable+` (version, applied_at) VALUES (?, ?)`,
		step.version, time.Now().Unix()); err != nil {
		return fmt.Errorf("record schema step %s: %w", step.version, err)
	}
	return tx.Commit()
}

// schemaSteps reads the *.sql files of files in name order. The version is
// the file name up to the first underscore. Files without statements are
// skipped.
func schemaSteps(files fs.FS) ([]schemaStep, error) {
	names, err := fs.Glob(files, "*.sql")
	if err != nil {
		return nil, fmt.Errorf("list schema files: %w", err)
	}
	steps := make([]schemaStep, 0, len(names))
	for _, name := range names {
		content, err := fs.ReadFile(files, name)
		if err != nil {
			return nil, fmt.Errorf("read schema file %s: %w", name, err)
		}
		var stmts []string
		for _, stmt := range strings.Split(string(content), ";") {
			if stmt = strings.TrimSpace(stmt); stmt != "" {
				stmts = append(stmts, stmt)
			}
		}
		if len(stmts) == 0 {
			continue
		}
		version, _, _ := strings.Cut(strings.TrimSuffix(name, ".sql"), "_")
		steps = append(steps, schemaStep{version: version, file: name, stmts: stmts})
	}
	return steps, nil
}

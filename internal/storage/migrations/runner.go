package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"strings"
)

// execFunc runs one SQL statement.
type execFunc func(ctx context.Context, stmt string) error

// apply runs every statement of every .sql file under dir in lexical file
// order. Files must be idempotent: they run on every start.
func apply(ctx context.Context, fsys fs.FS, dir string, exec execFunc) error {
	files, err := migrationFiles(fsys, dir)
	if err != nil {
		return err
	}

	for _, file := range files {
		data, err := fs.ReadFile(fsys, path.Join(dir, file))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		for i, stmt := range splitStatements(string(data)) {
			if err := exec(ctx, stmt); err != nil {
				return fmt.Errorf("apply migration %s (statement %d): %w", file, i+1, err)
			}
		}
	}
	return nil
}

// splitStatements splits SQL on semicolons outside single-quoted literals
// and drops -- line comments. Block comments are not supported.
func splitStatements(sql string) []string {
	var (
		stmts   []string
		cur     strings.Builder
		inQuote bool
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			stmts = append(stmts, s)
		}
		cur.Reset()
	}

	for i := 0; i < len(sql); i++ {
		ch := sql[i]
		switch {
		case inQuote:
			cur.WriteByte(ch)
			if ch == '\'' {
				if i+1 < len(sql) && sql[i+1] == '\'' {
					cur.WriteByte('\'')
					i++
				} else {
					inQuote = false
				}
			}
		case ch == '\'':
			inQuote = true
			cur.WriteByte(ch)
		case ch == '-' && i+1 < len(sql) && sql[i+1] == '-':
			for i < len(sql) && sql[i] != '\n' {
				i++
			}
			cur.WriteByte('\n')
		case ch == ';':
			flush()
		default:
			cur.WriteByte(ch)
		}
	}
	flush()
	return stmts
}

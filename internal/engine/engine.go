// Package engine is the execution boundary. It registers the analytical
// relations as DuckDB views over parquet files and runs validated SQL against
// them. It enforces no semantics of its own beyond the registered views.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/finquery/finquery/internal/storage"
)

type Config struct {
	// LocalDir holds the parquet datasets. Files missing locally are fetched
	// from the object store when one is configured.
	LocalDir    string
	Files       map[string]string
	MemoryLimit string
	Threads     int
	RowLimit    int
}

type Result struct {
	Columns  []string      `json:"columns"`
	Rows     [][]any       `json:"rows"`
	RowCount int           `json:"row_count"`
	Duration time.Duration `json:"-"`
}

type Engine struct {
	db       *sql.DB
	rowLimit int
	logger   *slog.Logger
}

func New(ctx context.Context, cfg Config, store storage.ObjectStore, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Files) == 0 {
		return nil, fmt.Errorf("at least one relation file is required")
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	if cfg.MemoryLimit != "" {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("SET memory_limit = '%s'", cfg.MemoryLimit)); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set memory limit: %w", err)
		}
	}
	if cfg.Threads > 0 {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("SET threads = %d", cfg.Threads)); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set threads: %w", err)
		}
	}

	relations := make([]string, 0, len(cfg.Files))
	for relation := range cfg.Files {
		relations = append(relations, relation)
	}
	sort.Strings(relations)

	for _, relation := range relations {
		localPath := filepath.Join(cfg.LocalDir, cfg.Files[relation])
		if _, statErr := os.Stat(localPath); statErr != nil {
			if store == nil {
				_ = db.Close()
				return nil, fmt.Errorf("dataset for relation %q not found at %q and no object store configured", relation, localPath)
			}
			logger.Info("fetching dataset from object store",
				slog.String("relation", relation),
				slog.String("key", cfg.Files[relation]),
			)
			if err := storage.Download(ctx, store, cfg.Files[relation], localPath); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("fetch dataset for relation %q: %w", relation, err)
			}
		}

		viewSQL := fmt.Sprintf(`CREATE OR REPLACE VIEW %s AS SELECT * FROM read_parquet(%s)`,
			quoteIdent(relation), quoteString(localPath))
		if _, err := db.ExecContext(ctx, viewSQL); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create view for relation %q: %w", relation, err)
		}
	}

	return &Engine{db: db, rowLimit: cfg.RowLimit, logger: logger}, nil
}

func (e *Engine) Execute(ctx context.Context, sqlText string) (Result, error) {
	trimmed := stripTrailingSemicolons(sqlText)
	if trimmed == "" {
		return Result{}, fmt.Errorf("sql is required")
	}
	if e.rowLimit > 0 {
		trimmed = fmt.Sprintf("SELECT * FROM (%s) AS q LIMIT %d", trimmed, e.rowLimit)
	}

	start := time.Now()
	rows, err := e.db.QueryContext(ctx, trimmed)
	if err != nil {
		return Result{}, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return Result{}, fmt.Errorf("query columns: %w", err)
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return Result{}, fmt.Errorf("scan row: %w", err)
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return Result{}, fmt.Errorf("iterate rows: %w", err)
	}

	return Result{
		Columns:  columns,
		Rows:     resultRows,
		RowCount: len(resultRows),
		Duration: time.Since(start),
	}, nil
}

func (e *Engine) HealthCheck(ctx context.Context) error {
	if err := e.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping duckdb: %w", err)
	}
	return nil
}

func (e *Engine) Close() error {
	return e.db.Close()
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func quoteString(value string) string {
	return `'` + strings.ReplaceAll(value, `'`, `''`) + `'`
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}

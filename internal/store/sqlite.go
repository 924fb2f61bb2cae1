package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/regtechmx/expediente-engine/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id                 TEXT PRIMARY KEY,
	case_id            TEXT NOT NULL,
	next_action        TEXT NOT NULL,
	requirement_type   TEXT NOT NULL,
	overall_confidence REAL NOT NULL,
	fusion             TEXT NOT NULL,
	classification     TEXT NOT NULL,
	created_at         DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_runs_case_id ON runs(case_id);
CREATE INDEX IF NOT EXISTS idx_runs_next_action ON runs(next_action);
CREATE INDEX IF NOT EXISTS idx_runs_requirement_type ON runs(requirement_type);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run *model.Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	fusionJSON, classJSON, err := marshalRun(run)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, case_id, next_action, requirement_type, overall_confidence, fusion, classification, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CaseID, string(nextActionOf(run)), string(requirementTypeOf(run)),
		overallConfidenceOf(run), fusionJSON, classJSON, run.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert run %s", run.ID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, case_id, fusion, classification, created_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, case_id, fusion, classification, created_at FROM runs WHERE 1=1`
	var args []any

	if filter.CaseID != "" {
		query += ` AND case_id = ?`
		args = append(args, filter.CaseID)
	}
	if filter.NextAction != "" {
		query += ` AND next_action = ?`
		args = append(args, string(filter.NextAction))
	}
	if filter.RequirementType != "" {
		query += ` AND requirement_type = ?`
		args = append(args, string(filter.RequirementType))
	}
	query += ` ORDER BY created_at DESC, id`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// helpers shared by both drivers

func marshalRun(run *model.Run) (fusionJSON, classJSON string, err error) {
	f, err := json.Marshal(run.Fusion)
	if err != nil {
		return "", "", err
	}
	c, err := json.Marshal(run.Classification)
	if err != nil {
		return "", "", err
	}
	return string(f), string(c), nil
}

func nextActionOf(run *model.Run) model.NextAction {
	if run.Fusion == nil {
		return ""
	}
	return run.Fusion.NextAction
}

func requirementTypeOf(run *model.Run) model.RequirementType {
	if run.Classification == nil {
		return model.TipoDesconocido
	}
	return run.Classification.RequirementType
}

func overallConfidenceOf(run *model.Run) float64 {
	if run.Fusion == nil {
		return 0
	}
	return run.Fusion.OverallConfidence
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var fusionJSON, classJSON string

	err := row.Scan(&r.ID, &r.CaseID, &fusionJSON, &classJSON, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: scan run")
	}

	if fusionJSON != "null" {
		r.Fusion = &model.FusionResult{}
		if err := json.Unmarshal([]byte(fusionJSON), r.Fusion); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal fusion")
		}
	}
	if classJSON != "null" {
		r.Classification = &model.ClassificationResult{}
		if err := json.Unmarshal([]byte(classJSON), r.Classification); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal classification")
		}
	}
	return &r, nil
}

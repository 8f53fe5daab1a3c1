package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/imHansiy/mediadex/internal/models"
)

type ScanRunRepository struct {
	db *sql.DB
}

func NewScanRunRepository(db *sql.DB) *ScanRunRepository {
	return &ScanRunRepository{db: db}
}

func (r *ScanRunRepository) Create(run *models.ScanRun) error {
	query := `
		INSERT INTO scan_runs (status, preset, roots)
		VALUES ($1, $2, $3)
		RETURNING id, started_at`
	return r.db.QueryRow(query, run.Status, run.Preset, pq.Array(run.Roots)).
		Scan(&run.ID, &run.StartedAt)
}

// Finish records the terminal status and counters for a run.
func (r *ScanRunRepository) Finish(run *models.ScanRun) error {
	verdicts, err := json.Marshal(run.Verdicts)
	if err != nil {
		return fmt.Errorf("marshal verdicts: %w", err)
	}
	query := `
		UPDATE scan_runs
		SET status = $1, verdicts = $2, dirs_visited = $3, candidates_found = $4,
		    movies_total = $5, tv_total = $6, placeholders = $7, error = $8,
		    finished_at = CURRENT_TIMESTAMP
		WHERE id = $9`
	_, err = r.db.Exec(query, run.Status, verdicts, run.DirsVisited, run.CandidatesFound,
		run.MoviesTotal, run.TVTotal, run.Placeholders, run.Error, run.ID)
	return err
}

func (r *ScanRunRepository) GetByID(id uuid.UUID) (*models.ScanRun, error) {
	run := &models.ScanRun{}
	var verdicts []byte
	query := `
		SELECT id, status, preset, roots, verdicts, dirs_visited, candidates_found,
		       movies_total, tv_total, placeholders, error, started_at, finished_at
		FROM scan_runs WHERE id = $1`
	err := r.db.QueryRow(query, id).Scan(
		&run.ID, &run.Status, &run.Preset, pq.Array(&run.Roots), &verdicts,
		&run.DirsVisited, &run.CandidatesFound, &run.MoviesTotal, &run.TVTotal,
		&run.Placeholders, &run.Error, &run.StartedAt, &run.FinishedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("scan run not found")
	}
	if err != nil {
		return nil, err
	}
	if len(verdicts) > 0 {
		if err := json.Unmarshal(verdicts, &run.Verdicts); err != nil {
			return nil, fmt.Errorf("decode verdicts: %w", err)
		}
	}
	return run, nil
}

func (r *ScanRunRepository) ListRecent(limit int) ([]*models.ScanRun, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, status, preset, roots, verdicts, dirs_visited, candidates_found,
		       movies_total, tv_total, placeholders, error, started_at, finished_at
		FROM scan_runs ORDER BY started_at DESC LIMIT $1`
	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*models.ScanRun
	for rows.Next() {
		run := &models.ScanRun{}
		var verdicts []byte
		if err := rows.Scan(
			&run.ID, &run.Status, &run.Preset, pq.Array(&run.Roots), &verdicts,
			&run.DirsVisited, &run.CandidatesFound, &run.MoviesTotal, &run.TVTotal,
			&run.Placeholders, &run.Error, &run.StartedAt, &run.FinishedAt,
		); err != nil {
			return nil, err
		}
		if len(verdicts) > 0 {
			if err := json.Unmarshal(verdicts, &run.Verdicts); err != nil {
				return nil, fmt.Errorf("decode verdicts: %w", err)
			}
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

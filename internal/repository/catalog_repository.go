package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/imHansiy/mediadex/internal/catalog"
)

type CatalogRepository struct {
	db *sql.DB
}

func NewCatalogRepository(db *sql.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// Upsert writes one entry, keeping the typed columns in sync with the
// JSONB payload.
func (r *CatalogRepository) Upsert(entry catalog.Entry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry %s: %w", entry.EntryID(), err)
	}
	year, placeholder := entryMeta(entry)
	query := `
		INSERT INTO catalog_entries (id, title, media_type, year, placeholder, payload, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, CURRENT_TIMESTAMP)
		ON CONFLICT (id) DO UPDATE
		SET title = $2, media_type = $3, year = $4, placeholder = $5, payload = $6, updated_at = CURRENT_TIMESTAMP`
	_, err = r.db.Exec(query, entry.EntryID(), entry.EntryTitle(), entry.EntryType(),
		year, placeholder, payload)
	return err
}

// ReplaceAll swaps the stored catalog for the given document in one
// transaction, so API readers never see a half-replaced catalog.
func (r *CatalogRepository) ReplaceAll(doc *catalog.Document) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM catalog_entries`); err != nil {
		return fmt.Errorf("clear catalog: %w", err)
	}
	query := `
		INSERT INTO catalog_entries (id, title, media_type, year, placeholder, payload)
		VALUES ($1, $2, $3, $4, $5, $6)`
	for _, entry := range doc.Movies {
		payload, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshal entry %s: %w", entry.EntryID(), err)
		}
		year, placeholder := entryMeta(entry)
		if _, err := tx.Exec(query, entry.EntryID(), entry.EntryTitle(), entry.EntryType(),
			year, placeholder, payload); err != nil {
			return fmt.Errorf("insert entry %s: %w", entry.EntryID(), err)
		}
	}
	return tx.Commit()
}

func (r *CatalogRepository) GetByID(id string) (catalog.Entry, error) {
	var payload []byte
	err := r.db.QueryRow(`SELECT payload FROM catalog_entries WHERE id = $1`, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("catalog entry not found")
	}
	if err != nil {
		return nil, err
	}
	return catalog.UnmarshalEntry(payload)
}

// List returns entries ordered by title. mediaType narrows to one
// record kind when non-empty; limit 0 means everything.
func (r *CatalogRepository) List(mediaType string, limit, offset int) ([]catalog.Entry, error) {
	query := `SELECT payload FROM catalog_entries`
	args := []interface{}{}
	if mediaType != "" {
		query += ` WHERE media_type = $1`
		args = append(args, mediaType)
	}
	query += ` ORDER BY lower(title)`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d OFFSET %d`, limit, offset)
	}
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

func (r *CatalogRepository) Search(q string, limit int) ([]catalog.Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(`
		SELECT payload FROM catalog_entries
		WHERE lower(title) LIKE '%' || lower($1) || '%'
		ORDER BY lower(title) LIMIT $2`, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

// Counts tallies stored entries per media type.
// ListPlaceholders returns entries still waiting on a metadata match.
// Random order so a block of persistent misses cannot starve newer
// placeholders out of the retry batch.
func (r *CatalogRepository) ListPlaceholders(limit int) ([]catalog.Entry, error) {
	if limit <= 0 {
		limit = 25
	}
	rows, err := r.db.Query(`
		SELECT payload FROM catalog_entries
		WHERE placeholder ORDER BY random() LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

func (r *CatalogRepository) Counts() (movies, tv int, err error) {
	rows, err := r.db.Query(`SELECT media_type, COUNT(*) FROM catalog_entries GROUP BY media_type`)
	if err != nil {
		return 0, 0, err
	}
	defer rows.Close()
	for rows.Next() {
		var mediaType string
		var n int
		if err := rows.Scan(&mediaType, &n); err != nil {
			return 0, 0, err
		}
		switch mediaType {
		case "tv":
			tv = n
		default:
			movies += n
		}
	}
	return movies, tv, rows.Err()
}

func collectEntries(rows *sql.Rows) ([]catalog.Entry, error) {
	var entries []catalog.Entry
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		entry, err := catalog.UnmarshalEntry(payload)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func entryMeta(entry catalog.Entry) (year *int, placeholder bool) {
	switch e := entry.(type) {
	case *catalog.MovieEntry:
		return e.Year, e.Placeholder
	case *catalog.TVEntry:
		return e.Year, e.Placeholder
	}
	return nil, false
}

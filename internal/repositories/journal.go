package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/nfcbox/internal/models"
	"github.com/desertthunder/nfcbox/internal/shared"
)

// JournalRepository implements models.Repository[*models.JournalEntry] for the operation journal.
type JournalRepository struct {
	db *sql.DB
}

var _ models.Repository[*models.JournalEntry] = (*JournalRepository)(nil)

// NewJournalRepository creates a new JournalRepository with the given database connection
func NewJournalRepository(db *sql.DB) *JournalRepository {
	return &JournalRepository{db: db}
}

const journalColumns = `id, sequence, kind, subject, detail, status, error_message, device, batch_id, created_at`

// Create inserts entry with a generated ID and the next sequence number
func (r *JournalRepository) Create(entry *models.JournalEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "journal")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()

	query := `
		INSERT INTO journal (` + journalColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		string(entry.Kind()),
		entry.Subject(),
		nullString(entry.Detail()),
		string(entry.Status()),
		nullString(entry.ErrorMessage()),
		entry.Device(),
		nullString(entry.BatchID()),
		entry.CreatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert journal entry: %w", err)
	}

	entry.SetID(id)
	entry.SetSequence(sequence)
	return nil
}

// Get retrieves an entry by ID
func (r *JournalRepository) Get(id string) (*models.JournalEntry, error) {
	query := `SELECT ` + journalColumns + ` FROM journal WHERE id = ?`

	entry, err := scanEntry(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("journal entry not found: %s", id)
	}
	return entry, err
}

// List retrieves entries matching criteria in sequence order.
//
// Supported criteria: "kind", "status", "subject", "batch_id" and "device" (string),
// "since" (time.Time) and "limit" (int, keeps the most recent entries).
func (r *JournalRepository) List(criteria map[string]any) ([]*models.JournalEntry, error) {
	query := `SELECT ` + journalColumns + ` FROM journal WHERE 1 = 1`
	args := []any{}

	for key, column := range map[string]string{
		"kind":     "kind",
		"status":   "status",
		"subject":  "subject",
		"batch_id": "batch_id",
		"device":   "device",
	} {
		if v := criteriaString(criteria[key]); v != "" {
			query += " AND " + column + " = ?"
			args = append(args, v)
		}
	}

	if since, ok := criteria["since"].(time.Time); ok && !since.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, since)
	}

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query = `SELECT * FROM (` + query + ` ORDER BY sequence DESC LIMIT ?)`
		args = append(args, limit)
	}
	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var entries []*models.JournalEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return entries, nil
}

// Count returns the number of entries in the journal
func (r *JournalRepository) Count() (int, error) {
	var n int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM journal").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count journal entries: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanEntry scans a [sql.Row] or [sql.Rows] into a [models.JournalEntry]
func scanEntry(s scanner) (*models.JournalEntry, error) {
	var (
		id           string
		sequence     int
		kind         string
		subject      string
		detail       sql.NullString
		status       string
		errorMessage sql.NullString
		device       string
		batchID      sql.NullString
		createdAt    time.Time
	)

	err := s.Scan(&id, &sequence, &kind, &subject, &detail, &status, &errorMessage, &device, &batchID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan journal entry: %w", err)
	}

	return models.RestoreJournalEntry(
		id, sequence, models.OperationKind(kind), subject, detail.String,
		models.OperationStatus(status), errorMessage.String, device, batchID.String, createdAt,
	), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func criteriaString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case models.OperationKind:
		return string(s)
	case models.OperationStatus:
		return string(s)
	case fmt.Stringer:
		return s.String()
	default:
		return ""
	}
}

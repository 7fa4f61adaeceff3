package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vidsync/vidsync/internal/models"
)

// ErrRecordNotFound is returned when a sequence id has no row.
var ErrRecordNotFound = errors.New("record not found")

type RecordRepo struct {
	db *DB
}

func NewRecordRepo(db *DB) *RecordRepo {
	return &RecordRepo{db: db}
}

const recordColumns = `sequence_id, file_path, file_name, file_size, mime_type,
	prompt_text, analysis_text, remote_record_id, storage_url, storage_key, created_at`

func (r *RecordRepo) Insert(ctx context.Context, record *models.AnalysisRecord) error {
	query := `
		INSERT INTO analysis_records (` + recordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.conn.ExecContext(ctx, query,
		record.SequenceID,
		record.FilePath,
		record.FileName,
		record.FileSize,
		record.MimeType,
		record.PromptText,
		record.AnalysisText,
		record.RemoteRecordID,
		record.StorageURL,
		record.StorageKey,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}
	return nil
}

func (r *RecordRepo) GetBySequenceID(ctx context.Context, sequenceID string) (*models.AnalysisRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM analysis_records WHERE sequence_id = ?`

	record, err := scanRecord(r.db.conn.QueryRowContext(ctx, query, sequenceID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return record, nil
}

// List returns records newest first.
func (r *RecordRepo) List(ctx context.Context, limit, offset int) ([]*models.AnalysisRecord, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM analysis_records
		ORDER BY created_at DESC, sequence_id DESC
		LIMIT ? OFFSET ?`

	return r.queryRecords(ctx, query, limit, offset)
}

func (r *RecordRepo) Search(ctx context.Context, keyword string, limit int) ([]*models.AnalysisRecord, error) {
	if keyword == "" {
		return r.List(ctx, limit, 0)
	}

	pattern := "%" + keyword + "%"
	query := `
		SELECT ` + recordColumns + `
		FROM analysis_records
		WHERE file_name LIKE ? OR analysis_text LIKE ? OR prompt_text LIKE ?
		ORDER BY created_at DESC, sequence_id DESC
		LIMIT ?`

	return r.queryRecords(ctx, query, pattern, pattern, pattern, limit)
}

// GetUnsynced returns records with no remote record id, oldest first so
// repeated passes over an unchanged store visit records in the same order.
func (r *RecordRepo) GetUnsynced(ctx context.Context) ([]*models.AnalysisRecord, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM analysis_records
		WHERE remote_record_id IS NULL OR remote_record_id = ''
		ORDER BY created_at ASC, sequence_id ASC`

	return r.queryRecords(ctx, query)
}

// GetSynced returns records that currently hold a remote record id,
// oldest first.
func (r *RecordRepo) GetSynced(ctx context.Context) ([]*models.AnalysisRecord, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM analysis_records
		WHERE remote_record_id IS NOT NULL AND remote_record_id != ''
		ORDER BY created_at ASC, sequence_id ASC`

	return r.queryRecords(ctx, query)
}

// SetRemoteID persists the remote record id for a local record. Passing nil
// clears it, marking the record as unsynced again.
func (r *RecordRepo) SetRemoteID(ctx context.Context, sequenceID string, remoteID *string) error {
	result, err := r.db.conn.ExecContext(ctx,
		`UPDATE analysis_records SET remote_record_id = ? WHERE sequence_id = ?`,
		remoteID, sequenceID)
	if err != nil {
		return fmt.Errorf("failed to set remote id: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to set remote id: %w", err)
	}
	if affected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (r *RecordRepo) SetStorageURL(ctx context.Context, sequenceID, url, key string) error {
	result, err := r.db.conn.ExecContext(ctx,
		`UPDATE analysis_records SET storage_url = ?, storage_key = ? WHERE sequence_id = ?`,
		url, key, sequenceID)
	if err != nil {
		return fmt.Errorf("failed to set storage url: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to set storage url: %w", err)
	}
	if affected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (r *RecordRepo) Delete(ctx context.Context, sequenceID string) error {
	result, err := r.db.conn.ExecContext(ctx,
		`DELETE FROM analysis_records WHERE sequence_id = ?`, sequenceID)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	if affected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// SyncCounts reports how many records exist and how many hold a remote id.
func (r *RecordRepo) SyncCounts(ctx context.Context) (total, synced int, err error) {
	row := r.db.conn.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(CASE WHEN remote_record_id IS NOT NULL AND remote_record_id != '' THEN 1 END)
		FROM analysis_records`)
	if err := row.Scan(&total, &synced); err != nil {
		return 0, 0, fmt.Errorf("failed to count records: %w", err)
	}
	return total, synced, nil
}

func (r *RecordRepo) queryRecords(ctx context.Context, query string, args ...any) ([]*models.AnalysisRecord, error) {
	rows, err := r.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []*models.AnalysisRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}

	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.AnalysisRecord, error) {
	record := &models.AnalysisRecord{}
	var mimeType, remoteID, storageURL, storageKey sql.NullString

	err := row.Scan(
		&record.SequenceID,
		&record.FilePath,
		&record.FileName,
		&record.FileSize,
		&mimeType,
		&record.PromptText,
		&record.AnalysisText,
		&remoteID,
		&storageURL,
		&storageKey,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.MimeType = mimeType.String
	if remoteID.Valid && remoteID.String != "" {
		record.RemoteRecordID = &remoteID.String
	}
	if storageURL.Valid && storageURL.String != "" {
		record.StorageURL = &storageURL.String
	}
	if storageKey.Valid && storageKey.String != "" {
		record.StorageKey = &storageKey.String
	}

	return record, nil
}

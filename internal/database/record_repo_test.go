package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidsync/vidsync/internal/models"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(Config{Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func insertTestRecord(t *testing.T, repo *RecordRepo, fileName string) *models.AnalysisRecord {
	t.Helper()
	record := models.NewAnalysisRecord(
		"/tmp/"+fileName, fileName, 1024, "video/mp4",
		"describe this video", "analysis of "+fileName)
	require.NoError(t, repo.Insert(context.Background(), record))
	return record
}

func TestRecordInsertAndGet(t *testing.T) {
	repo := NewRecordRepo(setupTestDB(t))
	record := insertTestRecord(t, repo, "clip.mp4")

	got, err := repo.GetBySequenceID(context.Background(), record.SequenceID)
	require.NoError(t, err)
	assert.Equal(t, record.SequenceID, got.SequenceID)
	assert.Equal(t, "clip.mp4", got.FileName)
	assert.Equal(t, int64(1024), got.FileSize)
	assert.Equal(t, "video/mp4", got.MimeType)
	assert.Equal(t, "analysis of clip.mp4", got.AnalysisText)
	assert.False(t, got.Synced())
}

func TestRecordGetMissing(t *testing.T) {
	repo := NewRecordRepo(setupTestDB(t))

	_, err := repo.GetBySequenceID(context.Background(), "NOPE")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestRecordList(t *testing.T) {
	repo := NewRecordRepo(setupTestDB(t))
	for _, name := range []string{"a.mp4", "b.mp4", "c.mp4"} {
		insertTestRecord(t, repo, name)
	}

	records, err := repo.List(context.Background(), 2, 0)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	rest, err := repo.List(context.Background(), 10, 2)
	require.NoError(t, err)
	assert.Len(t, rest, 1)
}

func TestRecordSearch(t *testing.T) {
	repo := NewRecordRepo(setupTestDB(t))
	insertTestRecord(t, repo, "vacation.mp4")
	insertTestRecord(t, repo, "meeting.mp4")

	records, err := repo.Search(context.Background(), "vacation", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "vacation.mp4", records[0].FileName)
}

func TestRecordSetRemoteID(t *testing.T) {
	repo := NewRecordRepo(setupTestDB(t))
	record := insertTestRecord(t, repo, "clip.mp4")

	remoteID := "rec1234"
	require.NoError(t, repo.SetRemoteID(context.Background(), record.SequenceID, &remoteID))

	got, err := repo.GetBySequenceID(context.Background(), record.SequenceID)
	require.NoError(t, err)
	require.True(t, got.Synced())
	assert.Equal(t, "rec1234", *got.RemoteRecordID)

	// Clearing the id marks the record unsynced again.
	require.NoError(t, repo.SetRemoteID(context.Background(), record.SequenceID, nil))
	got, err = repo.GetBySequenceID(context.Background(), record.SequenceID)
	require.NoError(t, err)
	assert.False(t, got.Synced())
}

func TestRecordSetRemoteIDMissing(t *testing.T) {
	repo := NewRecordRepo(setupTestDB(t))

	remoteID := "rec1234"
	err := repo.SetRemoteID(context.Background(), "NOPE", &remoteID)
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestRecordUnsyncedAndSynced(t *testing.T) {
	repo := NewRecordRepo(setupTestDB(t))
	a := insertTestRecord(t, repo, "a.mp4")
	insertTestRecord(t, repo, "b.mp4")

	remoteID := "recA"
	require.NoError(t, repo.SetRemoteID(context.Background(), a.SequenceID, &remoteID))

	unsynced, err := repo.GetUnsynced(context.Background())
	require.NoError(t, err)
	require.Len(t, unsynced, 1)
	assert.Equal(t, "b.mp4", unsynced[0].FileName)

	synced, err := repo.GetSynced(context.Background())
	require.NoError(t, err)
	require.Len(t, synced, 1)
	assert.Equal(t, "a.mp4", synced[0].FileName)

	total, syncedCount, err := repo.SyncCounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, syncedCount)
}

func TestRecordSetStorageURL(t *testing.T) {
	repo := NewRecordRepo(setupTestDB(t))
	record := insertTestRecord(t, repo, "clip.mp4")

	err := repo.SetStorageURL(context.Background(), record.SequenceID,
		"https://bucket.example.com/videos/clip.mp4", "videos/clip.mp4")
	require.NoError(t, err)

	got, err := repo.GetBySequenceID(context.Background(), record.SequenceID)
	require.NoError(t, err)
	require.NotNil(t, got.StorageURL)
	assert.Equal(t, "https://bucket.example.com/videos/clip.mp4", *got.StorageURL)
	require.NotNil(t, got.StorageKey)
	assert.Equal(t, "videos/clip.mp4", *got.StorageKey)
}

func TestRecordDelete(t *testing.T) {
	repo := NewRecordRepo(setupTestDB(t))
	record := insertTestRecord(t, repo, "clip.mp4")

	require.NoError(t, repo.Delete(context.Background(), record.SequenceID))

	_, err := repo.GetBySequenceID(context.Background(), record.SequenceID)
	assert.ErrorIs(t, err, ErrRecordNotFound)

	assert.ErrorIs(t, repo.Delete(context.Background(), record.SequenceID), ErrRecordNotFound)
}

func TestRecordEmptyAnalysisGetsPlaceholder(t *testing.T) {
	repo := NewRecordRepo(setupTestDB(t))
	record := models.NewAnalysisRecord("/tmp/x.mp4", "x.mp4", 1, "video/mp4", "prompt", "   ")
	require.NoError(t, repo.Insert(context.Background(), record))

	got, err := repo.GetBySequenceID(context.Background(), record.SequenceID)
	require.NoError(t, err)
	assert.Equal(t, models.EmptyAnalysisPlaceholder, got.AnalysisText)
}

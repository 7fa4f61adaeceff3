package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// AnalysisRecord is one row per analyzed video. SequenceID is generated
// locally and never changes; RemoteRecordID is set only after a confirmed
// create against the remote table and may be cleared again if the remote
// counterpart disappears out-of-band.
type AnalysisRecord struct {
	SequenceID     string
	FilePath       string
	FileName       string
	FileSize       int64
	MimeType       string
	PromptText     string
	AnalysisText   string
	RemoteRecordID *string
	StorageURL     *string
	StorageKey     *string
	CreatedAt      time.Time
}

// placeholder used when the analysis service returned no text, so
// AnalysisText is never empty.
const EmptyAnalysisPlaceholder = "(no analysis text returned)"

func NewAnalysisRecord(filePath, fileName string, fileSize int64, mimeType, promptText, analysisText string) *AnalysisRecord {
	if strings.TrimSpace(analysisText) == "" {
		analysisText = EmptyAnalysisPlaceholder
	}
	return &AnalysisRecord{
		SequenceID:   GenerateSequenceID(),
		FilePath:     filePath,
		FileName:     fileName,
		FileSize:     fileSize,
		MimeType:     mimeType,
		PromptText:   promptText,
		AnalysisText: analysisText,
		CreatedAt:    time.Now(),
	}
}

// GenerateSequenceID returns a 22-character id: a 14-digit timestamp
// followed by 8 random uppercase hex characters.
func GenerateSequenceID() string {
	timestamp := time.Now().Format("20060102150405")
	random := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:8]
	return timestamp + random
}

// Synced reports whether the record currently holds a remote record id.
func (r *AnalysisRecord) Synced() bool {
	return r.RemoteRecordID != nil && *r.RemoteRecordID != ""
}

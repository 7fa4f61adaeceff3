package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/vidsync/vidsync/internal/ai"
	"github.com/vidsync/vidsync/internal/database"
	"github.com/vidsync/vidsync/internal/models"
	"github.com/vidsync/vidsync/internal/reconcile"
	"github.com/vidsync/vidsync/internal/storage"
)

// allowedExtensions are the video formats accepted for analysis.
var allowedExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".avi":  true,
	".mkv":  true,
	".webm": true,
	".flv":  true,
	".wmv":  true,
}

// Analyzer produces an analysis for a local video file.
type Analyzer interface {
	AnalyzeVideo(ctx context.Context, path, prompt string) (*ai.Analysis, error)
	Model() string
}

// Syncer reconciles local records against the remote table.
type Syncer interface {
	SyncOne(ctx context.Context, sequenceID string) (bool, error)
	SyncAll(ctx context.Context, includeSynced bool) (reconcile.Stats, error)
	DeleteRemote(ctx context.Context, sequenceID string) error
	Status(ctx context.Context) (reconcile.Status, error)
}

// App holds the handler dependencies. Analyzer, Syncer, and Storage are nil
// when the corresponding service is not configured; handlers degrade to 503
// or skip the step.
type App struct {
	Records *database.RecordRepo
	Prompts *database.PromptRepo

	Analyzer Analyzer
	Syncer   Syncer
	Storage  storage.ObjectStorage

	UploadDir     string
	MaxUploadSize int64
	AutoSync      bool
}

type recordView struct {
	SequenceID   string    `json:"sequence_id"`
	FileName     string    `json:"file_name"`
	FileSize     int64     `json:"file_size"`
	MimeType     string    `json:"mime_type,omitempty"`
	PromptText   string    `json:"prompt_text"`
	AnalysisText string    `json:"analysis_text"`
	RemoteID     string    `json:"remote_record_id,omitempty"`
	StorageURL   string    `json:"storage_url,omitempty"`
	Synced       bool      `json:"synced"`
	CreatedAt    time.Time `json:"created_at"`
}

func viewOf(r *models.AnalysisRecord) recordView {
	view := recordView{
		SequenceID:   r.SequenceID,
		FileName:     r.FileName,
		FileSize:     r.FileSize,
		MimeType:     r.MimeType,
		PromptText:   r.PromptText,
		AnalysisText: r.AnalysisText,
		Synced:       r.Synced(),
		CreatedAt:    r.CreatedAt,
	}
	if r.RemoteRecordID != nil {
		view.RemoteID = *r.RemoteRecordID
	}
	if r.StorageURL != nil {
		view.StorageURL = *r.StorageURL
	}
	return view
}

func viewsOf(records []*models.AnalysisRecord) []recordView {
	views := make([]recordView, 0, len(records))
	for _, r := range records {
		views = append(views, viewOf(r))
	}
	return views
}

func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}

// AnalyzeHandler accepts a multipart video upload, runs the analysis, stores
// the record, and optionally uploads the file to object storage and pushes
// the record to the remote table.
func (app *App) AnalyzeHandler(w http.ResponseWriter, r *http.Request) {
	if app.Analyzer == nil {
		respondError(w, http.StatusServiceUnavailable, "analysis service is not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, app.MaxUploadSize)
	if err := r.ParseMultipartForm(app.MaxUploadSize); err != nil {
		respondError(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}

	file, header, err := r.FormFile("video")
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing video file")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedExtensions[ext] {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("unsupported video format %q", ext))
		return
	}

	prompt, err := app.resolvePrompt(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	path, err := app.saveUpload(file, header.Filename)
	if err != nil {
		log.Printf("failed to save upload: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to save file")
		return
	}

	analysis, err := app.Analyzer.AnalyzeVideo(r.Context(), path, prompt)
	if err != nil {
		os.Remove(path)
		log.Printf("analysis failed for %s: %v", header.Filename, err)
		respondError(w, http.StatusBadGateway, "video analysis failed")
		return
	}

	mimeType := header.Header.Get("Content-Type")
	record := models.NewAnalysisRecord(path, header.Filename, header.Size, mimeType, prompt, analysis.Text)
	if err := app.Records.Insert(r.Context(), record); err != nil {
		log.Printf("failed to insert record: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to store record")
		return
	}

	app.uploadToStorage(r.Context(), record)
	app.autoSync(r.Context(), record.SequenceID)

	// Re-read so the response reflects storage and sync side effects.
	stored, err := app.Records.GetBySequenceID(r.Context(), record.SequenceID)
	if err != nil {
		stored = record
	}
	respondJSON(w, http.StatusCreated, viewOf(stored))
}

// resolvePrompt picks the prompt text: an explicit "prompt" form value wins,
// then "prompt_id" loads a stored template, then the default template.
func (app *App) resolvePrompt(r *http.Request) (string, error) {
	if prompt := strings.TrimSpace(r.FormValue("prompt")); prompt != "" {
		return prompt, nil
	}

	if idStr := r.FormValue("prompt_id"); idStr != "" {
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			return "", fmt.Errorf("invalid prompt_id %q", idStr)
		}
		prompt, err := app.Prompts.GetByID(r.Context(), id)
		if err != nil {
			return "", fmt.Errorf("prompt %d not found", id)
		}
		return prompt.PromptText, nil
	}

	prompts, err := app.Prompts.List(r.Context())
	if err != nil || len(prompts) == 0 {
		return "", fmt.Errorf("no prompt given and no stored prompts available")
	}
	return prompts[0].PromptText, nil
}

func (app *App) saveUpload(src io.Reader, originalName string) (string, error) {
	if err := os.MkdirAll(app.UploadDir, 0o755); err != nil {
		return "", fmt.Errorf("creating upload dir: %w", err)
	}

	ext := filepath.Ext(originalName)
	stem := strings.TrimSuffix(filepath.Base(originalName), ext)
	name := fmt.Sprintf("%s_%s%s", stem, time.Now().Format("20060102150405"), ext)
	path := filepath.Join(app.UploadDir, name)

	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("writing file: %w", err)
	}
	return path, nil
}

// uploadToStorage pushes the analyzed file to object storage, best effort.
func (app *App) uploadToStorage(ctx context.Context, record *models.AnalysisRecord) {
	if app.Storage == nil {
		return
	}
	result, err := app.Storage.Upload(ctx, record.FilePath)
	if err != nil {
		log.Printf("storage upload failed for %s: %v", record.FileName, err)
		return
	}
	if err := app.Records.SetStorageURL(ctx, record.SequenceID, result.URL, result.Key); err != nil {
		log.Printf("failed to persist storage url for %s: %v", record.SequenceID, err)
	}
}

// autoSync pushes a freshly stored record remotely, best effort.
func (app *App) autoSync(ctx context.Context, sequenceID string) {
	if app.Syncer == nil || !app.AutoSync {
		return
	}
	if _, err := app.Syncer.SyncOne(ctx, sequenceID); err != nil {
		log.Printf("auto-sync failed for %s: %v", sequenceID, err)
	}
}

func (app *App) ListRecordsHandler(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	var (
		records []*models.AnalysisRecord
		err     error
	)
	if keyword := strings.TrimSpace(r.URL.Query().Get("q")); keyword != "" {
		records, err = app.Records.Search(r.Context(), keyword, limit)
	} else {
		records, err = app.Records.List(r.Context(), limit, offset)
	}
	if err != nil {
		log.Printf("failed to list records: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to list records")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"records": viewsOf(records),
		"count":   len(records),
	})
}

func (app *App) GetRecordHandler(w http.ResponseWriter, r *http.Request) {
	sequenceID := chi.URLParam(r, "sequenceID")

	record, err := app.Records.GetBySequenceID(r.Context(), sequenceID)
	if errors.Is(err, database.ErrRecordNotFound) {
		respondError(w, http.StatusNotFound, "record not found")
		return
	}
	if err != nil {
		log.Printf("failed to get record %s: %v", sequenceID, err)
		respondError(w, http.StatusInternalServerError, "failed to load record")
		return
	}
	respondJSON(w, http.StatusOK, viewOf(record))
}

// DeleteRecordHandler removes a record, its local file, and, with ?remote=true,
// its remote counterpart.
func (app *App) DeleteRecordHandler(w http.ResponseWriter, r *http.Request) {
	sequenceID := chi.URLParam(r, "sequenceID")

	record, err := app.Records.GetBySequenceID(r.Context(), sequenceID)
	if errors.Is(err, database.ErrRecordNotFound) {
		respondError(w, http.StatusNotFound, "record not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load record")
		return
	}

	if r.URL.Query().Get("remote") == "true" && app.Syncer != nil {
		if err := app.Syncer.DeleteRemote(r.Context(), sequenceID); err != nil {
			log.Printf("failed to delete remote record for %s: %v", sequenceID, err)
			respondError(w, http.StatusBadGateway, "failed to delete remote record")
			return
		}
	}

	if err := app.Records.Delete(r.Context(), sequenceID); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to delete record")
		return
	}
	if record.FilePath != "" {
		if err := os.Remove(record.FilePath); err != nil && !os.IsNotExist(err) {
			log.Printf("failed to remove file %s: %v", record.FilePath, err)
		}
	}

	respondJSON(w, http.StatusOK, map[string]string{"deleted": sequenceID})
}

func (app *App) SyncRecordHandler(w http.ResponseWriter, r *http.Request) {
	if app.Syncer == nil {
		respondError(w, http.StatusServiceUnavailable, "sync is not configured")
		return
	}
	sequenceID := chi.URLParam(r, "sequenceID")

	if _, err := app.Syncer.SyncOne(r.Context(), sequenceID); err != nil {
		if errors.Is(err, database.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, "record not found")
			return
		}
		log.Printf("sync failed for %s: %v", sequenceID, err)
		respondError(w, http.StatusBadGateway, "sync failed")
		return
	}

	record, err := app.Records.GetBySequenceID(r.Context(), sequenceID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load record")
		return
	}
	respondJSON(w, http.StatusOK, viewOf(record))
}

func (app *App) SyncAllHandler(w http.ResponseWriter, r *http.Request) {
	if app.Syncer == nil {
		respondError(w, http.StatusServiceUnavailable, "sync is not configured")
		return
	}

	var req struct {
		IncludeSynced bool `json:"include_synced"`
	}
	if r.Body != nil {
		// An empty body means defaults.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	stats, err := app.Syncer.SyncAll(r.Context(), req.IncludeSynced)
	if err != nil {
		log.Printf("batch sync failed: %v", err)
		respondError(w, http.StatusInternalServerError, "batch sync failed")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (app *App) SyncStatusHandler(w http.ResponseWriter, r *http.Request) {
	if app.Syncer == nil {
		respondError(w, http.StatusServiceUnavailable, "sync is not configured")
		return
	}

	status, err := app.Syncer.Status(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to compute sync status")
		return
	}
	respondJSON(w, http.StatusOK, status)
}

func (app *App) ListPromptsHandler(w http.ResponseWriter, r *http.Request) {
	prompts, err := app.Prompts.List(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list prompts")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"prompts": prompts})
}

type promptRequest struct {
	Name        string `json:"name"`
	PromptText  string `json:"prompt_text"`
	Description string `json:"description"`
}

func (p *promptRequest) validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if strings.TrimSpace(p.PromptText) == "" {
		return fmt.Errorf("prompt_text is required")
	}
	return nil
}

func (app *App) AddPromptHandler(w http.ResponseWriter, r *http.Request) {
	var req promptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := app.Prompts.Add(r.Context(), req.Name, req.PromptText, req.Description)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to add prompt")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (app *App) UpdatePromptHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid prompt id")
		return
	}

	var req promptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	err = app.Prompts.Update(r.Context(), id, req.Name, req.PromptText, req.Description)
	if errors.Is(err, database.ErrPromptNotFound) {
		respondError(w, http.StatusNotFound, "prompt not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to update prompt")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"id": id})
}

func (app *App) DeletePromptHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid prompt id")
		return
	}

	err = app.Prompts.Delete(r.Context(), id)
	if errors.Is(err, database.ErrPromptNotFound) {
		respondError(w, http.StatusNotFound, "prompt not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to delete prompt")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"deleted": id})
}

func queryInt(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil || n < 0 {
		return defaultVal
	}
	return n
}

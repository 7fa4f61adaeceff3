// Package ai wraps the Gemini SDK behind a narrow interface owned by this
// codebase, so the SDK's response shape is translated in exactly one place.
package ai

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const (
	maxRetries       = 3
	baseRetryDelay   = 2 * time.Second
	filePollInterval = 2 * time.Second
	filePollTimeout  = 5 * time.Minute
)

type Config struct {
	APIKey string
	Model  string
}

// Analysis is this codebase's own result type for one video analysis.
type Analysis struct {
	Text     string
	FileURI  string
	FileName string
}

// FileInfo describes a file held by the Gemini file service.
type FileInfo struct {
	Name        string
	DisplayName string
	URI         string
	MIMEType    string
	SizeBytes   int64
	State       string
}

type Client struct {
	client *genai.Client
	model  string
}

func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}

	return &Client{client: client, model: model}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) Model() string {
	return c.model
}

// AnalyzeVideo uploads a local video file to the Gemini file service, waits
// for processing, and asks the model to analyze it with the given prompt.
func (c *Client) AnalyzeVideo(ctx context.Context, path, prompt string) (*Analysis, error) {
	file, err := c.uploadAndWait(ctx, path)
	if err != nil {
		return nil, err
	}

	text, err := c.generate(ctx, file, prompt)
	if err != nil {
		return nil, err
	}

	return &Analysis{
		Text:     text,
		FileURI:  file.URI,
		FileName: file.Name,
	}, nil
}

func (c *Client) uploadAndWait(ctx context.Context, path string) (*genai.File, error) {
	var file *genai.File

	err := withRetry(func() error {
		var err error
		file, err = c.client.UploadFileFromPath(ctx, path, &genai.UploadFileOptions{
			DisplayName: filepath.Base(path),
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("uploading %s: %w", filepath.Base(path), err)
	}

	deadline := time.Now().Add(filePollTimeout)
	for file.State == genai.FileStateProcessing {
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("file %s still processing after %s", file.Name, filePollTimeout)
		}
		select {
		case <-time.After(filePollInterval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		file, err = c.client.GetFile(ctx, file.Name)
		if err != nil {
			return nil, fmt.Errorf("polling file %s: %w", file.Name, err)
		}
	}
	if file.State != genai.FileStateActive {
		return nil, fmt.Errorf("file %s ended in state %v", file.Name, file.State)
	}

	return file, nil
}

func (c *Client) generate(ctx context.Context, file *genai.File, prompt string) (string, error) {
	model := c.client.GenerativeModel(c.model)

	var resp *genai.GenerateContentResponse
	err := withRetry(func() error {
		var err error
		resp, err = model.GenerateContent(ctx,
			genai.FileData{URI: file.URI},
			genai.Text(prompt),
		)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("generating content: %w", err)
	}

	return responseText(resp), nil
}

// responseText flattens the candidate parts into one string. This is the only
// place the SDK's response structure is read.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String()
}

// ListFiles returns the files currently held by the file service.
func (c *Client) ListFiles(ctx context.Context) ([]FileInfo, error) {
	var files []FileInfo

	iter := c.client.ListFiles(ctx)
	for {
		file, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("listing files: %w", err)
		}
		files = append(files, FileInfo{
			Name:        file.Name,
			DisplayName: file.DisplayName,
			URI:         file.URI,
			MIMEType:    file.MIMEType,
			SizeBytes:   file.SizeBytes,
			State:       file.State.String(),
		})
	}

	return files, nil
}

// DeleteFile removes an uploaded file from the file service.
func (c *Client) DeleteFile(ctx context.Context, name string) error {
	if err := c.client.DeleteFile(ctx, name); err != nil {
		return fmt.Errorf("deleting file %s: %w", name, err)
	}
	return nil
}

// withRetry runs fn up to maxRetries times with exponential backoff, but only
// for overload-class errors; anything else returns immediately.
func withRetry(fn func() error) error {
	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !isRetryable(err) || attempt == maxRetries-1 {
			return err
		}

		delay := baseRetryDelay * (1 << attempt)
		log.Printf("gemini request overloaded, retrying in %s (attempt %d/%d)", delay, attempt+1, maxRetries)
		time.Sleep(delay)
	}
	return err
}

func isRetryable(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "503") ||
		strings.Contains(msg, "overloaded") ||
		strings.Contains(msg, "unavailable") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "resource exhausted")
}

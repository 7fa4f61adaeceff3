// Package bitable is the gateway to the Feishu Bitable API. It is the single
// place that knows the wire shapes of the remote table service; callers work
// with CanonicalFields and opaque record ids.
package bitable

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/vidsync/vidsync/internal/models"
)

const defaultBaseURL = "https://open.feishu.cn/open-apis"

// Error codes the Bitable API uses for missing resources.
const (
	codeRecordNotFound = 1254005
	codeTableNotFound  = 1254004
	codeAppNotFound    = 1254001
)

// tokens are valid for two hours; refresh five minutes early.
const tokenRefreshMargin = 5 * time.Minute

// ErrNotFound is returned by GetRecord when the remote record id is unknown.
var ErrNotFound = errors.New("remote record not found")

type Config struct {
	AppID     string
	AppSecret string
	AppToken  string
	TableID   string
	BaseURL   string
}

type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client

	mu             sync.Mutex
	accessToken    string
	tokenExpiresAt time.Time
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.AppID == "" || cfg.AppSecret == "" {
		return nil, fmt.Errorf("bitable: app id and secret are required")
	}
	if cfg.AppToken == "" || cfg.TableID == "" {
		return nil, fmt.Errorf("bitable: app token and table id are required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		cfg:     cfg,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

type apiResponse struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type apiError struct {
	Code int
	Msg  string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("bitable API error: code=%d msg=%s", e.Code, e.Msg)
}

type tokenResponse struct {
	Code              int    `json:"code"`
	Msg               string `json:"msg"`
	TenantAccessToken string `json:"tenant_access_token"`
	Expire            int    `json:"expire"`
}

func (c *Client) getAccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiresAt) {
		return c.accessToken, nil
	}

	body, err := json.Marshal(map[string]string{
		"app_id":     c.cfg.AppID,
		"app_secret": c.cfg.AppSecret,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST",
		c.baseURL+"/auth/v3/tenant_access_token/internal", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("executing token request: %w", err)
	}
	defer resp.Body.Close()

	var tokenResp tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("decoding token response: %w", err)
	}
	if tokenResp.Code != 0 {
		return "", fmt.Errorf("token request failed: code=%d msg=%s", tokenResp.Code, tokenResp.Msg)
	}

	c.accessToken = tokenResp.TenantAccessToken
	c.tokenExpiresAt = time.Now().Add(time.Duration(tokenResp.Expire)*time.Second - tokenRefreshMargin)
	return c.accessToken, nil
}

func (c *Client) doRequest(ctx context.Context, method, endpoint string, payload any, params url.Values) (json.RawMessage, error) {
	token, err := c.getAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	fullURL := c.baseURL + endpoint
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decoding response (status %d): %w", resp.StatusCode, err)
	}
	if apiResp.Code != 0 {
		return nil, &apiError{Code: apiResp.Code, Msg: apiResp.Msg}
	}

	return apiResp.Data, nil
}

// recordFields translates CanonicalFields to the table's column names. The
// translation lives here so a remote column rename breaks one test, not a
// handler.
func recordFields(fields models.CanonicalFields) map[string]any {
	return map[string]any{
		"视频序列号":  fields.SequenceNumber,
		"视频内容摘要": fields.ContentSummary,
		"详细内容描述": fields.DetailedDescription,
		"关键词标签":  fields.KeywordTags,
		"主要对象":   fields.MainObjects,
	}
}

func (c *Client) recordsEndpoint() string {
	return fmt.Sprintf("/bitable/v1/apps/%s/tables/%s/records", c.cfg.AppToken, c.cfg.TableID)
}

// CreateRecord inserts one row and returns the remote record id.
func (c *Client) CreateRecord(ctx context.Context, fields models.CanonicalFields) (string, error) {
	payload := map[string]any{"fields": recordFields(fields)}
	params := url.Values{"user_id_type": {"open_id"}}

	data, err := c.doRequest(ctx, "POST", c.recordsEndpoint(), payload, params)
	if err != nil {
		return "", err
	}

	var result struct {
		Record struct {
			RecordID string `json:"record_id"`
		} `json:"record"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("decoding create response: %w", err)
	}
	if result.Record.RecordID == "" {
		return "", fmt.Errorf("create returned no record id")
	}
	return result.Record.RecordID, nil
}

// UpdateRecord rewrites an existing row. It returns (false, nil) exactly when
// the remote reports the record id unknown, so callers can distinguish a
// stale id from a transient failure.
func (c *Client) UpdateRecord(ctx context.Context, recordID string, fields models.CanonicalFields) (bool, error) {
	payload := map[string]any{"fields": recordFields(fields)}

	_, err := c.doRequest(ctx, "PUT", c.recordsEndpoint()+"/"+recordID, payload, nil)
	if err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) && apiErr.Code == codeRecordNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// GetRecord fetches one row's fields, or ErrNotFound.
func (c *Client) GetRecord(ctx context.Context, recordID string) (map[string]any, error) {
	data, err := c.doRequest(ctx, "GET", c.recordsEndpoint()+"/"+recordID, nil, nil)
	if err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) && apiErr.Code == codeRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var result struct {
		Record struct {
			Fields map[string]any `json:"fields"`
		} `json:"record"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decoding get response: %w", err)
	}
	return result.Record.Fields, nil
}

// DeleteRecord removes one row. Deleting an already-absent row is not an
// error.
func (c *Client) DeleteRecord(ctx context.Context, recordID string) error {
	_, err := c.doRequest(ctx, "DELETE", c.recordsEndpoint()+"/"+recordID, nil, nil)
	if err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) && apiErr.Code == codeRecordNotFound {
			return nil
		}
		return err
	}
	return nil
}

// ListRecordIDs pages through the table and returns every record id.
func (c *Client) ListRecordIDs(ctx context.Context) ([]string, error) {
	var ids []string
	pageToken := ""

	for {
		params := url.Values{"page_size": {"100"}}
		if pageToken != "" {
			params.Set("page_token", pageToken)
		}

		data, err := c.doRequest(ctx, "GET", c.recordsEndpoint(), nil, params)
		if err != nil {
			return nil, err
		}

		var result struct {
			Items []struct {
				RecordID string `json:"record_id"`
			} `json:"items"`
			HasMore   bool   `json:"has_more"`
			PageToken string `json:"page_token"`
		}
		if err := json.Unmarshal(data, &result); err != nil {
			return nil, fmt.Errorf("decoding list response: %w", err)
		}

		for _, item := range result.Items {
			ids = append(ids, item.RecordID)
		}
		if !result.HasMore || result.PageToken == "" {
			break
		}
		pageToken = result.PageToken
	}

	return ids, nil
}

// VerifyTable checks that the configured table exists and is reachable.
func (c *Client) VerifyTable(ctx context.Context) error {
	params := url.Values{"page_size": {"1"}}
	_, err := c.doRequest(ctx, "GET", c.recordsEndpoint(), nil, params)
	if err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) && (apiErr.Code == codeTableNotFound || apiErr.Code == codeAppNotFound) {
			return fmt.Errorf("configured table does not exist: %w", err)
		}
		return err
	}
	return nil
}

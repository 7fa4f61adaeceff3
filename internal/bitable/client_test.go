package bitable

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidsync/vidsync/internal/models"
)

// fakeAPI is a minimal in-memory Bitable endpoint.
type fakeAPI struct {
	tokenRequests int
	records       map[string]map[string]any
	nextID        int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{records: make(map[string]map[string]any)}
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/auth/v3/tenant_access_token/internal", func(w http.ResponseWriter, r *http.Request) {
		f.tokenRequests++
		json.NewEncoder(w).Encode(map[string]any{
			"code":                0,
			"msg":                 "ok",
			"tenant_access_token": fmt.Sprintf("token-%d", f.tokenRequests),
			"expire":              7200,
		})
	})

	mux.HandleFunc("/bitable/v1/apps/app-token/tables/table-id/records", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			var req struct {
				Fields map[string]any `json:"fields"`
			}
			json.NewDecoder(r.Body).Decode(&req)
			f.nextID++
			id := fmt.Sprintf("rec%04d", f.nextID)
			f.records[id] = req.Fields
			writeData(w, map[string]any{"record": map[string]any{"record_id": id, "fields": req.Fields}})

		case http.MethodGet:
			var items []map[string]any
			for id := range f.records {
				items = append(items, map[string]any{"record_id": id})
			}
			writeData(w, map[string]any{"items": items, "has_more": false, "page_token": ""})
		}
	})

	mux.HandleFunc("/bitable/v1/apps/app-token/tables/table-id/records/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/bitable/v1/apps/app-token/tables/table-id/records/")
		fields, exists := f.records[id]

		switch r.Method {
		case http.MethodPut:
			if !exists {
				writeError(w, 1254005, "RecordIdNotFound")
				return
			}
			var req struct {
				Fields map[string]any `json:"fields"`
			}
			json.NewDecoder(r.Body).Decode(&req)
			f.records[id] = req.Fields
			writeData(w, map[string]any{"record": map[string]any{"record_id": id}})

		case http.MethodGet:
			if !exists {
				writeError(w, 1254005, "RecordIdNotFound")
				return
			}
			writeData(w, map[string]any{"record": map[string]any{"record_id": id, "fields": fields}})

		case http.MethodDelete:
			if !exists {
				writeError(w, 1254005, "RecordIdNotFound")
				return
			}
			delete(f.records, id)
			writeData(w, map[string]any{"deleted": true})
		}
	})

	return mux
}

func writeData(w http.ResponseWriter, data map[string]any) {
	json.NewEncoder(w).Encode(map[string]any{"code": 0, "msg": "success", "data": data})
}

func writeError(w http.ResponseWriter, code int, msg string) {
	json.NewEncoder(w).Encode(map[string]any{"code": code, "msg": msg})
}

func newTestClient(t *testing.T) (*Client, *fakeAPI) {
	t.Helper()
	api := newFakeAPI()
	server := httptest.NewServer(api.handler())
	t.Cleanup(server.Close)

	client, err := NewClient(Config{
		AppID:     "app-id",
		AppSecret: "app-secret",
		AppToken:  "app-token",
		TableID:   "table-id",
		BaseURL:   server.URL,
	})
	require.NoError(t, err)
	return client, api
}

func testFields() models.CanonicalFields {
	return models.CanonicalFields{
		SequenceNumber:      "SEQ001",
		ContentSummary:      "summary",
		DetailedDescription: "description",
		KeywordTags:         "tags",
		MainObjects:         "objects",
	}
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Config{AppID: "id", AppSecret: "secret"})
	assert.Error(t, err, "missing app token and table id must be rejected")

	_, err = NewClient(Config{AppToken: "token", TableID: "table"})
	assert.Error(t, err, "missing credentials must be rejected")
}

func TestCreateRecord(t *testing.T) {
	client, api := newTestClient(t)

	id, err := client.CreateRecord(context.Background(), testFields())
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	fields := api.records[id]
	assert.Equal(t, "SEQ001", fields["视频序列号"])
	assert.Equal(t, "summary", fields["视频内容摘要"])
	assert.Equal(t, "description", fields["详细内容描述"])
	assert.Equal(t, "tags", fields["关键词标签"])
	assert.Equal(t, "objects", fields["主要对象"])
}

func TestUpdateRecord(t *testing.T) {
	client, api := newTestClient(t)

	id, err := client.CreateRecord(context.Background(), testFields())
	require.NoError(t, err)

	updated := testFields()
	updated.ContentSummary = "updated summary"
	ok, err := client.UpdateRecord(context.Background(), id, updated)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "updated summary", api.records[id]["视频内容摘要"])
}

func TestUpdateRecordNotFound(t *testing.T) {
	client, _ := newTestClient(t)

	ok, err := client.UpdateRecord(context.Background(), "recMISSING", testFields())
	require.NoError(t, err, "an unknown record id is not an error")
	assert.False(t, ok)
}

func TestGetRecord(t *testing.T) {
	client, _ := newTestClient(t)

	id, err := client.CreateRecord(context.Background(), testFields())
	require.NoError(t, err)

	fields, err := client.GetRecord(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "SEQ001", fields["视频序列号"])

	_, err = client.GetRecord(context.Background(), "recMISSING")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteRecord(t *testing.T) {
	client, api := newTestClient(t)

	id, err := client.CreateRecord(context.Background(), testFields())
	require.NoError(t, err)

	require.NoError(t, client.DeleteRecord(context.Background(), id))
	assert.Empty(t, api.records)

	assert.NoError(t, client.DeleteRecord(context.Background(), id),
		"deleting an already-absent record is not an error")
}

func TestListRecordIDs(t *testing.T) {
	client, _ := newTestClient(t)

	for i := 0; i < 3; i++ {
		_, err := client.CreateRecord(context.Background(), testFields())
		require.NoError(t, err)
	}

	ids, err := client.ListRecordIDs(context.Background())
	require.NoError(t, err)
	assert.Len(t, ids, 3)
}

func TestTokenIsCached(t *testing.T) {
	client, api := newTestClient(t)

	for i := 0; i < 3; i++ {
		_, err := client.CreateRecord(context.Background(), testFields())
		require.NoError(t, err)
	}
	assert.Equal(t, 1, api.tokenRequests, "a valid token must be reused across requests")
}

func TestVerifyTable(t *testing.T) {
	client, _ := newTestClient(t)
	assert.NoError(t, client.VerifyTable(context.Background()))
}

func TestVerifyTableMissing(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/v3/tenant_access_token/internal", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"code": 0, "msg": "ok", "tenant_access_token": "token", "expire": 7200,
		})
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, 1254004, "TableIdNotFound")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client, err := NewClient(Config{
		AppID: "id", AppSecret: "secret", AppToken: "app-token", TableID: "table-id",
		BaseURL: server.URL,
	})
	require.NoError(t, err)

	err = client.VerifyTable(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

// Package normalize coerces the heterogeneous result shapes produced by
// upstream analysis tooling into the fixed CanonicalFields record. It is the
// only place raw untyped JSON is read; everything downstream works with the
// typed struct.
package normalize

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/vidsync/vidsync/internal/models"
)

// maxRawPreview bounds how much of an unparseable input is preserved for
// diagnostics.
const maxRawPreview = 500

// aliases maps known source field names to canonical keys. Canonical English
// names resolve first (handled separately); these cover localized and legacy
// spellings.
var aliases = map[string]string{
	// sequence_number
	"视频序列号": "sequence_number",
	"序列号":   "sequence_number",
	"标题":    "sequence_number",
	"编号":    "sequence_number",
	"sequence_id":         "sequence_number",
	"video_serial_number": "sequence_number",

	// content_summary
	"视频内容摘要": "content_summary",
	"内容摘要":   "content_summary",
	"摘要":     "content_summary",
	"summary":               "content_summary",
	"video_content_summary": "content_summary",

	// detailed_description
	"详细内容描述": "detailed_description",
	"详细描述":   "detailed_description",
	"内容描述":   "detailed_description",
	"description":                  "detailed_description",
	"detailed_content_description": "detailed_description",

	// keyword_tags
	"关键词标签": "keyword_tags",
	"关键词":   "keyword_tags",
	"标签":    "keyword_tags",
	"keywords":      "keyword_tags",
	"tags":          "keyword_tags",
	"keywords_tags": "keyword_tags",

	// main_objects
	"主要对象":   "main_objects",
	"主要人物对象": "main_objects",
	"主要人物":   "main_objects",
	"人物对象":   "main_objects",
	"characters":               "main_objects",
	"objects":                  "main_objects",
	"main_characters_objects":  "main_objects",
}

var canonicalKeys = []string{
	"sequence_number",
	"content_summary",
	"detailed_description",
	"keyword_tags",
	"main_objects",
}

// Normalize accepts any JSON-like value describing one or more analysis
// results and returns at least one CanonicalFields record. It never returns
// an empty slice and never fails: unrecoverable inputs degrade to a record
// that preserves a truncated rendering of the input in DetailedDescription.
func Normalize(input any) []models.CanonicalFields {
	objects := flatten(input)
	if len(objects) == 0 {
		objects = []map[string]any{{}}
	}

	records := make([]models.CanonicalFields, 0, len(objects))
	for _, obj := range objects {
		records = append(records, toCanonical(obj))
	}
	return records
}

// NormalizeRaw parses a raw JSON document and normalizes the result. A
// document that does not parse is treated as a single opaque value.
func NormalizeRaw(raw string) []models.CanonicalFields {
	return Normalize(raw)
}

// RecordFields derives the canonical fields for one stored record. The
// analysis text is normalized, then the record's own identity overrides
// whatever the analysis claimed: SequenceNumber is always the local sequence
// id, and an empty summary falls back to the file name.
func RecordFields(r *models.AnalysisRecord) models.CanonicalFields {
	fields := Normalize(r.AnalysisText)[0]
	fields.SequenceNumber = r.SequenceID
	if fields.ContentSummary == "" {
		fields.ContentSummary = r.FileName
	}
	return fields
}

// flatten reduces the supported input shapes to a list of flat objects.
func flatten(input any) []map[string]any {
	switch v := input.(type) {
	case nil:
		return nil

	case string:
		return flattenString(v)

	case []byte:
		return flattenString(string(v))

	case map[string]any:
		return flattenObject(v)

	case []any:
		var out []map[string]any
		for _, item := range v {
			out = append(out, flatten(item)...)
		}
		return out

	case []map[string]any:
		var out []map[string]any
		for _, item := range v {
			out = append(out, flattenObject(item)...)
		}
		return out

	default:
		return []map[string]any{{"raw_input": fmt.Sprint(v)}}
	}
}

func flattenString(s string) []map[string]any {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}

	var parsed any
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		// Not JSON: carry the text as a single opaque value.
		return []map[string]any{{"raw_input": truncate(trimmed, maxRawPreview)}}
	}
	// A bare JSON scalar ("42", "true") round-trips into raw_input too.
	switch parsed.(type) {
	case map[string]any, []any:
		return flatten(parsed)
	default:
		return []map[string]any{{"raw_input": truncate(trimmed, maxRawPreview)}}
	}
}

func flattenObject(obj map[string]any) []map[string]any {
	// Batch wrappers produced by table-service webhooks.
	if items, ok := obj["items"].([]any); ok {
		return flatten(items)
	}
	if items, ok := obj["input"].([]any); ok {
		return flatten(items)
	}
	if _, ok := obj["fields"]; ok {
		if unwrapped := unwrapFields(obj); unwrapped != nil {
			return []map[string]any{unwrapped}
		}
	}
	return []map[string]any{obj}
}

// unwrapFields handles the table-row export shape: a "fields" key holding a
// JSON-encoded string that maps field name -> [{"text": ..., "type": ...}],
// plus a sibling "record_id".
func unwrapFields(obj map[string]any) map[string]any {
	var fields map[string]any

	switch fv := obj["fields"].(type) {
	case string:
		if err := json.Unmarshal([]byte(strings.TrimSpace(fv)), &fields); err != nil {
			return nil
		}
	case map[string]any:
		fields = fv
	default:
		return nil
	}

	if len(fields) == 0 {
		return nil
	}

	out := make(map[string]any, len(fields)+1)
	for name, value := range fields {
		out[name] = cellText(value)
	}
	if recordID, ok := obj["record_id"].(string); ok && recordID != "" {
		out["record_id"] = recordID
	}
	return out
}

// cellText extracts the text of the first element of a rich-text cell list,
// falling back to a plain string rendering.
func cellText(value any) string {
	list, ok := value.([]any)
	if !ok || len(list) == 0 {
		return stringify(value)
	}
	first, ok := list[0].(map[string]any)
	if !ok {
		return stringify(list[0])
	}
	if text, ok := first["text"].(string); ok {
		return text
	}
	return stringify(list[0])
}

func toCanonical(obj map[string]any) models.CanonicalFields {
	values := make(map[string]string, len(canonicalKeys))

	// Exact canonical keys win over aliases.
	for _, key := range canonicalKeys {
		if v, ok := obj[key]; ok {
			values[key] = strings.TrimSpace(stringify(v))
		}
	}
	for name, v := range obj {
		canonical, ok := aliases[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			canonical, ok = aliases[strings.TrimSpace(name)]
		}
		if !ok || values[canonical] != "" {
			continue
		}
		values[canonical] = strings.TrimSpace(stringify(v))
	}

	// An opaque input keeps its raw text visible downstream.
	if raw, ok := obj["raw_input"]; ok && values["detailed_description"] == "" {
		values["detailed_description"] = truncate(strings.TrimSpace(stringify(raw)), maxRawPreview)
	}

	return models.CanonicalFields{
		SequenceNumber:      values["sequence_number"],
		ContentSummary:      values["content_summary"],
		DetailedDescription: values["detailed_description"],
		KeywordTags:         values["keyword_tags"],
		MainObjects:         values["main_objects"],
	}
}

func stringify(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		// JSON numbers decode as float64; keep integers clean.
		if s == float64(int64(s)) {
			return fmt.Sprintf("%d", int64(s))
		}
		return fmt.Sprintf("%g", s)
	case bool:
		return fmt.Sprintf("%t", s)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(encoded)
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

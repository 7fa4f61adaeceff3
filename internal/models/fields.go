package models

// CanonicalFields is the fixed flattened representation of one analysis
// result. Every value is a string; a field the source did not provide is an
// empty string, never absent. It is produced exclusively by the normalize
// package so that no other component reads raw untyped maps.
type CanonicalFields struct {
	SequenceNumber      string `json:"sequence_number"`
	ContentSummary      string `json:"content_summary"`
	DetailedDescription string `json:"detailed_description"`
	KeywordTags         string `json:"keyword_tags"`
	MainObjects         string `json:"main_objects"`
}

// Empty reports whether every canonical field is the empty string.
func (f CanonicalFields) Empty() bool {
	return f.SequenceNumber == "" &&
		f.ContentSummary == "" &&
		f.DetailedDescription == "" &&
		f.KeywordTags == "" &&
		f.MainObjects == ""
}

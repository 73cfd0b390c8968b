// Package search ranks records of one model by how well their text
// fields match a free-text query. The server narrows the candidates with
// a like filter; scoring and highlighting happen locally.
package search

import (
	"context"

	"github.com/arthur-debert/erprecord/erprecord"
)

// Options configures search behavior
type Options struct {
	// Query is the text to look for
	Query string

	// Fields lists the local names of the text fields to search. Empty
	// means every string and selection field of the model.
	Fields []string

	// CaseSensitive controls whether search is case-sensitive
	CaseSensitive bool

	// ExactMatch requires the entire field to match the query
	// When false, performs partial/substring matching
	ExactMatch bool

	// EnableHighlight fills Result.Highlights
	EnableHighlight bool

	// HighlightStartMarker and HighlightEndMarker surround each match in
	// highlighted text. Both default to "**".
	HighlightStartMarker string
	HighlightEndMarker   string

	// IncludeMatchDetails fills Result.FieldMatches
	IncludeMatchDetails bool

	// MaxResults limits the number of results; 0 means no limit
	MaxResults int
}

// Result is one matching record with its relevance
type Result struct {
	Record *erprecord.Record

	// Score represents match relevance (0.0 to 1.0, higher is better)
	Score float64

	// Highlights maps field name to text with match markers
	Highlights map[string]string

	// MatchType describes where the best match was found
	MatchType MatchType

	// MatchedFields lists all fields that contained matches
	MatchedFields []string

	FieldMatches []FieldMatch
}

// FieldMatch holds every match found in one field
type FieldMatch struct {
	FieldName       string
	OriginalText    string
	Matches         []MatchInfo
	HighlightedText string
	FieldScore      float64
}

// MatchInfo is one occurrence of the query, as byte offsets into the
// original text
type MatchInfo struct {
	Start     int
	End       int
	Text      string
	Score     float64
	MatchType MatchType
}

// MatchType indicates the type of match found
type MatchType string

const (
	MatchExactName    MatchType = "exact_name"
	MatchPartialName  MatchType = "partial_name"
	MatchExactField   MatchType = "exact_field"
	MatchPartialField MatchType = "partial_field"
)

// RecordSource supplies candidate records. *erprecord.Manager
// implements it.
type RecordSource interface {
	Schema() *erprecord.Schema
	Search(ctx context.Context, d erprecord.Domain, opts ...erprecord.Option) (erprecord.Records, error)
}

// Searcher defines the main search interface
type Searcher interface {
	// Search performs a search within the records matching d and
	// returns ranked results
	Search(ctx context.Context, options Options, d erprecord.Domain) ([]Result, error)
}

package search

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/arthur-debert/erprecord/erprecord"
	"github.com/arthur-debert/erprecord/types"
)

// Engine implements the Searcher interface
type Engine struct {
	source RecordSource
	log    *zap.Logger
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithLogger sets the logger used for debug output
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// NewEngine creates a new search engine over the records of source
func NewEngine(source RecordSource, opts ...EngineOption) *Engine {
	e := &Engine{source: source, log: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search performs a search and returns ranked results. Only records
// matching d are considered.
func (e *Engine) Search(ctx context.Context, options Options, d erprecord.Domain) ([]Result, error) {
	if options.Query == "" {
		return []Result{}, nil
	}

	fields, err := e.searchFields(options.Fields)
	if err != nil {
		return nil, err
	}

	// Top-level terms are ANDed, so the text filter is one more term
	domain := append(append(erprecord.Domain{}, d...), textFilter(fields, options)...)
	records, err := e.source.Search(ctx, domain, erprecord.Fields(fields...))
	if err != nil {
		return nil, fmt.Errorf("failed to get records: %w", err)
	}

	var results []Result
	query := options.Query
	if !options.CaseSensitive {
		query = strings.ToLower(query)
	}
	for _, r := range records {
		result, err := e.searchRecord(r, fields, query, options)
		if err != nil {
			return nil, err
		}
		if result != nil {
			results = append(results, *result)
		}
	}

	// Sort by score (highest first); the server order breaks ties
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if options.MaxResults > 0 && len(results) > options.MaxResults {
		results = results[:options.MaxResults]
	}

	e.log.Debug("search ranked",
		zap.String("model", e.source.Schema().Model()),
		zap.String("query", options.Query),
		zap.Int("candidates", len(records)),
		zap.Int("results", len(results)))
	return results, nil
}

// searchFields resolves the fields to search, defaulting to every
// string and selection field
func (e *Engine) searchFields(names []string) ([]string, error) {
	s := e.source.Schema()
	if len(names) == 0 {
		for _, f := range s.Fields() {
			if isText(f) && f.AliasOf == "" {
				names = append(names, f.Name)
			}
		}
		if len(names) == 0 {
			return nil, &erprecord.FieldError{Model: s.Model(), Field: "*", Reason: "no text fields to search"}
		}
		return names, nil
	}
	for _, name := range names {
		f, err := s.Lookup(name)
		if err != nil {
			return nil, err
		}
		if !isText(f) {
			return nil, &erprecord.FieldError{Model: s.Model(), Field: name, Reason: "is not a text field"}
		}
	}
	return names, nil
}

func isText(f *erprecord.Field) bool {
	return !f.IsRef() && (f.Kind == types.KindString || f.Kind == types.KindEnum)
}

// textFilter is the server-side prefilter: any of fields like the query
func textFilter(fields []string, options Options) erprecord.Domain {
	op := "ilike"
	switch {
	case options.ExactMatch && options.CaseSensitive:
		op = "="
	case options.ExactMatch:
		op = "=ilike"
	case options.CaseSensitive:
		op = "like"
	}
	var d erprecord.Domain
	for i := 1; i < len(fields); i++ {
		d = append(d, erprecord.Or)
	}
	for _, name := range fields {
		d = append(d, erprecord.C(name, op, options.Query))
	}
	return d
}

// searchRecord searches a single record and returns a result if it matches
func (e *Engine) searchRecord(r *erprecord.Record, fields []string, query string, options Options) (*Result, error) {
	var fieldMatches []FieldMatch
	var bestMatchType MatchType
	var maxScore float64

	// Set default highlight markers
	startMarker := options.HighlightStartMarker
	endMarker := options.HighlightEndMarker
	if startMarker == "" {
		startMarker = "**"
	}
	if endMarker == "" {
		endMarker = "**"
	}

	nameField := r.Schema().NameField()
	for _, field := range fields {
		v, err := r.Get(field)
		if err != nil {
			return nil, err
		}
		text, ok := v.(string)
		if !ok || text == "" {
			continue
		}
		baseMatchType := MatchPartialField
		if field == nameField {
			baseMatchType = MatchPartialName
		}
		if fieldMatch := e.searchField(field, text, query, options, baseMatchType, startMarker, endMarker); fieldMatch != nil {
			fieldMatches = append(fieldMatches, *fieldMatch)
			if fieldMatch.FieldScore > maxScore {
				maxScore = fieldMatch.FieldScore
				bestMatchType = fieldMatch.Matches[0].MatchType
			}
		}
	}

	if len(fieldMatches) == 0 {
		return nil, nil
	}

	result := &Result{
		Record:        r,
		Score:         maxScore,
		MatchType:     bestMatchType,
		MatchedFields: make([]string, 0, len(fieldMatches)),
	}
	if options.IncludeMatchDetails {
		result.FieldMatches = fieldMatches
	}
	if options.EnableHighlight {
		result.Highlights = make(map[string]string)
	}
	for _, fieldMatch := range fieldMatches {
		result.MatchedFields = append(result.MatchedFields, fieldMatch.FieldName)
		if options.EnableHighlight {
			result.Highlights[fieldMatch.FieldName] = fieldMatch.HighlightedText
		}
	}
	return result, nil
}

// searchField searches within one field value and returns detailed match information
func (e *Engine) searchField(fieldName, fieldValue, query string, options Options, baseMatchType MatchType, startMarker, endMarker string) *FieldMatch {
	matches := e.findMatches(fieldValue, query, options, baseMatchType)
	if len(matches) == 0 {
		return nil
	}

	fieldScore := 0.0
	for _, match := range matches {
		if match.Score > fieldScore {
			fieldScore = match.Score
		}
	}

	highlightedText := fieldValue
	if options.EnableHighlight {
		highlightedText = highlight(matches, fieldValue, startMarker, endMarker)
	}

	return &FieldMatch{
		FieldName:       fieldName,
		OriginalText:    fieldValue,
		Matches:         matches,
		HighlightedText: highlightedText,
		FieldScore:      fieldScore,
	}
}

// calculateScore computes a relevance score for a match
func calculateScore(fieldValue, query string, isName bool) float64 {
	baseScore := 0.5

	// Boost score for name matches
	if isName {
		baseScore = 0.8
	}

	if strings.Contains(fieldValue, query) {
		baseScore += 0.2
	}

	// Boost if match is at the beginning
	if strings.HasPrefix(fieldValue, query) {
		baseScore += 0.2
	}

	// Boost if query takes up a large portion of the field
	if coverage := float64(len(query)) / float64(len(fieldValue)); coverage > 0.5 {
		baseScore += 0.1
	}

	return min(baseScore, 1.0)
}

// findMatches finds all occurrences of the query in the text and returns
// detailed match info. Offsets index text; when case folding changes the
// byte length of text they index the folded text instead.
func (e *Engine) findMatches(text, query string, options Options, baseMatchType MatchType) []MatchInfo {
	var matches []MatchInfo
	if query == "" {
		return matches
	}

	searchText := text
	if !options.CaseSensitive {
		searchText = strings.ToLower(text)
		if len(searchText) != len(text) {
			text = searchText
		}
	}

	if options.ExactMatch {
		if searchText == query {
			matchType := MatchExactField
			if baseMatchType == MatchPartialName {
				matchType = MatchExactName
			}
			matches = append(matches, MatchInfo{
				Start:     0,
				End:       len(text),
				Text:      text,
				Score:     1.0,
				MatchType: matchType,
			})
		}
		return matches
	}

	score := calculateScore(searchText, query, baseMatchType == MatchPartialName)
	queryLen := len(query)
	for i := 0; i <= len(searchText)-queryLen; i++ {
		if searchText[i:i+queryLen] == query {
			matches = append(matches, MatchInfo{
				Start:     i,
				End:       i + queryLen,
				Text:      text[i : i+queryLen],
				Score:     score,
				MatchType: baseMatchType,
			})
			// Skip overlapping matches
			i += queryLen - 1
		}
	}
	return matches
}

// highlight surrounds each match in text with the markers
func highlight(matches []MatchInfo, text, startMarker, endMarker string) string {
	if len(matches) == 0 || matches[len(matches)-1].End > len(text) {
		return text
	}
	var builder strings.Builder
	lastEnd := 0
	for _, m := range matches {
		builder.WriteString(text[lastEnd:m.Start])
		builder.WriteString(startMarker)
		builder.WriteString(text[m.Start:m.End])
		builder.WriteString(endMarker)
		lastEnd = m.End
	}
	builder.WriteString(text[lastEnd:])
	return builder.String()
}

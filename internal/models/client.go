package models

import (
	"fmt"
	"strconv"

	"clientlookup/internal/cache"
	"clientlookup/internal/config"
	"clientlookup/internal/dataset"
	"clientlookup/internal/lookup"
)

// Obligation is one itemized record of a client.
type Obligation struct {
	Line   int               `json:"line"`
	Fields map[string]string `json:"fields"`
}

// LookupStats describes how a lookup was served.
type LookupStats struct {
	SearchMs          float64 `json:"search_ms"`
	FromCache         bool    `json:"from_cache"`
	Stale             bool    `json:"stale,omitempty"`
	TotalRecordsDB    int     `json:"total_records_db"`
	SearchesPerformed int64   `json:"searches_performed"`
	Complexity        string  `json:"complexity"`
}

// ClientLookup is the composite answer for one identification number.
// A miss is not an error: Found is false and Message explains it.
type ClientLookup struct {
	Found        bool              `json:"found"`
	Message      string            `json:"message,omitempty"`
	Key          string            `json:"key"`
	Client       map[string]string `json:"client,omitempty"`
	Obligations  []Obligation      `json:"obligations"`
	TotalRecords int               `json:"total_records"`
	Stats        LookupStats       `json:"stats"`

	// Field order for rendering.
	SummaryFields []string `json:"-"`
	ItemFields    []string `json:"-"`
}

// Suggestion is one prefix-search match with schema field names.
type Suggestion struct {
	Key    string            `json:"key"`
	Fields map[string]string `json:"fields"`
}

// BuildClientLookup shapes a key lookup for presentation. The summary comes
// from the first matching record; every match becomes a numbered obligation.
func BuildClientLookup(res cache.KeyResult, schema *config.Schema) ClientLookup {
	out := ClientLookup{
		Key:          res.Key,
		Found:        len(res.Records) > 0,
		TotalRecords: len(res.Records),
		Obligations:  []Obligation{},
		Stats: LookupStats{
			SearchMs:          float64(res.Elapsed.Microseconds()) / 1000,
			FromCache:         res.FromCache,
			Stale:             res.Stale,
			TotalRecordsDB:    res.Stats.RecordCount,
			SearchesPerformed: res.Stats.SearchesPerformed,
			Complexity:        "O(log " + strconv.Itoa(res.Stats.RecordCount) + ")",
		},
		SummaryFields: fieldNames(schema.Summary),
		ItemFields:    fieldNames(schema.Items),
	}

	if !out.Found {
		out.Message = fmt.Sprintf("No records found for identification %s", res.Key)
		return out
	}

	out.Client = project(res.Records[0], schema.Summary)
	out.Obligations = make([]Obligation, len(res.Records))
	for i, rec := range res.Records {
		out.Obligations[i] = Obligation{Line: i + 1, Fields: project(rec, schema.Items)}
	}
	return out
}

// BuildSuggestions renames suggestion columns to schema field names.
func BuildSuggestions(in []lookup.Suggestion, schema *config.Schema) []Suggestion {
	out := make([]Suggestion, len(in))
	for i, s := range in {
		fields := make(map[string]string, len(schema.Suggestion))
		for _, f := range schema.Suggestion {
			v := s.Fields[f.Column]
			if v == "" {
				v = f.Default
			}
			fields[f.Name] = v
		}
		out[i] = Suggestion{Key: s.Key, Fields: fields}
	}
	return out
}

func project(rec dataset.Record, specs []config.FieldSpec) map[string]string {
	out := make(map[string]string, len(specs))
	for _, f := range specs {
		out[f.Name] = rec.GetOr(f.Column, f.Default)
	}
	return out
}

func fieldNames(specs []config.FieldSpec) []string {
	names := make([]string, len(specs))
	for i, f := range specs {
		names[i] = f.Name
	}
	return names
}

// SuggestResponse answers a prefix search. Active is false when no dataset
// is loaded yet; suggestions never trigger a load.
type SuggestResponse struct {
	Query       string       `json:"query"`
	Active      bool         `json:"active"`
	Suggestions []Suggestion `json:"suggestions"`
}

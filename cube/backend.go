package cube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"hermannm.dev/wrap"
)

// DrillQuery asks for the children of one coordinate. Its JSON form is the drill cache key.
type DrillQuery struct {
	Space     string   `json:"space"`
	Dimension string   `json:"dimension"`
	Value     []string `json:"value"`
}

func (query DrillQuery) Key() (string, error) {
	if query.Value == nil {
		query.Value = []string{}
	}

	bytes, err := json.Marshal(query)
	if err != nil {
		return "", wrap.Error(err, "failed to serialize drill query")
	}
	return string(bytes), nil
}

// SearchQuery asks for coordinates of a dimension whose values match the given text.
type SearchQuery struct {
	Space     string `json:"space"`
	Dimension string `json:"dimension"`
	Text      string `json:"text"`
	// Deepest level (1-based) to include. 0 means no limit.
	MaxDepth int `json:"max_depth"`
}

// SearchMatch is a coordinate value found by a search, with its depth in the dimension. It is
// encoded as [value, depth].
type SearchMatch struct {
	Value string
	Depth int
}

func (match SearchMatch) Filter(dimension string) Filter {
	return Filter{Dimension: dimension, Value: match.Value, Depth: match.Depth}
}

type MetadataFetcher interface {
	Info(ctx context.Context) (Info, error)
}

type DrillFetcher interface {
	Drill(ctx context.Context, query DrillQuery) ([]Child, error)
}

type AggregationFetcher interface {
	Dice(ctx context.Context, state SelectionState) (Result, error)
}

// Exporter writes the full result of a selection in the given format. It must not go through any
// result cache.
type Exporter interface {
	Export(ctx context.Context, state SelectionState, format Format, output io.Writer) error
}

type SearchFetcher interface {
	Search(ctx context.Context, query SearchQuery) ([]SearchMatch, error)
}

// Backend is everything the explorer needs from the aggregation server.
type Backend interface {
	MetadataFetcher
	DrillFetcher
	AggregationFetcher
	Exporter
	SearchFetcher
}

func (match SearchMatch) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{match.Value, match.Depth})
}

func (match *SearchMatch) UnmarshalJSON(bytes []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(bytes, &pair); err != nil {
		return wrap.Error(err, "search match must be a [value, depth] pair")
	}
	if len(pair) != 2 {
		return fmt.Errorf("search match has %d elements, expected 2", len(pair))
	}

	if err := json.Unmarshal(pair[0], &match.Value); err != nil {
		return wrap.Error(err, "invalid search match value")
	}
	if err := json.Unmarshal(pair[1], &match.Depth); err != nil {
		return wrap.Error(err, "invalid search match depth")
	}
	return nil
}

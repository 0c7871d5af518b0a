package elasticsearch

import (
	"cmp"
	"context"
	"encoding/json"
	"slices"

	"github.com/elastic/go-elasticsearch/v8/typedapi/core/search"
	"github.com/elastic/go-elasticsearch/v8/typedapi/types"
	"hermannm.dev/cube/cube"
	"hermannm.dev/wrap"
)

const MaxSearchResults = 100

// Search finds indexed coordinates of the queried dimension whose value starts with a phrase
// matching the query text. Matches are ordered by depth, then value.
func (elastic CoordinateIndex) Search(
	ctx context.Context,
	query cube.SearchQuery,
) ([]cube.SearchMatch, error) {
	response, err := elastic.client.Search().
		Index(elastic.index).
		Request(buildSearchRequest(query)).
		Do(ctx)
	if err != nil {
		return nil, wrapElasticErrorf(
			err, "coordinate search failed for dimension '%s'", query.Dimension,
		)
	}

	sources := make([]json.RawMessage, len(response.Hits.Hits))
	for i, hit := range response.Hits.Hits {
		sources[i] = hit.Source_
	}
	return parseMatches(sources, query.MaxDepth)
}

func buildSearchRequest(query cube.SearchQuery) *search.Request {
	size := MaxSearchResults

	return &search.Request{
		Size: &size,
		Query: &types.Query{
			Bool: &types.BoolQuery{
				Must: []types.Query{
					{
						MatchPhrasePrefix: map[string]types.MatchPhrasePrefixQuery{
							fieldValue: {Query: query.Text},
						},
					},
				},
				Filter: []types.Query{
					{Term: map[string]types.TermQuery{fieldSpace: {Value: query.Space}}},
					{Term: map[string]types.TermQuery{fieldDimension: {Value: query.Dimension}}},
				},
			},
		},
	}
}

func parseMatches(sources []json.RawMessage, maxDepth int) ([]cube.SearchMatch, error) {
	matches := make([]cube.SearchMatch, 0, len(sources))
	seen := make(map[cube.SearchMatch]struct{}, len(sources))

	for _, source := range sources {
		var document coordinateDocument
		if err := json.Unmarshal(source, &document); err != nil {
			return nil, wrap.Error(err, "failed to parse coordinate document from Elasticsearch")
		}

		if maxDepth > 0 && document.Depth > maxDepth {
			continue
		}
		if len(document.Path) == 0 {
			continue
		}

		// The same value may appear under several parents, but filters only restrict by value
		match := cube.SearchMatch{Value: document.Path[len(document.Path)-1], Depth: document.Depth}
		if _, ok := seen[match]; !ok {
			seen[match] = struct{}{}
			matches = append(matches, match)
		}
	}

	slices.SortFunc(matches, func(a, b cube.SearchMatch) int {
		return cmp.Or(cmp.Compare(a.Depth, b.Depth), cmp.Compare(a.Value, b.Value))
	})
	return matches, nil
}

package elasticsearch

import (
	"context"

	"github.com/elastic/go-elasticsearch/v8"
	elastictypes "github.com/elastic/go-elasticsearch/v8/typedapi/types"
	"hermannm.dev/cube/config"
	"hermannm.dev/wrap"
)

// CoordinateIndex is an Elasticsearch index of the coordinates of cube dimensions, used to search
// for values by text. Implements cube.SearchFetcher.
type CoordinateIndex struct {
	client        *elasticsearch.TypedClient
	untypedClient *elasticsearch.Client
	index         string
}

func NewCoordinateIndex(config config.Elasticsearch) (CoordinateIndex, error) {
	clientConfig := elasticsearch.Config{
		Addresses:         []string{config.Address},
		Username:          config.Username,
		Password:          config.Password,
		EnableDebugLogger: config.Debug,
	}

	client, err := elasticsearch.NewTypedClient(clientConfig)
	if err != nil {
		return CoordinateIndex{}, wrap.Error(err, "failed to connect to Elasticsearch")
	}

	untypedClient, err := elasticsearch.NewClient(clientConfig)
	if err != nil {
		return CoordinateIndex{}, wrap.Error(err, "failed to connect to Elasticsearch")
	}

	return CoordinateIndex{client: client, untypedClient: untypedClient, index: config.Index}, nil
}

// Field names of indexed coordinate documents.
const (
	fieldSpace     = "space"
	fieldDimension = "dimension"
	fieldValue     = "value"
	fieldPath      = "path"
	fieldDepth     = "depth"
)

type coordinateDocument struct {
	Space     string   `json:"space"`
	Dimension string   `json:"dimension"`
	Value     string   `json:"value"`
	Path      []string `json:"path"`
	Depth     int      `json:"depth"`
}

func coordinateMappings() *elastictypes.TypeMapping {
	return &elastictypes.TypeMapping{
		Properties: map[string]elastictypes.Property{
			fieldSpace:     elastictypes.NewKeywordProperty(),
			fieldDimension: elastictypes.NewKeywordProperty(),
			fieldValue:     elastictypes.NewTextProperty(),
			fieldPath:      elastictypes.NewKeywordProperty(),
			fieldDepth:     elastictypes.NewIntegerNumberProperty(),
		},
	}
}

func (elastic CoordinateIndex) CreateIndex(ctx context.Context) error {
	if _, err := elastic.client.Indices.Create(elastic.index).
		Mappings(coordinateMappings()).
		Do(ctx); err != nil {
		return wrapElasticErrorf(
			err, "Elasticsearch index creation request failed for index '%s'", elastic.index,
		)
	}

	return nil
}

const elasticIndexNotFoundException = "index_not_found_exception"

func (elastic CoordinateIndex) DropIndex(ctx context.Context) (alreadyDropped bool, err error) {
	if _, err := elastic.client.Indices.Delete(elastic.index).Do(ctx); err != nil {
		elasticErr, isElasticErr := err.(*elastictypes.ElasticsearchError)
		if isElasticErr && elasticErr.ErrorCause.Type == elasticIndexNotFoundException {
			return true, nil
		}

		return false, wrapElasticError(err, "delete index request failed")
	}

	return false, nil
}

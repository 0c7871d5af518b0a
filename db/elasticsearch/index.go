package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/elastic/go-elasticsearch/v8/esutil"
	"github.com/google/uuid"
	"hermannm.dev/cube/cube"
	"hermannm.dev/cube/db"
	"hermannm.dev/devlog/log"
	"hermannm.dev/wrap"
)

// IndexCoordinates drills the whole hierarchy of the dimension in the given space, down to
// maxDepth levels (all if 0), and indexes every coordinate. Documents get IDs derived from their
// path, so indexing again overwrites instead of duplicating.
func (elastic CoordinateIndex) IndexCoordinates(
	ctx context.Context,
	driller cube.DrillFetcher,
	space string,
	dimension cube.Dimension,
	maxDepth int,
) (indexed int, err error) {
	bulk, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Client: elastic.untypedClient,
		Index:  elastic.index,
	})
	if err != nil {
		return 0, wrap.Error(err, "failed to prepare bulk coordinate insert")
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var added atomic.Int64
	walkErr := db.Walk(ctx, driller, space, dimension, maxDepth, func(path []string, label string) error {
		document := coordinateDocument{
			Space:     space,
			Dimension: dimension.Name,
			Value:     label,
			Path:      path,
			Depth:     len(path),
		}

		documentJSON, err := json.Marshal(document)
		if err != nil {
			return wrap.Errorf(err, "failed to encode coordinate '%s' to JSON", cube.Path(path...))
		}

		if err := bulk.Add(ctx, esutil.BulkIndexerItem{
			Action:     "index",
			DocumentID: coordinateID(space, dimension.Name, path),
			Body:       bytes.NewReader(documentJSON),
			OnSuccess: func(context.Context, esutil.BulkIndexerItem, esutil.BulkIndexerResponseItem) {
				added.Add(1)
			},
			OnFailure: func(
				ctx context.Context,
				item esutil.BulkIndexerItem,
				response esutil.BulkIndexerResponseItem,
				err error,
			) {
				if err == nil {
					err = fmt.Errorf("%s (%s)", response.Error.Reason, response.Error.Type)
				}
				cancel(wrap.Errorf(err, "failed to index coordinate '%s'", cube.Path(path...)))
			},
		}); err != nil {
			return wrap.Errorf(err, "failed to add coordinate '%s' to bulk insert", cube.Path(path...))
		}
		return nil
	})

	if err := bulk.Close(ctx); err != nil && walkErr == nil {
		walkErr = wrap.Error(err, "failed to finish bulk insert")
	}

	if cause := context.Cause(ctx); cause != nil {
		return int(added.Load()), cause
	}
	if walkErr != nil {
		return int(added.Load()), walkErr
	}

	if _, err := elastic.client.Indices.Refresh().Index(elastic.index).Do(ctx); err != nil {
		return int(added.Load()), wrapElasticError(err, "failed to refresh coordinate index")
	}

	log.Infof(
		"Indexed %d coordinates of dimension '%s' in space '%s'",
		added.Load(), dimension.Name, space,
	)
	return int(added.Load()), nil
}

func coordinateID(space string, dimension string, path []string) string {
	name := space + "\x00" + dimension + "\x00" + strings.Join(path, "\x00")
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"hermannm.dev/cube/cube"
	"hermannm.dev/devlog/log"
)

func (api CubeAPI) Info(res http.ResponseWriter, req *http.Request) {
	info, err := api.backend.Info(req.Context())
	if err != nil {
		sendError(res, "failed to get cube metadata", errorStatus(err), err)
		return
	}

	sendJSON(res, info)
}

func (api CubeAPI) Drill(res http.ResponseWriter, req *http.Request) {
	var query cube.DrillQuery
	if !parseQuery(res, req, &query) {
		return
	}

	children, err := api.backend.Drill(req.Context(), query)
	if err != nil {
		sendError(res, "failed to drill coordinate", errorStatus(err), err)
		return
	}
	if children == nil {
		children = []cube.Child{}
	}

	sendJSON(res, children)
}

// Dice responds with the aggregated result of the selection state. Errors reported by the
// backend for the selection are sent as the result's error field, with status 200.
func (api CubeAPI) Dice(res http.ResponseWriter, req *http.Request, format cube.Format) {
	var state cube.SelectionState
	if !parseQuery(res, req, &state) {
		return
	}

	if format == cube.FormatCSV {
		api.export(res, req, state)
		return
	}

	key, err := json.Marshal(state)
	if err != nil {
		sendError(res, "failed to serialize selection state", http.StatusInternalServerError, err)
		return
	}

	result, cached, err := api.results.GetOrFetch(
		req.Context(),
		string(key),
		func(ctx context.Context) (cube.Result, error) {
			result, err := api.backend.Dice(ctx, state)
			if err != nil {
				return cube.Result{}, err
			}
			if result.Error != "" {
				return cube.Result{}, &cube.ServerError{Message: result.Error}
			}
			return result, nil
		},
	)
	if err != nil {
		var serverErr *cube.ServerError
		if errors.As(err, &serverErr) {
			log.Warn("dice reported error", slog.String("error", serverErr.Message))
			sendJSON(res, cube.Result{Error: serverErr.Message})
			return
		}

		sendError(res, "failed to aggregate selection", errorStatus(err), err)
		return
	}

	log.Debug("served dice result", slog.Bool("cached", cached), slog.Int("rows", len(result.Rows)))
	sendJSON(res, result)
}

func (api CubeAPI) export(res http.ResponseWriter, req *http.Request, state cube.SelectionState) {
	// Rendered to memory first, so that errors can still be sent with an error status
	var output bytes.Buffer
	if err := api.backend.Export(req.Context(), state, cube.FormatCSV, &output); err != nil {
		statusCode := errorStatus(err)
		if cube.IsServerError(err) {
			statusCode = http.StatusUnprocessableEntity
		}
		sendError(res, "failed to export selection", statusCode, err)
		return
	}

	res.Header().Set("Content-Type", "text/csv; charset=utf-8")
	res.Header().Set("Content-Disposition", `attachment; filename="dice.csv"`)
	res.WriteHeader(http.StatusOK)
	if _, err := output.WriteTo(res); err != nil {
		log.ErrorCause(err, "failed to write CSV export response")
	}
}

func (api CubeAPI) Search(res http.ResponseWriter, req *http.Request) {
	var query cube.SearchQuery
	if !parseQuery(res, req, &query) {
		return
	}

	matches, err := api.backend.Search(req.Context(), query)
	if err != nil {
		sendError(res, "failed to search coordinates", errorStatus(err), err)
		return
	}
	if matches == nil {
		matches = []cube.SearchMatch{}
	}

	sendJSON(res, matches)
}

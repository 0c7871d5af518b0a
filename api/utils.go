package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"hermannm.dev/cube/cube"
	"hermannm.dev/devlog/log"
	"hermannm.dev/wrap"
)

func sendError(res http.ResponseWriter, message string, statusCode int, err error) {
	if statusCode >= 500 && err != nil {
		log.ErrorCause(err, message)
	}

	if err != nil {
		if message == "" {
			message = err.Error()
		} else {
			message = wrap.Error(err, message).Error()
		}
	}

	if statusCode < 500 {
		log.Info(message)
	}
	http.Error(res, message, statusCode)
}

func sendJSON(res http.ResponseWriter, value any) {
	body, err := json.Marshal(value)
	if err != nil {
		sendError(res, "failed to serialize response", http.StatusInternalServerError, err)
		return
	}

	res.Header().Set("Content-Type", "application/json")
	res.WriteHeader(http.StatusOK)
	if _, err := res.Write(body); err != nil {
		log.ErrorCause(err, "failed to write response")
	}
}

// parseQuery decodes the JSON 'query' URL parameter into target. It sends a client error and
// returns false if the parameter is missing or invalid.
func parseQuery(res http.ResponseWriter, req *http.Request, target any) bool {
	query := req.URL.Query().Get("query")
	if query == "" {
		sendError(res, "missing 'query' parameter in request", http.StatusBadRequest, nil)
		return false
	}

	if err := json.Unmarshal([]byte(query), target); err != nil {
		sendError(
			res,
			fmt.Sprintf("failed to parse 'query' parameter as %T", target),
			http.StatusBadRequest,
			err,
		)
		return false
	}

	return true
}

// errorStatus maps errors for selections the cube cannot serve to client error statuses.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, cube.ErrSearchUnavailable):
		return http.StatusNotImplemented
	case errors.Is(err, cube.ErrUnknownSpace),
		errors.Is(err, cube.ErrUnknownDimension),
		errors.Is(err, cube.ErrUnknownMeasure),
		errors.Is(err, cube.ErrLeafCoordinate),
		errors.Is(err, cube.ErrNoMeasures):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Package mng implements the cube backend interfaces as a client of the /mng HTTP API.
package mng

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"hermannm.dev/cube/cube"
	"hermannm.dev/devlog/log"
	"hermannm.dev/wrap"
)

// Implements cube.Backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the API at baseURL, e.g. http://localhost:8000/mng.
func NewClient(baseURL string, httpClient *http.Client) Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return Client{baseURL: strings.TrimSuffix(baseURL, "/"), httpClient: httpClient}
}

// StatusError is returned for responses with a non-200 status.
type StatusError struct {
	StatusCode int
	Message    string
}

func (err *StatusError) Error() string {
	return fmt.Sprintf("%s (status %d)", err.Message, err.StatusCode)
}

func (err *StatusError) Unwrap() error {
	if err.StatusCode == http.StatusNotImplemented {
		return cube.ErrSearchUnavailable
	}
	return nil
}

func (client Client) Info(ctx context.Context) (cube.Info, error) {
	var info cube.Info
	if err := client.getJSON(ctx, "info.json", nil, &info); err != nil {
		return cube.Info{}, wrap.Error(err, "info request failed")
	}
	return info, nil
}

func (client Client) Drill(ctx context.Context, query cube.DrillQuery) ([]cube.Child, error) {
	if query.Value == nil {
		query.Value = []string{}
	}

	var children []cube.Child
	if err := client.getJSON(ctx, "drill.json", query, &children); err != nil {
		return nil, wrap.Errorf(err, "drill request failed for dimension '%s'", query.Dimension)
	}
	return children, nil
}

// Dice fetches the aggregated result for state. An error reported by the server is returned in
// the result's Error field, as the server sent it.
func (client Client) Dice(ctx context.Context, state cube.SelectionState) (cube.Result, error) {
	var result cube.Result
	if err := client.getJSON(ctx, "dice.json", state, &result); err != nil {
		return cube.Result{}, wrap.Error(err, "dice request failed")
	}
	return result, nil
}

func (client Client) Export(
	ctx context.Context,
	state cube.SelectionState,
	format cube.Format,
	output io.Writer,
) error {
	if !format.IsValid() {
		return fmt.Errorf("unsupported export format '%v'", format)
	}

	body, err := client.get(ctx, "dice."+format.String(), state)
	if err != nil {
		return wrap.Error(err, "export request failed")
	}
	defer body.Close()

	if _, err := io.Copy(output, body); err != nil {
		return wrap.Error(err, "failed to write export")
	}
	return nil
}

func (client Client) Search(ctx context.Context, query cube.SearchQuery) ([]cube.SearchMatch, error) {
	var matches []cube.SearchMatch
	if err := client.getJSON(ctx, "search.json", query, &matches); err != nil {
		return nil, wrap.Errorf(err, "search request failed for dimension '%s'", query.Dimension)
	}
	return matches, nil
}

func (client Client) getJSON(ctx context.Context, endpoint string, query any, target any) error {
	body, err := client.get(ctx, endpoint, query)
	if err != nil {
		return err
	}
	defer body.Close()

	if err := json.NewDecoder(body).Decode(target); err != nil {
		return wrap.Errorf(err, "failed to parse response from %s", endpoint)
	}
	return nil
}

// get sends a request for endpoint with query JSON-encoded in the 'query' parameter, if given.
// The caller must close the returned body.
func (client Client) get(ctx context.Context, endpoint string, query any) (io.ReadCloser, error) {
	requestURL := client.baseURL + "/" + endpoint
	if query != nil {
		queryJSON, err := json.Marshal(query)
		if err != nil {
			return nil, wrap.Error(err, "failed to serialize query")
		}
		requestURL += "?" + url.Values{"query": {string(queryJSON)}}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, wrap.Error(err, "failed to create request")
	}

	log.Debug("sending cube request", slog.String("url", requestURL))

	res, err := client.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if res.StatusCode != http.StatusOK {
		defer res.Body.Close()

		message, err := io.ReadAll(io.LimitReader(res.Body, 64*1024))
		if err != nil || len(message) == 0 {
			message = []byte(res.Status)
		}
		return nil, &StatusError{
			StatusCode: res.StatusCode,
			Message:    strings.TrimSpace(string(message)),
		}
	}

	return res.Body, nil
}

package api_test

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"hermannm.dev/cube/api"
	"hermannm.dev/cube/config"
	"hermannm.dev/cube/cube"
	"hermannm.dev/cube/cubetest"
	"hermannm.dev/devlog"
)

func TestMain(m *testing.M) {
	logHandler := devlog.NewHandler(os.Stdout, &devlog.Options{Level: slog.LevelDebug})
	slog.SetDefault(slog.New(logHandler))

	os.Exit(m.Run())
}

func setup(t *testing.T) (*http.ServeMux, *cubetest.Backend) {
	t.Helper()

	backend := cubetest.NewBackend(t)
	router := http.NewServeMux()
	api.NewCubeAPI(backend, router, config.API{ResultCacheSize: 10})
	return router, backend
}

func get(t *testing.T, router *http.ServeMux, path string, query any) *httptest.ResponseRecorder {
	t.Helper()

	if query != nil {
		queryJSON, err := json.Marshal(query)
		require.NoError(t, err)
		path += "?" + url.Values{"query": {string(queryJSON)}}.Encode()
	}

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, path, nil))
	return recorder
}

func decode[T any](t *testing.T, recorder *httptest.ResponseRecorder) T {
	t.Helper()

	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	var value T
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &value))
	return value
}

func amountByGeo(path cube.ValuePath) cube.SelectionState {
	return cube.SelectionState{
		Measures:   []string{"sales.amount"},
		Dimensions: []cube.DimensionValue{{Name: "geo", Path: path}},
		SkipZero:   true,
	}
}

func TestInfo(t *testing.T) {
	router, _ := setup(t)

	info := decode[cube.Info](t, get(t, router, "/mng/info.json", nil))
	require.Len(t, info.Spaces, 2)
	assert.Equal(t, "sales", info.Spaces[0].Name)
	assert.Equal(t, "stock", info.Spaces[1].Name)
}

func TestDrill(t *testing.T) {
	router, _ := setup(t)

	children := decode[[]cube.Child](t, get(t, router, "/mng/drill.json", cube.DrillQuery{
		Space:     "sales",
		Dimension: "geo",
		Value:     []string{"EU"},
	}))
	assert.Equal(t, []cube.Child{{Value: "DE", Label: "DE"}, {Value: "FR", Label: "FR"}}, children)

	response := get(t, router, "/mng/drill.json", cube.DrillQuery{
		Space:     "sales",
		Dimension: "geo",
		Value:     []string{"EU", "FR", "Paris"},
	})
	assert.Equal(t, http.StatusBadRequest, response.Code)
}

func TestDiceIsCached(t *testing.T) {
	router, backend := setup(t)

	state := amountByGeo(cube.ValuePath{cube.Value("EU"), cube.Unset})
	first := decode[cube.Result](t, get(t, router, "/mng/dice.json", state))
	second := decode[cube.Result](t, get(t, router, "/mng/dice.json", state))

	assert.Equal(t, []cube.Row{
		{Keys: [][]string{{"EU", "DE"}}, Values: []float64{70}},
		{Keys: [][]string{{"EU", "FR"}}, Values: []float64{180}},
	}, first.Rows)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, backend.Calls("dice"))
}

func TestDiceServerErrorIsNotCached(t *testing.T) {
	router, backend := setup(t)
	backend.FailDice("table is being rebuilt")

	state := amountByGeo(cube.ValuePath{cube.Unset})
	for range 2 {
		result := decode[cube.Result](t, get(t, router, "/mng/dice.json", state))
		assert.Equal(t, "table is being rebuilt", result.Error)
		assert.Empty(t, result.Rows)
	}
	assert.Equal(t, 2, backend.Calls("dice"))
}

func TestDiceCSV(t *testing.T) {
	router, backend := setup(t)

	response := get(t, router, "/mng/dice.csv", amountByGeo(cube.ValuePath{cube.Unset}))
	require.Equal(t, http.StatusOK, response.Code, response.Body.String())
	assert.Equal(t, "text/csv; charset=utf-8", response.Header().Get("Content-Type"))
	assert.Equal(t, "Geography,Sales / Amount\nEU,250\nNA,200\nTotal,450\n", response.Body.String())

	assert.Equal(t, 1, backend.Calls("export"))
	assert.Equal(t, 0, backend.Calls("dice"))
}

func TestSearch(t *testing.T) {
	router, _ := setup(t)

	matches := decode[[]cube.SearchMatch](t, get(t, router, "/mng/search.json", cube.SearchQuery{
		Space:     "sales",
		Dimension: "geo",
		Text:      "par",
	}))
	assert.Equal(t, []cube.SearchMatch{{Value: "Paris", Depth: 3}}, matches)
}

func TestBadRequests(t *testing.T) {
	router, _ := setup(t)

	for _, test := range []struct {
		path       string
		query      any
		statusCode int
	}{
		{"/mng/slice.json", nil, http.StatusNotFound},
		{"/mng/info.xml", nil, http.StatusNotFound},
		{"/mng/dice.xlsx", amountByGeo(nil), http.StatusNotFound},
		{"/mng/drill.json", nil, http.StatusBadRequest},
		{"/mng/drill.json", []string{"not", "a", "query"}, http.StatusBadRequest},
		{"/mng/drill.json", cube.DrillQuery{Space: "returns", Dimension: "geo"}, http.StatusBadRequest},
	} {
		t.Run(test.path, func(t *testing.T) {
			assert.Equal(t, test.statusCode, get(t, router, test.path, test.query).Code)
		})
	}
}

func TestMetrics(t *testing.T) {
	router, _ := setup(t)
	decode[cube.Result](t, get(t, router, "/mng/dice.json", amountByGeo(cube.ValuePath{cube.Unset})))

	response := get(t, router, "/metrics", nil)
	require.Equal(t, http.StatusOK, response.Code)
	assert.Contains(t, response.Body.String(), `cube_cache_lookups_total{cache="api_results"`)
}

package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"hermannm.dev/cube/cache"
	"hermannm.dev/cube/config"
	"hermannm.dev/cube/cube"
)

// MngPrefix is the path prefix of the cube endpoints: /mng/<method>.<ext>
const MngPrefix = "/mng/"

// CubeAPI serves the metadata, drill, dice and search operations of a backend over HTTP.
type CubeAPI struct {
	backend cube.Backend
	results *cache.Loader[cube.Result]
	router  *http.ServeMux
	config  config.API
}

func NewCubeAPI(backend cube.Backend, router *http.ServeMux, config config.API) CubeAPI {
	api := CubeAPI{
		backend: backend,
		results: cache.NewLoader[cube.Result]("api_results", config.ResultCacheSize),
		router:  router,
		config:  config,
	}

	api.router.HandleFunc(MngPrefix, api.ServeMng)
	api.router.Handle("/metrics", promhttp.Handler())

	return api
}

func (api CubeAPI) ListenAndServe() error {
	return http.ListenAndServe(fmt.Sprintf(":%s", api.config.Port), api.router)
}

// ServeMng dispatches /mng/<method>.<ext> requests.
func (api CubeAPI) ServeMng(res http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		sendError(res, "only GET is supported", http.StatusMethodNotAllowed, nil)
		return
	}

	method, ext, _ := strings.Cut(strings.TrimPrefix(req.URL.Path, MngPrefix), ".")

	switch method {
	case "info":
		if ext == "json" {
			api.Info(res, req)
			return
		}
	case "drill":
		if ext == "json" {
			api.Drill(res, req)
			return
		}
	case "dice":
		if format, ok := cube.ParseFormat(ext); ok {
			api.Dice(res, req, format)
			return
		}
	case "search":
		if ext == "json" {
			api.Search(res, req)
			return
		}
	default:
		sendError(res, fmt.Sprintf("unknown method '%s'", method), http.StatusNotFound, nil)
		return
	}

	sendError(
		res,
		fmt.Sprintf("unsupported extension '%s' for method '%s'", ext, method),
		http.StatusNotFound,
		nil,
	)
}

package aqm

import (
	"net/http"
	"reflect"
	"runtime"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
)

// RouteInfo describes one registered route on /debug/routes.
type RouteInfo struct {
	Method      string   `json:"method"`
	Pattern     string   `json:"pattern"`
	Middlewares []string `json:"middlewares,omitempty"`
}

// RegisterDebugRoutes serves the live route table at GET /debug/routes.
func RegisterDebugRoutes(r chi.Router, enabled bool) {
	if !enabled || r == nil {
		return
	}
	r.Get("/debug/routes", func(w http.ResponseWriter, _ *http.Request) {
		Respond(w, http.StatusOK, EnumerateRoutes(r))
	})
}

// EnumerateRoutes lists routes ordered by pattern, then method.
func EnumerateRoutes(r chi.Routes) []RouteInfo {
	var routes []RouteInfo
	walk := func(method, pattern string, _ http.Handler, mws ...func(http.Handler) http.Handler) error {
		names := make([]string, 0, len(mws))
		for _, mw := range mws {
			names = append(names, funcName(mw))
		}
		if len(names) == 0 {
			names = nil
		}
		routes = append(routes, RouteInfo{Method: method, Pattern: pattern, Middlewares: names})
		return nil
	}
	if err := chi.Walk(r, walk); err != nil || routes == nil {
		return []RouteInfo{}
	}

	sort.Slice(routes, func(i, j int) bool {
		if c := strings.Compare(routes[i].Pattern, routes[j].Pattern); c != 0 {
			return c < 0
		}
		return routes[i].Method < routes[j].Method
	})
	return routes
}

func funcName(fn any) string {
	if fn == nil {
		return "<nil>"
	}
	if f := runtime.FuncForPC(reflect.ValueOf(fn).Pointer()); f != nil {
		return f.Name()
	}
	return "<unknown>"
}

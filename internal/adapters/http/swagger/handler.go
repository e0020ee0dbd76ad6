// Package swagger serves the OpenAPI description of the admin API.
package swagger

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"sort"

	"gopkg.in/yaml.v3"
)

// ErrServe is returned when the embedded document cannot be read.
var ErrServe = errors.New("swagger serve failed")

// Route is one documented operation.
type Route struct {
	Method  string
	Path    string
	Summary string
}

type document struct {
	Info struct {
		Title string `yaml:"title"`
	} `yaml:"info"`
	Paths map[string]map[string]struct {
		Summary string `yaml:"summary"`
	} `yaml:"paths"`
}

// Routes lists the operations of the embedded document, sorted by path.
func Routes() (string, []Route, error) {
	var doc document
	if err := yaml.Unmarshal(OpenAPI, &doc); err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrServe, err)
	}
	var routes []Route
	for path, ops := range doc.Paths {
		for method, op := range ops {
			routes = append(routes, Route{Method: method, Path: path, Summary: op.Summary})
		}
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path != routes[j].Path {
			return routes[i].Path < routes[j].Path
		}
		return routes[i].Method < routes[j].Method
	})
	return doc.Info.Title, routes, nil
}

// Register attaches the OpenAPI document and a plain index page to mux.
// Routes:
//
//	GET /openapi.yaml -> embedded OpenAPI document
//	GET /api-docs     -> HTML list of the documented operations
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}

	mux.HandleFunc("/openapi.yaml", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
		_, _ = w.Write(OpenAPI)
	})

	mux.HandleFunc("/api-docs", func(w http.ResponseWriter, _ *http.Request) {
		title, routes, err := Routes()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = indexTemplate.Execute(w, struct {
			Title  string
			Routes []Route
		}{title, routes})
	})
}

var indexTemplate = template.Must(template.New("index").Parse(`<!doctype html>
<html>
  <head><meta charset="utf-8"><title>{{.Title}}</title></head>
  <body>
    <h1>{{.Title}}</h1>
    <p><a href="/openapi.yaml">openapi.yaml</a></p>
    <table>
      {{range .Routes}}<tr><td>{{.Method}}</td><td>{{.Path}}</td><td>{{.Summary}}</td></tr>
      {{end}}
    </table>
  </body>
</html>`))

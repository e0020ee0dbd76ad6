package swagger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/smartystreets/goconvey/convey"
)

func TestSwaggerHandler(t *testing.T) {
	convey.Convey("Given a swagger handler", t, func() {
		ctx := context.Background()
		mux := http.NewServeMux()

		convey.Convey("When registering the swagger handler", func() {
			Register(ctx, mux)

			convey.Convey("Then it should handle /openapi.yaml route", func() {
				req := httptest.NewRequest("GET", "/openapi.yaml", http.NoBody)
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, req)

				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
				convey.So(w.Header().Get("Content-Type"), convey.ShouldEqual, "application/yaml; charset=utf-8")
				convey.So(w.Body.Len(), convey.ShouldBeGreaterThan, 0)
			})

			convey.Convey("And it should list every operation on /api-docs", func() {
				req := httptest.NewRequest("GET", "/api-docs", http.NoBody)
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, req)

				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
				convey.So(w.Header().Get("Content-Type"), convey.ShouldEqual, "text/html; charset=utf-8")
				convey.So(w.Body.String(), convey.ShouldContainSubstring, "FalconGrasp game node admin API")
				convey.So(w.Body.String(), convey.ShouldContainSubstring, "/presenter/ready")
			})
		})
	})
}

func TestRoutes(t *testing.T) {
	convey.Convey("Given the embedded document", t, func() {
		_, routes, err := Routes()

		convey.Convey("Then it documents each admin endpoint", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(routes, convey.ShouldHaveLength, 5)
			convey.So(routes[0], convey.ShouldResemble, Route{Method: "get", Path: "/healthz", Summary: "Prometheus metrics of the process"})
			convey.So(routes[3], convey.ShouldResemble, Route{Method: "post", Path: "/presenter/ready", Summary: "Report whether the screen is idle and can take a new game"})
		})
	})
}

package httpadapter

import (
	_ "embed"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"
)

//go:embed openapi.yaml
var openapiSpec []byte

var apiRouter routers.Router

func init() {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openapiSpec)
	if err != nil {
		panic("load embedded openapi document: " + err.Error())
	}
	if err := doc.Validate(loader.Context); err != nil {
		panic("invalid embedded openapi document: " + err.Error())
	}
	apiRouter, err = legacy.NewRouter(doc)
	if err != nil {
		panic("build openapi router: " + err.Error())
	}
}

// validationMiddleware checks method and parameters against the
// embedded OpenAPI document. Multipart bodies are left to the handlers,
// which need to stream the file anyway.
func validationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route, pathParams, err := apiRouter.FindRoute(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    r,
			PathParams: pathParams,
			Route:      route,
			Options: &openapi3filter.Options{
				ExcludeRequestBody: true,
				AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
			},
		}
		if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID", err.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

package chi

import (
	"fmt"
	"net/http"

	gochi "github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// ListSearchesParams are the query parameters of GET /api/v1/searches.
// Q creates a search and redirects, Qx runs one inline.
type ListSearchesParams struct {
	Q           *string
	Qx          *string
	Providers   *[]string
	Page        *int
	ResultMixer *string
	Explain     *bool
}

// GetResultsParams are the query parameters of GET /api/v1/searches/{id}/results.
type GetResultsParams struct {
	Page        *int
	ResultMixer *string
	Explain     *bool
	Provider    *string
}

// ServerInterface is the set of operations served over HTTP.
type ServerInterface interface {
	CreateSearch(w http.ResponseWriter, r *http.Request)
	ListSearches(w http.ResponseWriter, r *http.Request, params ListSearchesParams)
	GetSearch(w http.ResponseWriter, r *http.Request, id string)
	UpdateSearch(w http.ResponseWriter, r *http.Request, id string)
	DeleteSearch(w http.ResponseWriter, r *http.Request, id string)
	RerunSearch(w http.ResponseWriter, r *http.Request, id string)
	RescoreSearch(w http.ResponseWriter, r *http.Request, id string)
	GetResults(w http.ResponseWriter, r *http.Request, id string, params GetResultsParams)
	ListResults(w http.ResponseWriter, r *http.Request)
	GetResult(w http.ResponseWriter, r *http.Request, id string)
	DeleteResult(w http.ResponseWriter, r *http.Request, id string)
	ListProviders(w http.ResponseWriter, r *http.Request)
	CreateProvider(w http.ResponseWriter, r *http.Request)
	HealthCheck(w http.ResponseWriter, r *http.Request)
	Metrics(w http.ResponseWriter, r *http.Request)
}

// InvalidParamFormatError is passed to the error handler when a parameter does not bind.
type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("invalid format for parameter %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error { return e.Err }

// ServerInterfaceWrapper binds path and query parameters before calling the handler.
type ServerInterfaceWrapper struct {
	Handler          ServerInterface
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

func (siw *ServerInterfaceWrapper) bindPathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	var id string
	err := runtime.BindStyledParameterWithOptions("simple", "id", gochi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "id", Err: err})
		return "", false
	}
	return id, true
}

func (siw *ServerInterfaceWrapper) bindQuery(w http.ResponseWriter, r *http.Request, name string, explode bool, dest any) bool {
	if err := runtime.BindQueryParameter("form", explode, false, name, r.URL.Query(), dest); err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: name, Err: err})
		return false
	}
	return true
}

// CreateSearch operation middleware.
func (siw *ServerInterfaceWrapper) CreateSearch(w http.ResponseWriter, r *http.Request) {
	siw.Handler.CreateSearch(w, r)
}

// ListSearches operation middleware.
func (siw *ServerInterfaceWrapper) ListSearches(w http.ResponseWriter, r *http.Request) {
	var params ListSearchesParams
	if !siw.bindQuery(w, r, "q", true, &params.Q) ||
		!siw.bindQuery(w, r, "qx", true, &params.Qx) ||
		!siw.bindQuery(w, r, "providers", false, &params.Providers) ||
		!siw.bindQuery(w, r, "page", true, &params.Page) ||
		!siw.bindQuery(w, r, "result_mixer", true, &params.ResultMixer) ||
		!siw.bindQuery(w, r, "explain", true, &params.Explain) {
		return
	}
	siw.Handler.ListSearches(w, r, params)
}

// GetSearch operation middleware.
func (siw *ServerInterfaceWrapper) GetSearch(w http.ResponseWriter, r *http.Request) {
	if id, ok := siw.bindPathID(w, r); ok {
		siw.Handler.GetSearch(w, r, id)
	}
}

// UpdateSearch operation middleware.
func (siw *ServerInterfaceWrapper) UpdateSearch(w http.ResponseWriter, r *http.Request) {
	if id, ok := siw.bindPathID(w, r); ok {
		siw.Handler.UpdateSearch(w, r, id)
	}
}

// DeleteSearch operation middleware.
func (siw *ServerInterfaceWrapper) DeleteSearch(w http.ResponseWriter, r *http.Request) {
	if id, ok := siw.bindPathID(w, r); ok {
		siw.Handler.DeleteSearch(w, r, id)
	}
}

// RerunSearch operation middleware.
func (siw *ServerInterfaceWrapper) RerunSearch(w http.ResponseWriter, r *http.Request) {
	if id, ok := siw.bindPathID(w, r); ok {
		siw.Handler.RerunSearch(w, r, id)
	}
}

// RescoreSearch operation middleware.
func (siw *ServerInterfaceWrapper) RescoreSearch(w http.ResponseWriter, r *http.Request) {
	if id, ok := siw.bindPathID(w, r); ok {
		siw.Handler.RescoreSearch(w, r, id)
	}
}

// GetResults operation middleware.
func (siw *ServerInterfaceWrapper) GetResults(w http.ResponseWriter, r *http.Request) {
	id, ok := siw.bindPathID(w, r)
	if !ok {
		return
	}
	var params GetResultsParams
	if !siw.bindQuery(w, r, "page", true, &params.Page) ||
		!siw.bindQuery(w, r, "result_mixer", true, &params.ResultMixer) ||
		!siw.bindQuery(w, r, "explain", true, &params.Explain) ||
		!siw.bindQuery(w, r, "provider", true, &params.Provider) {
		return
	}
	siw.Handler.GetResults(w, r, id, params)
}

// ListResults operation middleware.
func (siw *ServerInterfaceWrapper) ListResults(w http.ResponseWriter, r *http.Request) {
	siw.Handler.ListResults(w, r)
}

// GetResult operation middleware.
func (siw *ServerInterfaceWrapper) GetResult(w http.ResponseWriter, r *http.Request) {
	if id, ok := siw.bindPathID(w, r); ok {
		siw.Handler.GetResult(w, r, id)
	}
}

// DeleteResult operation middleware.
func (siw *ServerInterfaceWrapper) DeleteResult(w http.ResponseWriter, r *http.Request) {
	if id, ok := siw.bindPathID(w, r); ok {
		siw.Handler.DeleteResult(w, r, id)
	}
}

// ListProviders operation middleware.
func (siw *ServerInterfaceWrapper) ListProviders(w http.ResponseWriter, r *http.Request) {
	siw.Handler.ListProviders(w, r)
}

// CreateProvider operation middleware.
func (siw *ServerInterfaceWrapper) CreateProvider(w http.ResponseWriter, r *http.Request) {
	siw.Handler.CreateProvider(w, r)
}

// HealthCheck operation middleware.
func (siw *ServerInterfaceWrapper) HealthCheck(w http.ResponseWriter, r *http.Request) {
	siw.Handler.HealthCheck(w, r)
}

// Metrics operation middleware.
func (siw *ServerInterfaceWrapper) Metrics(w http.ResponseWriter, r *http.Request) {
	siw.Handler.Metrics(w, r)
}

// ChiServerOptions configures HandlerWithOptions.
type ChiServerOptions struct {
	BaseRouter       gochi.Router
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// HandlerWithOptions mounts every operation of si on the base router.
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter
	if r == nil {
		r = gochi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = func(w http.ResponseWriter, _ *http.Request, err error) {
			writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, err.Error())
		}
	}
	wrapper := ServerInterfaceWrapper{
		Handler:          si,
		ErrorHandlerFunc: options.ErrorHandlerFunc,
	}

	r.Group(func(r gochi.Router) {
		r.Post("/api/v1/searches", wrapper.CreateSearch)
		r.Get("/api/v1/searches", wrapper.ListSearches)
		r.Get("/api/v1/searches/{id}", wrapper.GetSearch)
		r.Put("/api/v1/searches/{id}", wrapper.UpdateSearch)
		r.Delete("/api/v1/searches/{id}", wrapper.DeleteSearch)
		r.Post("/api/v1/searches/{id}/rerun", wrapper.RerunSearch)
		r.Post("/api/v1/searches/{id}/rescore", wrapper.RescoreSearch)
		r.Get("/api/v1/searches/{id}/results", wrapper.GetResults)
		r.Get("/api/v1/results", wrapper.ListResults)
		r.Get("/api/v1/results/{id}", wrapper.GetResult)
		r.Delete("/api/v1/results/{id}", wrapper.DeleteResult)
		r.Get("/api/v1/providers", wrapper.ListProviders)
		r.Post("/api/v1/providers", wrapper.CreateProvider)
		r.Get("/health", wrapper.HealthCheck)
		r.Get("/metrics", wrapper.Metrics)
	})
	return r
}

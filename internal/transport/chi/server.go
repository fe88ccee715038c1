package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	gochi "github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/routedex/internal/domain/catalog"
	"github.com/kailas-cloud/routedex/internal/domain/criteria"
	"github.com/kailas-cloud/routedex/internal/domain/indexing"
	"github.com/kailas-cloud/routedex/internal/domain/paging"
	"github.com/kailas-cloud/routedex/internal/domain/record"
	entityuc "github.com/kailas-cloud/routedex/internal/usecase/entity"
	healthuc "github.com/kailas-cloud/routedex/internal/usecase/health"
	searchuc "github.com/kailas-cloud/routedex/internal/usecase/search"
)

const (
	maxBodyBytes = 1 << 20

	headerTotalCount = "X-Total-Count"
)

// pagingParams are stripped from list queries before criteria parsing.
var pagingParams = []string{"page", "size", "sort"}

// StateReader reports the index state of one entity id.
type StateReader interface {
	State(ctx context.Context, entity string, id int64) (indexing.State, error)
}

// Server serves the REST API for every catalog entity.
type Server struct {
	catalog       *catalog.Catalog
	entities      *entityuc.Service
	search        *searchuc.Service
	health        *healthuc.Service
	state         StateReader
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	cat *catalog.Catalog,
	entities *entityuc.Service,
	search *searchuc.Service,
	health *healthuc.Service,
	state StateReader,
	logger *zap.Logger,
) *Server {
	return &Server{
		catalog:       cat,
		entities:      entities,
		search:        search,
		health:        health,
		state:         state,
		logger:        logger,
		errorHandlers: defaultErrorHandlers(),
	}
}

// Mount registers every route on r.
func (s *Server) Mount(r gochi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/{entity}", func(r gochi.Router) {
		r.Post("/", s.CreateRecord)
		r.Get("/", s.ListRecords)
		r.Get("/count", s.CountRecords)
		r.Get("/_search", s.SearchRecords)
		r.Route("/{id}", func(r gochi.Router) {
			r.Get("/", s.GetRecord)
			r.Put("/", s.UpdateRecord)
			r.Delete("/", s.DeleteRecord)
			r.Get("/_index", s.IndexState)
		})
	})
}

// CreateRecord handles POST /api/{entity}.
func (s *Server) CreateRecord(w http.ResponseWriter, r *http.Request) {
	schema, ok := s.schema(w, r)
	if !ok {
		return
	}
	payload, ok := decodePayload(w, r)
	if !ok {
		return
	}

	rec, err := s.entities.Create(r.Context(), schema, payload)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/%s/%d", schema.Plural, rec.ID()))
	writeRecord(w, http.StatusCreated, schema, rec)
}

// GetRecord handles GET /api/{entity}/{id}.
func (s *Server) GetRecord(w http.ResponseWriter, r *http.Request) {
	schema, id, ok := s.schemaAndID(w, r)
	if !ok {
		return
	}
	rec, err := s.entities.Get(r.Context(), schema, id)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeRecord(w, http.StatusOK, schema, rec)
}

// UpdateRecord handles PUT /api/{entity}/{id}.
func (s *Server) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	schema, id, ok := s.schemaAndID(w, r)
	if !ok {
		return
	}
	expected, ok := ifMatch(w, r)
	if !ok {
		return
	}
	payload, ok := decodePayload(w, r)
	if !ok {
		return
	}

	rec, err := s.entities.Update(r.Context(), schema, id, expected, payload)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeRecord(w, http.StatusOK, schema, rec)
}

// DeleteRecord handles DELETE /api/{entity}/{id}.
func (s *Server) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	schema, id, ok := s.schemaAndID(w, r)
	if !ok {
		return
	}
	expected, ok := ifMatch(w, r)
	if !ok {
		return
	}
	if err := s.entities.Delete(r.Context(), schema, id, expected); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListRecords handles GET /api/{entity}.
func (s *Server) ListRecords(w http.ResponseWriter, r *http.Request) {
	schema, ok := s.schema(w, r)
	if !ok {
		return
	}
	params := r.URL.Query()
	page, ok := bindPage(w, schema, params, true)
	if !ok {
		return
	}
	c, err := criteria.Parse(schema, withoutPaging(params))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	rows, total, err := s.entities.List(r.Context(), c, page)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.Header().Set(headerTotalCount, strconv.FormatInt(total, 10))
	writeRecords(w, schema, rows)
}

// CountRecords handles GET /api/{entity}/count.
func (s *Server) CountRecords(w http.ResponseWriter, r *http.Request) {
	schema, ok := s.schema(w, r)
	if !ok {
		return
	}
	c, err := criteria.Parse(schema, withoutPaging(r.URL.Query()))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	n, err := s.entities.Count(r.Context(), c)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// SearchRecords handles GET /api/{entity}/_search.
func (s *Server) SearchRecords(w http.ResponseWriter, r *http.Request) {
	schema, ok := s.schema(w, r)
	if !ok {
		return
	}
	params := r.URL.Query()
	var raw string
	if err := runtime.BindQueryParameter("form", true, false, "query", params, &raw); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid parameter \"query\"")
		return
	}
	page, ok := bindPage(w, schema, params, false)
	if !ok {
		return
	}

	res, err := s.search.Search(r.Context(), schema, raw, page)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.Header().Set(headerTotalCount, strconv.Itoa(res.Total))
	writeRecords(w, schema, res.Records)
}

// IndexStateResponse is the body of GET /api/{entity}/{id}/_index.
type IndexStateResponse struct {
	Entity string         `json:"entity"`
	ID     int64          `json:"id"`
	State  indexing.State `json:"state"`
}

// IndexState handles GET /api/{entity}/{id}/_index.
func (s *Server) IndexState(w http.ResponseWriter, r *http.Request) {
	schema, id, ok := s.schemaAndID(w, r)
	if !ok {
		return
	}
	st, err := s.state.State(r.Context(), schema.Entity, id)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, IndexStateResponse{Entity: schema.Entity, ID: id, State: st})
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status       healthuc.Status                 `json:"status"`
	Checks       map[string]healthuc.CheckResult `json:"checks"`
	Debt         int64                           `json:"debt"`
	DebtByEntity map[string]int64                `json:"debtByEntity,omitempty"`
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, HealthResponse{
		Status:       report.Status,
		Checks:       report.Checks,
		Debt:         report.Debt,
		DebtByEntity: report.DebtByEntity,
	})
}

func (s *Server) schema(w http.ResponseWriter, r *http.Request) (*criteria.Schema, bool) {
	schema, err := s.catalog.Resource(gochi.URLParam(r, "entity"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return nil, false
	}
	return schema, true
}

func (s *Server) schemaAndID(w http.ResponseWriter, r *http.Request) (*criteria.Schema, int64, bool) {
	schema, ok := s.schema(w, r)
	if !ok {
		return nil, 0, false
	}
	var id int64
	err := runtime.BindStyledParameterWithOptions("simple", "id", gochi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true})
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid parameter \"id\"")
		return nil, 0, false
	}
	return schema, id, true
}

func bindPage(w http.ResponseWriter, schema *criteria.Schema, params url.Values, sortable bool) (paging.Request, bool) {
	var page, size int
	for _, p := range []struct {
		name string
		dest *int
	}{{"page", &page}, {"size", &size}} {
		if err := runtime.BindQueryParameter("form", true, false, p.name, params, p.dest); err != nil {
			writeError(w, http.StatusBadRequest, CodeBadRequest, fmt.Sprintf("invalid parameter %q", p.name))
			return paging.Request{}, false
		}
	}

	var sort []paging.Order
	if sortable {
		var err error
		if sort, err = paging.ParseSort(schema, params["sort"]); err != nil {
			writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
			return paging.Request{}, false
		}
	}
	req, err := paging.New(page, size, sort)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
		return paging.Request{}, false
	}
	return req, true
}

func withoutPaging(params url.Values) url.Values {
	out := make(url.Values, len(params))
	for k, v := range params {
		out[k] = v
	}
	for _, k := range pagingParams {
		delete(out, k)
	}
	return out
}

// ifMatch parses an optional `If-Match: "<version>"` header. Zero means
// unconditional.
func ifMatch(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := strings.TrimSpace(r.Header.Get("If-Match"))
	if raw == "" || raw == "*" {
		return 0, true
	}
	raw = strings.Trim(strings.TrimPrefix(raw, "W/"), `"`)
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid If-Match header")
		return 0, false
	}
	return v, true
}

func decodePayload(w http.ResponseWriter, r *http.Request) (map[string]json.RawMessage, bool) {
	var payload map[string]json.RawMessage
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&payload); err != nil {
		msg := "invalid JSON body"
		if errors.Is(err, io.EOF) {
			msg = "request body is empty"
		}
		writeError(w, http.StatusBadRequest, CodeBadRequest, msg)
		return nil, false
	}
	if payload == nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "request body must be a JSON object")
		return nil, false
	}
	return payload, true
}

func writeRecord(w http.ResponseWriter, status int, schema *criteria.Schema, rec record.Record) {
	w.Header().Set("ETag", strconv.Quote(strconv.FormatInt(rec.Version(), 10)))
	writeJSON(w, status, record.Encode(schema, rec))
}

func writeRecords(w http.ResponseWriter, schema *criteria.Schema, recs []record.Record) {
	out := make([]map[string]any, len(recs))
	for i, rec := range recs {
		out[i] = record.Encode(schema, rec)
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

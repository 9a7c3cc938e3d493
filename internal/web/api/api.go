// Package api exposes the model registries and the relation codecs over
// HTTP: key descriptors, encoding to the stored form, decoding it back and
// following a stored relation to its target record.
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/conduit-lang/relations/internal/config"
	"github.com/conduit-lang/relations/internal/orm/relations"
	"github.com/conduit-lang/relations/internal/orm/schema"
	"github.com/conduit-lang/relations/internal/orm/store"
	"github.com/conduit-lang/relations/internal/web/middleware"
	"github.com/conduit-lang/relations/internal/web/profiling"
	"github.com/conduit-lang/relations/internal/web/response"
)

const maxBodyBytes = 1 << 20

// API serves the relation endpoints
type API struct {
	schema    *config.Schema
	stores    store.Set
	logger    *zap.Logger
	profiling *profiling.Config
}

// New creates the API. stores may be nil, in which case follow requests
// fail with 404.
func New(s *config.Schema, stores store.Set, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	if stores == nil {
		stores = store.Set{}
	}
	return &API{schema: s, stores: stores, logger: logger}
}

// WithProfiling mounts the pprof endpoints on the router
func (a *API) WithProfiling(cfg *profiling.Config) *API {
	if cfg == nil {
		cfg = profiling.DefaultConfig()
	}
	a.profiling = cfg
	return a
}

// Routes returns the router with request ID, logging and recovery middleware
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Logging(a.logger), middleware.Recovery(a.logger))

	r.Get("/engines", a.listEngines)
	r.Get("/engines/{engine}/models", a.listModels)
	r.Get("/engines/{engine}/models/{model}/key", a.modelKey)

	r.Get("/relations/{model}/{relation}", a.describeRelation)
	r.Post("/relations/{model}/{relation}/encode", a.encode)
	r.Post("/relations/{model}/{relation}/decode", a.decode)
	r.Post("/relations/{model}/{relation}/follow", a.follow)

	if a.profiling != nil {
		profiling.RegisterRoutes(r, a.profiling)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.RenderError(w, http.StatusNotFound, fmt.Errorf("no route for %s %s", r.Method, r.URL.Path))
	})
	return r
}

// KeyAttribute is the JSON form of a key component
type KeyAttribute struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// KeyDescriptor is the JSON form of a key descriptor
type KeyDescriptor struct {
	Model      string         `json:"model"`
	Engine     string         `json:"engine"`
	Composite  bool           `json:"composite"`
	Attributes []KeyAttribute `json:"attributes"`
}

func keyDescriptorJSON(engine string, kd schema.KeyDescriptor) KeyDescriptor {
	out := KeyDescriptor{Model: kd.Model, Engine: engine, Composite: kd.IsComposite()}
	for _, attr := range kd.Attributes {
		out.Attributes = append(out.Attributes, KeyAttribute{Name: attr.Name, Type: attr.Type.String()})
	}
	return out
}

// Relation is the JSON form of a relation column declaration
type Relation struct {
	Model    string        `json:"model"`
	Name     string        `json:"name"`
	Kind     string        `json:"kind"`
	Target   KeyDescriptor `json:"target"`
	Required bool          `json:"required"`
	Indexed  bool          `json:"indexed"`
}

// RuntimeValue is the JSON form of a relation's runtime value
type RuntimeValue struct {
	Kind   string             `json:"kind"`
	Key    *schema.KeyMapping `json:"key,omitempty"`
	Scalar interface{}        `json:"scalar,omitempty"`
}

func runtimeJSON(v relations.Value) RuntimeValue {
	out := RuntimeValue{Kind: v.Kind().String()}
	switch v.Kind() {
	case relations.KindKey:
		km := v.Key()
		out.Key = &km
	case relations.KindScalar:
		out.Scalar = v.Scalar()
	}
	return out
}

// EncodeRequest carries either a key mapping or a bare scalar. Both absent
// means null.
type EncodeRequest struct {
	Key    *schema.KeyMapping `json:"key"`
	Scalar interface{}        `json:"scalar"`
}

// StoredRequest carries a stored relation value
type StoredRequest struct {
	Stored json.RawMessage `json:"stored"`
}

func (a *API) listEngines(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]interface{}{"engines": a.schema.Catalog.Engines()})
}

func (a *API) listModels(w http.ResponseWriter, r *http.Request) {
	engine := chi.URLParam(r, "engine")
	reg, ok := a.schema.Catalog.Lookup(engine)
	if !ok {
		a.renderError(w, r, fmt.Errorf("%w: %s", store.ErrUnknownEngine, engine))
		return
	}
	response.JSON(w, http.StatusOK, map[string]interface{}{"engine": engine, "models": reg.List()})
}

func (a *API) modelKey(w http.ResponseWriter, r *http.Request) {
	engine := chi.URLParam(r, "engine")
	reg, ok := a.schema.Catalog.Lookup(engine)
	if !ok {
		a.renderError(w, r, fmt.Errorf("%w: %s", store.ErrUnknownEngine, engine))
		return
	}
	model, err := reg.Resolve(chi.URLParam(r, "model"))
	if err != nil {
		a.renderError(w, r, err)
		return
	}
	kd, err := schema.BuildKeyDescriptor(model)
	if err != nil {
		a.renderError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, keyDescriptorJSON(engine, kd))
}

func (a *API) column(r *http.Request) (relations.Column, error) {
	_, col, err := a.schema.Relation(chi.URLParam(r, "model"), chi.URLParam(r, "relation"))
	return col, err
}

func (a *API) describeRelation(w http.ResponseWriter, r *http.Request) {
	def, col, err := a.schema.Relation(chi.URLParam(r, "model"), chi.URLParam(r, "relation"))
	if err != nil {
		a.renderError(w, r, err)
		return
	}
	model, kd, err := col.Target().Resolve()
	if err != nil {
		a.renderError(w, r, err)
		return
	}
	opts := col.Options()
	response.JSON(w, http.StatusOK, Relation{
		Model:    def.Name(),
		Name:     col.Name(),
		Kind:     col.Variant().String(),
		Target:   keyDescriptorJSON(model.Engine, kd),
		Required: opts.Required,
		Indexed:  opts.Indexed,
	})
}

func (a *API) encode(w http.ResponseWriter, r *http.Request) {
	col, err := a.column(r)
	if err != nil {
		a.renderError(w, r, err)
		return
	}

	var req EncodeRequest
	if err := decodeBody(w, r, &req); err != nil {
		response.RenderError(w, http.StatusBadRequest, err)
		return
	}

	v, err := relations.FromInput(col, req.Key, req.Scalar)
	if err != nil {
		a.renderError(w, r, err)
		return
	}
	stored, err := col.ToStorage(v)
	if err != nil {
		a.renderError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]interface{}{"stored": stored})
}

func (a *API) decode(w http.ResponseWriter, r *http.Request) {
	col, v, ok := a.decodeStored(w, r)
	if !ok {
		return
	}
	response.JSON(w, http.StatusOK, map[string]interface{}{
		"relation": col.Name(),
		"value":    runtimeJSON(v),
	})
}

func (a *API) follow(w http.ResponseWriter, r *http.Request) {
	col, v, ok := a.decodeStored(w, r)
	if !ok {
		return
	}

	rec, err := store.Follow(r.Context(), a.stores, col, v)
	if err != nil {
		a.renderError(w, r, err)
		return
	}
	row, err := rec.Encode()
	if err != nil {
		a.renderError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]interface{}{
		"model":  rec.ModelName(),
		"engine": rec.Engine(),
		"record": row,
	})
}

func (a *API) decodeStored(w http.ResponseWriter, r *http.Request) (relations.Column, relations.Value, bool) {
	col, err := a.column(r)
	if err != nil {
		a.renderError(w, r, err)
		return nil, relations.Null(), false
	}

	var req StoredRequest
	if err := decodeBody(w, r, &req); err != nil {
		response.RenderError(w, http.StatusBadRequest, err)
		return nil, relations.Null(), false
	}
	stored, err := storedFromJSON(req.Stored)
	if err != nil {
		response.RenderError(w, http.StatusBadRequest, err)
		return nil, relations.Null(), false
	}

	v, err := col.ToRuntime(stored)
	if err != nil {
		a.renderError(w, r, err)
		return nil, relations.Null(), false
	}
	return col, v, true
}

// storedFromJSON maps a JSON stored value onto what the codecs accept:
// objects stay raw JSON, numbers become their text
func storedFromJSON(raw json.RawMessage) (interface{}, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] == '{' {
		return []byte(trimmed), nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("invalid stored value: %w", err)
	}
	if n, ok := v.(json.Number); ok {
		return n.String(), nil
	}
	return v, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func (a *API) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		a.logger.Error("request failed",
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.Error(err))
	}
	response.RenderErrorWithDetails(w, status, err, errorDetails(err))
}

// StatusFor maps the error taxonomy onto HTTP statuses
func StatusFor(err error) int {
	switch {
	case errors.Is(err, config.ErrUnknownModel),
		errors.Is(err, config.ErrUnknownRelation),
		schema.IsUnresolved(err),
		errors.Is(err, relations.ErrNoTarget),
		errors.Is(err, store.ErrNotFound),
		errors.Is(err, store.ErrUnknownEngine):
		return http.StatusNotFound
	case errors.Is(err, config.ErrAmbiguousModel):
		return http.StatusBadRequest
	case schema.IsTypeMismatch(err),
		schema.IsIncompleteKey(err),
		errors.Is(err, schema.ErrEmptyKey),
		errors.Is(err, relations.ErrNotScalarKey),
		errors.Is(err, relations.ErrNullValue):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func errorDetails(err error) map[string]interface{} {
	var incomplete *schema.IncompleteKeyError
	if errors.As(err, &incomplete) {
		return map[string]interface{}{"model": incomplete.Model, "missing": incomplete.Missing}
	}
	var mismatch *schema.TypeMismatchError
	if errors.As(err, &mismatch) {
		return map[string]interface{}{
			"attribute": mismatch.Attribute,
			"expected":  mismatch.Expected,
			"got":       mismatch.Got,
		}
	}
	return nil
}

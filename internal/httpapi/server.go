package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"inferd/internal/manager"
	"inferd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	ListModels() []types.ModelConfig
	Status() types.StatusResponse
	Ready() bool
	LoadByID(ctx context.Context, id string, opts manager.LoadOptions) (manager.ModelStats, error)
	Preload(ctx context.Context, id string, opts manager.LoadOptions) (string, error)
	Operation(opID string) (manager.Operation, bool)
	Predict(ctx context.Context, id string, in manager.PredictionInput) (manager.PredictionOutput, error)
	BatchPredict(ctx context.Context, id string, inputs []manager.PredictionInput) ([]manager.PredictionOutput, error)
	UnloadModel(id string) error
}

type server struct {
	svc Service
	options
}

// NewMux builds the HTTP API around svc.
func NewMux(svc Service, opts ...Option) http.Handler {
	s := &server{svc: svc, options: defaultOptions()}
	for _, opt := range opts {
		opt(&s.options)
	}

	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(MetricsMiddleware)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	if s.cors.Enabled {
		r.Use(cors.Handler(corsOptions(s.cors)))
	}
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(inflightMiddleware)
		r.Get("/models", s.listModels)
		r.Get("/status", s.status)
		r.Post("/models/{id}/load", s.load)
		r.Delete("/models/{id}", s.unload)
		r.Post("/models/{id}/predict", s.predict)
		r.Post("/models/{id}/batch", s.batch)
		r.Get("/operations/{op}", s.operation)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("shutting down"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

func corsOptions(c CORSOptions) cors.Options {
	o := cors.Options{
		AllowedOrigins: c.AllowedOrigins,
		AllowedMethods: c.AllowedMethods,
		AllowedHeaders: c.AllowedHeaders,
		MaxAge:         300,
	}
	if len(o.AllowedOrigins) == 0 {
		o.AllowedOrigins = []string{"*"}
	}
	if len(o.AllowedMethods) == 0 {
		o.AllowedMethods = []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}
	}
	if len(o.AllowedHeaders) == 0 {
		o.AllowedHeaders = []string{"Accept", "Content-Type", "X-Log-Level", "X-Request-Id"}
	}
	return o
}

// listModels godoc
// @Summary      List catalog models
// @Tags         models
// @Produce      json
// @Param        q    query     string  false  "Case-insensitive filter on id, name or type"
// @Success      200  {object}  types.ModelsResponse
// @Router       /models [get]
func (s *server) listModels(w http.ResponseWriter, r *http.Request) {
	models := s.svc.ListModels()
	if q := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q"))); q != "" {
		filtered := models[:0]
		for _, m := range models {
			if strings.Contains(strings.ToLower(m.ID), q) ||
				strings.Contains(strings.ToLower(m.Name), q) ||
				strings.Contains(strings.ToLower(string(m.Type)), q) {
				filtered = append(filtered, m)
			}
		}
		models = filtered
	}
	if models == nil {
		models = []types.ModelConfig{}
	}
	writeJSON(w, http.StatusOK, types.ModelsResponse{Models: models})
}

// status godoc
// @Summary      Resident models and cache counters
// @Tags         status
// @Produce      json
// @Success      200  {object}  types.StatusResponse
// @Router       /status [get]
func (s *server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Status())
}

// load godoc
// @Summary      Load a catalog model into the cache
// @Tags         models
// @Accept       json
// @Produce      json
// @Param        id     path      string             true   "Model id"
// @Param        async  query     bool               false  "Return 202 with an operation id"
// @Param        body   body      types.LoadRequest  false  "Load options"
// @Success      200    {object}  types.LoadResponse
// @Success      202    {object}  types.OperationResponse
// @Failure      404    {object}  types.ErrorResponse
// @Failure      502    {object}  types.ErrorResponse
// @Router       /models/{id}/load [post]
func (s *server) load(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req types.LoadRequest
	if r.ContentLength != 0 {
		if !s.decodeJSON(w, r, &req) {
			return
		}
	}
	opts := manager.LoadOptions{Warmup: req.Warmup}

	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		opID, err := s.svc.Preload(s.baseCtx, id, opts)
		if err != nil {
			writeJSONError(w, statusFor(err), err.Error())
			return
		}
		w.Header().Set("Location", "/operations/"+opID)
		writeJSON(w, http.StatusAccepted, types.OperationResponse{ID: opID, ModelID: id, State: string(manager.OpRunning)})
		return
	}

	ctx, cancel := workContext(s.baseCtx, r.Context(), 0)
	defer cancel()
	st, err := s.svc.LoadByID(ctx, id, opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.LoadResponse{
		ModelID:     st.ID,
		MemoryBytes: st.MemoryBytes,
		LoadedAt:    st.LoadedAt.Unix(),
	})
}

// unload godoc
// @Summary      Unload a resident model
// @Tags         models
// @Param        id   path  string  true  "Model id"
// @Success      204
// @Failure      409  {object}  types.ErrorResponse
// @Router       /models/{id} [delete]
func (s *server) unload(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.UnloadModel(chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// predict godoc
// @Summary      Run one prediction
// @Tags         predict
// @Accept       json
// @Produce      json
// @Param        id    path      string                true  "Model id"
// @Param        body  body      types.PredictRequest  true  "Input"
// @Success      200   {object}  types.PredictResponse
// @Failure      409   {object}  types.ErrorResponse
// @Failure      422   {object}  types.ErrorResponse
// @Router       /models/{id}/predict [post]
func (s *server) predict(w http.ResponseWriter, r *http.Request) {
	var req types.PredictRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	ctx, cancel := workContext(s.baseCtx, r.Context(), s.predictTimeout)
	defer cancel()
	out, err := s.svc.Predict(ctx, chi.URLParam(r, "id"), toPredictionInput(req))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPredictResponse(out))
}

// batch godoc
// @Summary      Run a batch of predictions
// @Tags         predict
// @Accept       json
// @Produce      json
// @Param        id    path      string              true  "Model id"
// @Param        body  body      types.BatchRequest  true  "Inputs"
// @Success      200   {object}  types.BatchResponse
// @Failure      409   {object}  types.ErrorResponse
// @Failure      422   {object}  types.ErrorResponse
// @Router       /models/{id}/batch [post]
func (s *server) batch(w http.ResponseWriter, r *http.Request) {
	var req types.BatchRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if len(req.Inputs) == 0 {
		writeJSONError(w, http.StatusBadRequest, "inputs is required")
		return
	}
	inputs := make([]manager.PredictionInput, len(req.Inputs))
	for i, in := range req.Inputs {
		inputs[i] = toPredictionInput(in)
	}
	ctx, cancel := workContext(s.baseCtx, r.Context(), s.predictTimeout)
	defer cancel()
	outs, err := s.svc.BatchPredict(ctx, chi.URLParam(r, "id"), inputs)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp := types.BatchResponse{Results: make([]types.PredictResponse, len(outs))}
	for i, out := range outs {
		resp.Results[i] = toPredictResponse(out)
	}
	writeJSON(w, http.StatusOK, resp)
}

// operation godoc
// @Summary      Background preload state
// @Tags         models
// @Produce      json
// @Param        op   path      string  true  "Operation id"
// @Success      200  {object}  types.OperationResponse
// @Failure      404  {object}  types.ErrorResponse
// @Router       /operations/{op} [get]
func (s *server) operation(w http.ResponseWriter, r *http.Request) {
	op, ok := s.svc.Operation(chi.URLParam(r, "op"))
	if !ok {
		writeJSONError(w, http.StatusNotFound, "operation not found")
		return
	}
	writeJSON(w, http.StatusOK, types.OperationResponse{
		ID:      op.ID,
		ModelID: op.ModelID,
		State:   string(op.State),
		Error:   op.Error,
	})
}

// decodeJSON enforces the JSON content type and body limit. It writes the
// error response itself and reports whether decoding succeeded.
func (s *server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		// oversize bodies also land here; report them as a generic 400
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// fail maps err to a status and logs it. Work abandoned because the client
// went away gets no response body.
func (s *server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if r.Context().Err() != nil {
		return
	}
	status := statusFor(err)
	if s.baseCtx.Err() != nil {
		status = http.StatusServiceUnavailable
	}
	if s.requestLogLevel(r) >= LevelError {
		ev := s.log.Warn()
		if status >= 500 {
			ev = s.log.Error()
		}
		ev.Str("path", r.URL.Path).
			Int("status", status).
			Str("request_id", middleware.GetReqID(r.Context())).
			Err(err).
			Msg("request failed")
	}
	writeJSONError(w, status, err.Error())
}


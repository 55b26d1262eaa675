// Package runtime exposes the handler over HTTP, AWS Lambda and EventBridge.
package runtime

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/isometry/gh-tag-trigger/internal/builds"
	"github.com/isometry/gh-tag-trigger/internal/handler"
	"github.com/isometry/gh-tag-trigger/internal/helpers"
	"github.com/isometry/gh-tag-trigger/internal/models"
	"github.com/isometry/gh-tag-trigger/internal/payload"
	"github.com/isometry/gh-tag-trigger/internal/tagpush"
	"github.com/pkg/errors"
)

// Supported Lambda payload types.
const (
	PayloadAPIGatewayV1 = "api-gateway-v1"
	PayloadAPIGatewayV2 = "api-gateway-v2"
	PayloadLambdaURL    = "lambda-url"
)

// MaxBodyBytes is the largest payload GitHub delivers.
const MaxBodyBytes = 25 << 20

// RunSource looks up scheduled runs.
type RunSource interface {
	Get(id string) (builds.Run, bool)
}

type Option func(*Runtime)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Runtime) {
		r.logger = logger
	}
}

// WithPath sets the path webhook deliveries are accepted on.
func WithPath(path string) Option {
	return func(r *Runtime) {
		r.path = path
	}
}

// WithLambdaPayloadType sets the Lambda payload type HandleEvent expects.
func WithLambdaPayloadType(payloadType string) Option {
	return func(r *Runtime) {
		r.payloadType = payloadType
	}
}

// WithRuns serves run records from runs.
func WithRuns(runs RunSource) Option {
	return func(r *Runtime) {
		r.runs = runs
	}
}

// WithPayloads serves stored payloads from store.
func WithPayloads(store payload.Store) Option {
	return func(r *Runtime) {
		r.payloads = store
	}
}

type Runtime struct {
	*handler.Handler
	logger      *slog.Logger
	path        string
	payloadType string
	runs        RunSource
	payloads    payload.Store
	router      chi.Router
}

// NewRuntime creates a new runtime instance
func NewRuntime(handler *handler.Handler, opts ...Option) *Runtime {
	_inst := &Runtime{Handler: handler, path: "/", payloadType: PayloadAPIGatewayV2}
	for _, opt := range opts {
		opt(_inst)
	}
	if _inst.logger == nil {
		_inst.logger = helpers.NewNoopLogger()
	}
	_inst.router = _inst.newRouter()
	return _inst
}

func (r *Runtime) newRouter() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(r.loggingMiddleware)
	router.Use(middleware.Recoverer)

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	if r.runs != nil {
		router.Get("/runs/{"+payload.RunIDParam+"}", r.serveRun)
	}
	if r.payloads != nil {
		router.Method(http.MethodGet, "/runs/{"+payload.RunIDParam+"}/payload", payload.NewHandler(r.payloads, r.logger))
	}
	router.Post(r.path, r.serveWebhook)
	router.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		r.logger.Debug("rejecting HTTP request...", slog.Any("requestor", req.RemoteAddr), "reason", "method not allowed", slog.Any("method", req.Method))
		helpers.RespondHTTP(models.Response{StatusCode: http.StatusMethodNotAllowed}, nil, w)
	})
	return router
}

// ServeHTTP is the HTTP handler for the runtime
func (r *Runtime) ServeHTTP(resp http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(resp, req)
}

func (r *Runtime) serveWebhook(resp http.ResponseWriter, req *http.Request) {
	r.logger.Debug("received HTTP request...", slog.Any("requestor", req.RemoteAddr), slog.Any("method", req.Method), slog.Any("path", req.URL.Path))
	headers := make(map[string]string)
	for k, v := range req.Header {
		headers[strings.ToLower(k)] = v[0]
	}

	body, err := io.ReadAll(http.MaxBytesReader(resp, req.Body, MaxBodyBytes))
	if err != nil {
		r.logger.Error("failed to read request body", slog.Any("error", err))
		helpers.RespondHTTP(models.Response{StatusCode: http.StatusBadRequest}, err, resp)
		return
	}
	result, err := r.Handler.Process(req.Context(), body, headers)
	helpers.RespondHTTP(result, err, resp)
}

func (r *Runtime) serveRun(resp http.ResponseWriter, req *http.Request) {
	run, ok := r.runs.Get(chi.URLParam(req, payload.RunIDParam))
	if !ok {
		http.NotFound(resp, req)
		return
	}
	resp.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(resp).Encode(run); err != nil {
		r.logger.Warn("failed to encode run", slog.Any("error", err))
	}
}

func (r *Runtime) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
		defer func() {
			r.logger.Info("HTTP request",
				slog.String("method", req.Method),
				slog.String("path", req.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Int64("durationMs", time.Since(start).Milliseconds()),
				slog.String("requestId", middleware.GetReqID(req.Context())))
		}()
		next.ServeHTTP(ww, req)
	})
}

// HandleEvent is the Lambda handler for HTTP-fronted deployments.
// The request and response shapes follow the configured payload type.
func (r *Runtime) HandleEvent(ctx context.Context, raw json.RawMessage) (response any, err error) {
	r.logger.Info("received Lambda request", slog.String("payloadType", r.payloadType))

	var req models.Request
	switch r.payloadType {
	case PayloadAPIGatewayV1:
		var e events.APIGatewayProxyRequest
		err = json.Unmarshal(raw, &e)
		req = models.Request{Body: e.Body, Headers: e.Headers, IsBase64Encoded: e.IsBase64Encoded}
	case PayloadAPIGatewayV2:
		var e events.APIGatewayV2HTTPRequest
		err = json.Unmarshal(raw, &e)
		req = models.Request{Body: e.Body, Headers: e.Headers, IsBase64Encoded: e.IsBase64Encoded}
	case PayloadLambdaURL:
		var e events.LambdaFunctionURLRequest
		err = json.Unmarshal(raw, &e)
		req = models.Request{Body: e.Body, Headers: e.Headers, IsBase64Encoded: e.IsBase64Encoded}
	default:
		return nil, errors.Errorf("unsupported lambda payload type: %s", r.payloadType)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s request", r.payloadType)
	}

	result, err := r.process(ctx, req)
	switch r.payloadType {
	case PayloadAPIGatewayV1:
		return events.APIGatewayProxyResponse{Body: result.Body, StatusCode: result.StatusCode, Headers: result.Headers}, err
	case PayloadAPIGatewayV2:
		return events.APIGatewayV2HTTPResponse{Body: result.Body, StatusCode: result.StatusCode, Headers: result.Headers}, err
	default:
		return events.LambdaFunctionURLResponse{Body: result.Body, StatusCode: result.StatusCode, Headers: result.Headers}, err
	}
}

func (r *Runtime) process(ctx context.Context, req models.Request) (models.Response, error) {
	// Lower-case incoming headers for compatibility purposes
	lch := make(map[string]string, len(req.Headers))
	for k, v := range req.Headers {
		lch[strings.ToLower(k)] = v
	}
	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return models.Response{Body: "invalid base64 body", StatusCode: http.StatusBadRequest}, errors.Wrap(err, "failed to decode body")
		}
		body = decoded
	}
	return r.Handler.Process(ctx, body, lch)
}

// HandleEventBridge is the Lambda handler for push events delivered through EventBridge.
// The event detail is the push payload.
func (r *Runtime) HandleEventBridge(ctx context.Context, event models.Event) error {
	logger := r.logger.With(slog.String("eventId", event.ID), slog.String("detailType", event.DetailType))
	if event.DetailType != "" && event.DetailType != tagpush.EventType {
		logger.Info("ignoring EventBridge event of another type")
		return nil
	}
	if len(event.Detail) == 0 {
		logger.Warn("ignoring EventBridge event without detail")
		return nil
	}
	logger.Info("received EventBridge event")
	r.Handler.Handle(ctx, event.ID, event.Detail)
	return nil
}


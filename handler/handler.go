package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"support-agent/internal/domain"
	"support-agent/internal/logging"
	"support-agent/internal/usecase"
)

const (
	correlationHeader = "X-Correlation-Id"
	apiPrefix         = "/api"
	maxBodyBytes      = 64 << 10
)

type ChatUseCase interface {
	Chat(ctx context.Context, in usecase.ChatInput) (usecase.ChatOutput, error)
	History(ctx context.Context, sessionID string) ([]domain.Turn, error)
}

type FeedbackUseCase interface {
	RecordFeedback(ctx context.Context, in usecase.FeedbackInput) (usecase.FeedbackOutput, error)
}

type KnowledgeUseCase interface {
	GetSection(ctx context.Context, key string) (domain.ConfigSection, error)
}

type StatsUseCase interface {
	ComputeStats(ctx context.Context) (domain.Stats, error)
}

type StatusUseCase interface {
	Create(ctx context.Context, clientName string) (domain.StatusCheck, error)
	List(ctx context.Context) ([]domain.StatusCheck, error)
}

// Services groups the use cases the handler routes to.
type Services struct {
	Chat      ChatUseCase
	Feedback  FeedbackUseCase
	Knowledge KnowledgeUseCase
	Stats     StatsUseCase
	Status    StatusUseCase
}

type Handler struct {
	svc            Services
	allowedOrigins []string
}

type Option func(*Handler)

// WithAllowedOrigins sets the CORS origins. "*" allows any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(h *Handler) {
		h.allowedOrigins = nil
		for _, o := range origins {
			if o = strings.TrimSpace(o); o != "" {
				h.allowedOrigins = append(h.allowedOrigins, o)
			}
		}
	}
}

func NewHandler(svc Services, opts ...Option) (*Handler, error) {
	switch {
	case svc.Chat == nil:
		return nil, errors.New("handler: chat use case must not be nil")
	case svc.Feedback == nil:
		return nil, errors.New("handler: feedback use case must not be nil")
	case svc.Knowledge == nil:
		return nil, errors.New("handler: knowledge use case must not be nil")
	case svc.Stats == nil:
		return nil, errors.New("handler: stats use case must not be nil")
	case svc.Status == nil:
		return nil, errors.New("handler: status use case must not be nil")
	}
	h := &Handler{svc: svc, allowedOrigins: []string{"*"}}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

type request struct {
	method   string
	segments []string
	body     []byte
}

// Handle routes an API Gateway proxy event. Routes may carry an "/api"
// prefix.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := headerValue(event.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	ctx = logging.WithCorrelationID(ctx, correlationID)
	log := logging.FromContext(ctx)

	resp := h.route(ctx, log, event)
	if resp.Headers == nil {
		resp.Headers = map[string]string{}
	}
	resp.Headers[correlationHeader] = correlationID
	h.applyCORS(resp.Headers, headerValue(event.Headers, "Origin"))

	log.Info("request handled", "method", event.HTTPMethod, "path", event.Path, "status", resp.StatusCode)
	return resp, nil
}

func (h *Handler) route(ctx context.Context, log *slog.Logger, event events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	method := strings.ToUpper(event.HTTPMethod)
	if method == http.MethodOptions {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusNoContent, Headers: map[string]string{}}
	}

	body, err := decodeBody(event)
	if err != nil {
		return errorJSON(http.StatusBadRequest, usecase.ErrorInvalidInput, "request body is not valid base64")
	}
	req := request{method: method, segments: splitPath(event.Path), body: body}

	switch {
	case len(req.segments) == 0:
		return h.only(req, http.MethodGet, func() events.APIGatewayProxyResponse {
			return writeJSON(http.StatusOK, messageResponse{Message: "Hello World"})
		})
	case req.is("chat"):
		return h.only(req, http.MethodPost, func() events.APIGatewayProxyResponse { return h.chat(ctx, req) })
	case req.is("feedback"):
		return h.only(req, http.MethodPost, func() events.APIGatewayProxyResponse { return h.feedback(ctx, log, req) })
	case len(req.segments) == 2 && req.segments[0] == "history":
		return h.only(req, http.MethodGet, func() events.APIGatewayProxyResponse { return h.history(ctx, log, req.segments[1]) })
	case req.is("stats"):
		return h.only(req, http.MethodGet, func() events.APIGatewayProxyResponse { return h.stats(ctx, log) })
	case req.is("config"):
		return h.only(req, http.MethodGet, func() events.APIGatewayProxyResponse { return h.section(ctx, log, domain.MainSectionKey) })
	case len(req.segments) == 2 && req.segments[0] == "config":
		return h.only(req, http.MethodGet, func() events.APIGatewayProxyResponse { return h.section(ctx, log, req.segments[1]) })
	case req.is("status"):
		switch req.method {
		case http.MethodPost:
			return h.createStatus(ctx, req)
		case http.MethodGet:
			return h.listStatus(ctx)
		}
		return methodNotAllowed(http.MethodGet, http.MethodPost)
	}
	return errorJSON(http.StatusNotFound, usecase.ErrorNotFound, "route not found")
}

func (r request) is(name string) bool {
	return len(r.segments) == 1 && r.segments[0] == name
}

func (h *Handler) only(req request, method string, fn func() events.APIGatewayProxyResponse) events.APIGatewayProxyResponse {
	if req.method != method {
		return methodNotAllowed(method)
	}
	return fn()
}

func (h *Handler) chat(ctx context.Context, req request) events.APIGatewayProxyResponse {
	var in chatRequest
	if err := decodeJSON(req.body, &in); err != nil {
		return errorJSON(http.StatusBadRequest, usecase.ErrorInvalidInput, "invalid request body")
	}
	out, err := h.svc.Chat.Chat(ctx, usecase.ChatInput{Message: in.Message, SessionID: in.SessionID})
	if err != nil {
		return mapError(err)
	}
	return writeJSON(http.StatusOK, chatResponse{Response: out.Response, SessionID: out.SessionID, TurnID: out.TurnID})
}

func (h *Handler) feedback(ctx context.Context, log *slog.Logger, req request) events.APIGatewayProxyResponse {
	var in feedbackRequest
	if err := decodeJSON(req.body, &in); err != nil {
		return errorJSON(http.StatusBadRequest, usecase.ErrorInvalidInput, "invalid request body")
	}
	if in.Helpful == nil {
		return errorJSON(http.StatusBadRequest, usecase.ErrorInvalidInput, "helpful is required")
	}
	_, err := h.svc.Feedback.RecordFeedback(ctx, usecase.FeedbackInput{
		SessionID:     in.SessionID,
		TurnID:        in.TurnID,
		Helpful:       *in.Helpful,
		NeedsMoreInfo: in.NeedsMoreInfo,
	})
	var ucErr *usecase.Error
	switch {
	case err == nil:
		return writeJSON(http.StatusOK, feedbackResponse{Status: "success", Message: "Feedback recorded"})
	case errors.As(err, &ucErr) && ucErr.Code == usecase.ErrorStorage:
		log.Error("feedback write failed", "session_id", in.SessionID, "err", err)
		return writeJSON(http.StatusOK, feedbackResponse{Status: "error", Message: "Failed to record feedback"})
	default:
		return mapError(err)
	}
}

// history degrades to an empty list when storage is unavailable.
func (h *Handler) history(ctx context.Context, log *slog.Logger, sessionID string) events.APIGatewayProxyResponse {
	turns, err := h.svc.Chat.History(ctx, sessionID)
	if err != nil {
		var ucErr *usecase.Error
		if !errors.As(err, &ucErr) || ucErr.Code != usecase.ErrorStorage {
			return mapError(err)
		}
		log.Error("history read failed", "session_id", sessionID, "err", err)
		turns = nil
	}
	return writeJSON(http.StatusOK, historyResponse{SessionID: sessionID, Messages: toTurnDTOs(turns)})
}

// stats degrades to zero counts when storage is unavailable.
func (h *Handler) stats(ctx context.Context, log *slog.Logger) events.APIGatewayProxyResponse {
	s, err := h.svc.Stats.ComputeStats(ctx)
	if err != nil {
		log.Error("stats read failed", "err", err)
		s = domain.Stats{}
	}
	return writeJSON(http.StatusOK, toStatsResponse(s))
}

// section reports storage failures as not found; config lookups are advisory.
func (h *Handler) section(ctx context.Context, log *slog.Logger, key string) events.APIGatewayProxyResponse {
	s, err := h.svc.Knowledge.GetSection(ctx, key)
	if err != nil {
		var ucErr *usecase.Error
		if errors.As(err, &ucErr) && ucErr.Code == usecase.ErrorStorage {
			log.Error("config read failed", "section", key, "err", err)
		}
		return writeJSON(http.StatusNotFound, notFoundResponse{
			Error:      string(usecase.ErrorNotFound),
			Message:    "Section not found",
			SectionKey: key,
		})
	}
	return writeJSON(http.StatusOK, toSectionResponse(s))
}

func (h *Handler) createStatus(ctx context.Context, req request) events.APIGatewayProxyResponse {
	var in statusRequest
	if err := decodeJSON(req.body, &in); err != nil {
		return errorJSON(http.StatusBadRequest, usecase.ErrorInvalidInput, "invalid request body")
	}
	check, err := h.svc.Status.Create(ctx, in.ClientName)
	if err != nil {
		return mapError(err)
	}
	return writeJSON(http.StatusOK, toStatusResponse(check))
}

func (h *Handler) listStatus(ctx context.Context) events.APIGatewayProxyResponse {
	checks, err := h.svc.Status.List(ctx)
	if err != nil {
		return mapError(err)
	}
	out := make([]statusResponse, 0, len(checks))
	for _, c := range checks {
		out = append(out, toStatusResponse(c))
	}
	return writeJSON(http.StatusOK, out)
}

func (h *Handler) applyCORS(headers map[string]string, origin string) {
	allowed := ""
	for _, o := range h.allowedOrigins {
		if o == "*" {
			allowed = "*"
			break
		}
		if origin != "" && o == origin {
			allowed = origin
		}
	}
	if allowed == "" {
		return
	}
	headers["Access-Control-Allow-Origin"] = allowed
	headers["Access-Control-Allow-Methods"] = "GET,POST,OPTIONS"
	headers["Access-Control-Allow-Headers"] = "Content-Type," + correlationHeader
	if allowed != "*" {
		headers["Access-Control-Allow-Credentials"] = "true"
		headers["Vary"] = "Origin"
	}
}

func mapError(err error) events.APIGatewayProxyResponse {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		return errorJSON(http.StatusInternalServerError, usecase.ErrorInternal, "internal error")
	}
	switch ucErr.Code {
	case usecase.ErrorInvalidInput:
		return errorJSON(http.StatusBadRequest, ucErr.Code, ucErr.Reason)
	case usecase.ErrorNotFound:
		return errorJSON(http.StatusNotFound, ucErr.Code, ucErr.Reason)
	case usecase.ErrorStorage:
		return errorJSON(http.StatusServiceUnavailable, ucErr.Code, ucErr.Reason)
	case usecase.ErrorUpstream:
		return errorJSON(http.StatusBadGateway, ucErr.Code, ucErr.Reason)
	default:
		return errorJSON(http.StatusInternalServerError, usecase.ErrorInternal, ucErr.Reason)
	}
}

func methodNotAllowed(allowed ...string) events.APIGatewayProxyResponse {
	resp := errorJSON(http.StatusMethodNotAllowed, usecase.ErrorInvalidInput, "method not allowed")
	resp.Headers["Allow"] = strings.Join(allowed, ", ")
	return resp
}

func errorJSON(status int, code usecase.ErrorCode, message string) events.APIGatewayProxyResponse {
	return writeJSON(status, errorResponse{Error: string(code), Message: message})
}

func writeJSON(status int, v any) events.APIGatewayProxyResponse {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":"INTERNAL_ERROR","message":"encode response"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}
}

func decodeBody(event events.APIGatewayProxyRequest) ([]byte, error) {
	if !event.IsBase64Encoded {
		return []byte(event.Body), nil
	}
	return base64.StdEncoding.DecodeString(event.Body)
}

func decodeJSON(body []byte, v any) error {
	if len(body) == 0 {
		return errors.New("empty body")
	}
	if len(body) > maxBodyBytes {
		return errors.New("body too large")
	}
	return json.Unmarshal(body, v)
}

// splitPath trims the optional "/api" prefix and returns the path segments.
func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == strings.TrimPrefix(apiPrefix, "/") {
		path = ""
	} else {
		path = strings.TrimPrefix(path, strings.TrimPrefix(apiPrefix, "/")+"/")
	}
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// headerValue looks a header up case-insensitively.
func headerValue(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return strings.TrimSpace(v)
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

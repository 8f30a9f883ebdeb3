package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"rag-chat/internal/domain"
	"rag-chat/internal/usecase"
)

const (
	chatPath          = "/chat"
	correlationHeader = "X-Correlation-Id"
	maxBodyBytes      = 256 * 1024
)

// UseCase is the chat operation served over HTTP.
type UseCase interface {
	Ask(ctx context.Context, in usecase.AskInput) (usecase.AskOutput, error)
}

type askRequest struct {
	Message   string        `json:"message"`
	SessionID string        `json:"sessionId,omitempty"`
	History   []domain.Turn `json:"history,omitempty"`
}

type askResponse struct {
	Answer    string            `json:"answer"`
	SessionID string            `json:"sessionId"`
	Citations []domain.Citation `json:"citations,omitempty"`
	History   []domain.Turn     `json:"history"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// Handler serves the web chat endpoint behind API Gateway. The browser keeps
// the conversation and posts it back with every message.
type Handler struct {
	uc     UseCase
	logger *slog.Logger
}

// NewHandler creates a Handler. A nil logger falls back to slog.Default.
func NewHandler(uc UseCase, logger *slog.Logger) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: use case must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{uc: uc, logger: logger}, nil
}

func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	corrID := headerValue(req.Headers, correlationHeader)
	if corrID == "" {
		corrID = uuid.NewString()
	}
	log := h.logger.With("correlation_id", corrID)

	if req.Path != "" && strings.TrimRight(req.Path, "/") != chatPath {
		return jsonResponse(http.StatusNotFound, corrID, errorResponse{Error: "NOT_FOUND"}), nil
	}
	if req.HTTPMethod != http.MethodPost {
		return jsonResponse(http.StatusMethodNotAllowed, corrID, errorResponse{Error: "METHOD_NOT_ALLOWED"}), nil
	}
	if len(req.Body) > maxBodyBytes {
		return jsonResponse(http.StatusBadRequest, corrID, errorResponse{Error: string(usecase.ErrorInvalidInput), Message: "body_too_large"}), nil
	}

	var in askRequest
	if err := json.Unmarshal([]byte(req.Body), &in); err != nil {
		log.Info("invalid request body", "err", err)
		return jsonResponse(http.StatusBadRequest, corrID, errorResponse{Error: string(usecase.ErrorInvalidInput), Message: "invalid_body"}), nil
	}

	out, err := h.uc.Ask(ctx, usecase.AskInput{
		Message:   in.Message,
		SessionID: in.SessionID,
		History:   in.History,
	})
	if err != nil {
		status, body := errorToResponse(err)
		if status >= http.StatusInternalServerError {
			log.Error("chat request failed", "status", status, "err", err)
		} else {
			log.Info("chat request rejected", "status", status, "err", err)
		}
		return jsonResponse(status, corrID, body), nil
	}

	log.Info("chat request served", "session_id", out.SessionID, "history_len", len(out.History))
	return jsonResponse(http.StatusOK, corrID, askResponse{
		Answer:    out.Answer,
		SessionID: out.SessionID,
		Citations: out.Citations,
		History:   out.History,
	}), nil
}

func errorToResponse(err error) (int, errorResponse) {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		return http.StatusInternalServerError, errorResponse{Error: string(usecase.ErrorInternal)}
	}
	body := errorResponse{Error: string(ucErr.Code), Message: ucErr.Reason}
	switch ucErr.Code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest, body
	case usecase.ErrorRateLimited:
		return http.StatusTooManyRequests, body
	case usecase.ErrorUpstream:
		return http.StatusBadGateway, body
	default:
		return http.StatusInternalServerError, errorResponse{Error: string(usecase.ErrorInternal), Message: ucErr.Reason}
	}
}

func headerValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func jsonResponse(status int, corrID string, body any) events.APIGatewayProxyResponse {
	buf, err := json.Marshal(body)
	if err != nil {
		status = http.StatusInternalServerError
		buf = []byte(`{"error":"INTERNAL_ERROR"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: corrID,
		},
		Body: string(buf),
	}
}

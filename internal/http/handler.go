package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/josinaldojr/multimodal-rag/internal/llm"
	"github.com/josinaldojr/multimodal-rag/internal/middleware"
	"github.com/josinaldojr/multimodal-rag/internal/rag"
)

type RAGService interface {
	Ask(ctx context.Context, req rag.AskRequest) (*rag.AskResponse, error)
	GenerateQuestions(ctx context.Context, text string) ([]rag.QAPair, error)
}

var _ RAGService = (*rag.Service)(nil)

type Handler struct {
	ragService RAGService
	timeout    time.Duration
	logger     *slog.Logger
}

func NewHandler(ragService RAGService, timeout time.Duration, logger *slog.Logger) *Handler {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{ragService: ragService, timeout: timeout, logger: logger}
}

type QuestionsRequest struct {
	Context string `json:"context"`
}

type QuestionsResponse struct {
	Pairs []rag.QAPair `json:"pairs"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	var req rag.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, errors.New("invalid json body"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	resp, err := h.ragService.Ask(ctx, req)
	if err != nil {
		h.writeError(w, r, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Questions(w http.ResponseWriter, r *http.Request) {
	var req QuestionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, errors.New("invalid json body"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	pairs, err := h.ragService.GenerateQuestions(ctx, req.Context)
	if err != nil {
		h.writeError(w, r, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusOK, QuestionsResponse{Pairs: pairs})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, rag.ErrEmptyQuestion), errors.Is(err, rag.ErrEmptyContext):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, rag.ErrEmbeddingFailed),
		errors.Is(err, rag.ErrNoQuestions),
		errors.Is(err, llm.ErrTransport),
		errors.Is(err, llm.ErrMalformedResponse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			slog.String("path", r.URL.Path),
			slog.String("request_id", middleware.RequestIDFrom(r.Context())),
			slog.String("error", err.Error()))
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

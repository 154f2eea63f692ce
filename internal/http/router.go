package http

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/josinaldojr/multimodal-rag/internal/middleware"
)

type RouterDeps struct {
	Handler     *Handler
	Logger      *slog.Logger
	CORSOrigins []string
}

func NewRouter(deps RouterDeps) http.Handler {
	r := mux.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recover(deps.Logger))
	r.Use(middleware.Logging(deps.Logger))

	r.HandleFunc("/health", deps.Handler.Health).Methods(http.MethodGet)
	r.HandleFunc("/ask", deps.Handler.Ask).Methods(http.MethodPost)
	r.HandleFunc("/questions", deps.Handler.Questions).Methods(http.MethodPost)

	// CORS wraps the router so preflight requests, which match no route,
	// are answered too.
	return middleware.CORS(deps.CORSOrigins)(r)
}

package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"fx-screener/internal/util"
)

// NewRouter wires every route of the screener API.
func NewRouter(screener *ScreenerHandler, tokens *TokenHandler, ws http.Handler, metrics http.Handler, logger zerolog.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(loggingMiddleware(logger))

	router.HandleFunc("/", screener.Dashboard).Methods(http.MethodGet)
	router.HandleFunc("/healthz", screener.Healthz).Methods(http.MethodGet)
	router.Handle("/metrics", metrics).Methods(http.MethodGet)
	router.Handle("/ws", ws)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/opportunities", screener.GetOpportunities).Methods(http.MethodGet)
	api.HandleFunc("/report", screener.GetReport).Methods(http.MethodGet)
	api.HandleFunc("/scan", screener.TriggerScan).Methods(http.MethodPost)
	api.HandleFunc("/autopsy", screener.GetAutopsy).Methods(http.MethodGet)
	api.HandleFunc("/thresholds", screener.GetThresholds).Methods(http.MethodGet)
	api.HandleFunc("/thresholds", screener.PutThresholds).Methods(http.MethodPut)
	api.HandleFunc("/export/{format}", screener.Export).Methods(http.MethodGet)

	api.HandleFunc("/tokens/register", tokens.HandleRegisterToken).Methods(http.MethodPost)
	api.HandleFunc("/tokens/unregister", tokens.HandleUnregisterToken).Methods(http.MethodPost)
	api.HandleFunc("/tokens/count", tokens.HandleGetTokenCount).Methods(http.MethodGet)
	api.HandleFunc("/tokens/test", tokens.SendTestNotification).Methods(http.MethodPost)

	return router
}

func loggingMiddleware(logger zerolog.Logger) mux.MiddlewareFunc {
	logger = util.Component(logger, "http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Dur("took", time.Since(start)).
				Msg("Request served")
		})
	}
}

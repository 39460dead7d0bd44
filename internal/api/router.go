package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"wmbench/internal/watermarking"
)

// requestLogger logs each request at debug level.
func requestLogger(log logrus.FieldLogger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.WithFields(logrus.Fields{
				"method": r.Method,
				"path":   r.URL.Path,
			}).Debug("request")
			next.ServeHTTP(w, r)
		})
	}
}

// NewRouter creates the provider API router serving the watermarkers in set.
func NewRouter(set *watermarking.Set, log logrus.FieldLogger) *mux.Router {
	router := mux.NewRouter()
	router.Use(requestLogger(log))

	// Create a subrouter for API versioning
	apiV1 := router.PathPrefix("/api/v1").Subrouter()

	h := NewHandlers(set, log)

	apiV1.HandleFunc("/watermarks/algorithms", h.HandleWatermarkAlgorithmListing).Methods(http.MethodGet)
	apiV1.HandleFunc("/watermarks/embed", h.HandleEmbedWatermark).Methods(http.MethodPost)
	apiV1.HandleFunc("/watermarks/detect", h.HandleDetectWatermark).Methods(http.MethodPost)

	// Add a simple health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	return router
}

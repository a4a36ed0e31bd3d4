package registrysvc

import (
	"net/http"
	"strconv"
	"time"
)

// metricsMiddleware records RequestsTotal/RequestDuration for every request
// served by the registry's HTTP surface.
func (s *Service) metricsMiddleware(next http.Handler) http.Handler {
	if s.metrics == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		s.metrics.RequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
		s.metrics.RequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(wrapped.statusCode)).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// timeStoreOp observes the duration of fn on StoreOpDuration, labelled by
// op; fn may make one store call or many (the cleanup scan passes its whole
// pass).
func (s *Service) timeStoreOp(op string, fn func() error) error {
	if s.metrics == nil {
		return fn()
	}
	start := time.Now()
	err := fn()
	s.metrics.StoreOpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	return err
}

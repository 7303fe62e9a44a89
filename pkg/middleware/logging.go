package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bytebyteboot/payment-gateway/pkg/logger"
)

type ctxRequestID string

const requestIDKey ctxRequestID = "requestID"

type Logging struct {
	log *zap.SugaredLogger
}

func NewLoggingMiddleware(l *zap.SugaredLogger) *Logging {
	return &Logging{
		log: l,
	}
}

// SetupTracing assigns every request an id, taken from the
// X-Request-ID header when the caller sent one.
func (lm *Logging) SetupTracing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.New().String()
		}
		ctx := context.WithValue(r.Context(), requestIDKey, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SetupLogging puts a request-scoped logger into the context so
// handlers can use logger.Log(r.Context()).
func (lm *Logging) SetupLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqLog := lm.log
		if reqID, ok := r.Context().Value(requestIDKey).(string); ok {
			reqLog = reqLog.With("request_id", reqID)
		}
		ctx := logger.WithLogger(r.Context(), reqLog)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (lm *Logging) AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Log(r.Context()).Infow("request handled",
			"method", r.Method,
			"url", r.URL.Path,
			"remote", r.RemoteAddr,
			"took", time.Since(start),
		)
	})
}

// Package middleware wraps the triage API. A correlation ID follows each
// submission into the encounter events and the worker; API keys identify the
// calling ward or kiosk; every request is logged, traced and counted by route
// pattern with the patient code it touched.
package middleware

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey int

const (
	correlationKey contextKey = iota
	clientKey
	scopeKey
)

// requestScope is shared with middleware further down the chain so values
// they resolve are visible to Logger once the handler returns
type requestScope struct {
	clientID string
}

// Headers accepted for an incoming correlation ID, in order of preference.
// Both are echoed on the response.
const (
	HeaderCorrelationID = "X-Correlation-ID"
	HeaderRequestID     = "X-Request-ID"
)

// maxCorrelationLen bounds client supplied IDs before they reach logs and events
const maxCorrelationLen = 128

// Correlation assigns every request a correlation ID. A well-formed ID sent
// by the client is kept so kiosk retries can be traced end to end; anything
// else is replaced by a fresh one.
func Correlation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderCorrelationID)
		if id == "" {
			id = r.Header.Get(HeaderRequestID)
		}
		if !validCorrelationID(id) {
			id = uuid.New().String()
		}

		w.Header().Set(HeaderCorrelationID, id)
		w.Header().Set(HeaderRequestID, id)
		ctx := context.WithValue(r.Context(), correlationKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func validCorrelationID(id string) bool {
	if id == "" || len(id) > maxCorrelationLen {
		return false
	}
	for _, c := range id {
		ok := c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' ||
			c == '-' || c == '_' || c == '.' || c == ':'
		if !ok {
			return false
		}
	}
	return true
}

// CorrelationID returns the request's correlation ID, "" outside a request
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey).(string)
	return id
}

// APIKeyAuth admits requests carrying one of keys, mapped to the calling
// client (a ward, kiosk or integration). Keys are compared in constant time.
func APIKeyAuth(keys map[string]string) func(http.Handler) http.Handler {
	type credential struct {
		key    []byte
		client string
	}
	creds := make([]credential, 0, len(keys))
	for k, client := range keys {
		creds = append(creds, credential{[]byte(k), client})
	}

	lookup := func(presented string) (string, bool) {
		client, found := "", false
		for _, c := range creds {
			if subtle.ConstantTimeCompare(c.key, []byte(presented)) == 1 {
				client, found = c.client, true
			}
		}
		return client, found
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			}
			if key == "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="triage"`)
				writeError(w, http.StatusUnauthorized, "missing API key")
				return
			}

			client, ok := lookup(key)
			if !ok {
				writeError(w, http.StatusUnauthorized, "invalid API key")
				return
			}

			trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("triage.client_id", client))
			if scope, ok := r.Context().Value(scopeKey).(*requestScope); ok {
				scope.clientID = client
			}
			ctx := context.WithValue(r.Context(), clientKey, client)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientID returns the authenticated client, "" before APIKeyAuth
func ClientID(ctx context.Context) string {
	id, _ := ctx.Value(clientKey).(string)
	return id
}

// Recover turns a panic in a handler into a 500 and logs it with the stack
func Recover(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if v := recover(); v != nil {
					if v == http.ErrAbortHandler {
						panic(v)
					}
					logger.Error("panic recovered",
						zap.Any("panic", v),
						zap.String("path", r.URL.Path),
						zap.String("correlation_id", CorrelationID(r.Context())),
						zap.Stack("stack"),
					)
					trace.SpanFromContext(r.Context()).AddEvent("panic recovered")
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// CORS lets browser dashboards call the API
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		h.Set("Access-Control-Allow-Headers", strings.Join([]string{
			"Content-Type", "Authorization", "X-API-Key", HeaderCorrelationID, HeaderRequestID,
		}, ", "))
		h.Set("Access-Control-Expose-Headers", HeaderCorrelationID+", "+HeaderRequestID)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

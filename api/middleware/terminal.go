package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/tablewire/pos-engine/pkg/logger"
)

const terminalIDHeader = "X-Terminal-Id"

type terminalIDKey struct{}

// TerminalContext tags the request with the sending terminal. Terminals
// identify themselves on every call; requests without the header still pass,
// they just log without attribution.
func TerminalContext(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			terminalID := strings.TrimSpace(r.Header.Get(terminalIDHeader))
			if terminalID == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), terminalIDKey{}, terminalID)
			if logg != nil {
				ctx = logg.WithTerminalID(ctx, terminalID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TerminalIDFromContext returns the terminal id set by TerminalContext.
func TerminalIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(terminalIDKey{}).(string); ok {
		return id
	}
	return ""
}

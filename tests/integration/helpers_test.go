package integration

import (
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/carscout-ai/carscout/internal/middleware"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func stringsReader(s string) *strings.Reader {
	return strings.NewReader(s)
}

func withCallerID(r *http.Request, callerID string) *http.Request {
	return r.WithContext(middleware.WithCallerID(r.Context(), callerID))
}

package http

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Fabiobarsil/caixa-claro-financeiro-sub001/internal/core"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// parseProjectionParams extracts the anchor month and window size from query
// parameters, defaulting to the current month and defaultMonths.
func parseProjectionParams(r *http.Request, defaultMonths int) (anchor string, months int) {
	anchor = core.MonthKey(time.Now())
	months = defaultMonths

	if v := strings.TrimSpace(r.URL.Query().Get("anchor")); v != "" {
		anchor = v
	}
	if v := strings.TrimSpace(r.URL.Query().Get("months")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			months = n
		}
	}

	return anchor, months
}

// parseIDParam reads the {id} path segment as a positive int64.
func parseIDParam(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

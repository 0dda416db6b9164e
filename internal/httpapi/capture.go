package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"credvault.org/internal/audit"
	"credvault.org/internal/ids"
	"credvault.org/internal/obs"
)

const (
	maxCapturedPayload = 8 << 10
	maxCapturedBody    = 8 << 10
)

// requestInfo is shared mutably through the context so the authentication
// layer, which runs inside the capture, can attribute the entry to a user.
type requestInfo struct {
	userID string
}

type infoKey struct{}

func infoFrom(ctx context.Context) (*requestInfo, bool) {
	info, ok := ctx.Value(infoKey{}).(*requestInfo)
	return info, ok
}

// bufferedWriter holds the full response until the audit row is persisted.
type bufferedWriter struct {
	header http.Header
	body   bytes.Buffer
	code   int
}

func newBufferedWriter() *bufferedWriter {
	return &bufferedWriter{header: http.Header{}, code: http.StatusOK}
}

func (b *bufferedWriter) Header() http.Header { return b.header }

func (b *bufferedWriter) WriteHeader(code int) { b.code = code }

func (b *bufferedWriter) Write(p []byte) (int, error) { return b.body.Write(p) }

// capture guarantees one audit row per API request, written before the
// response reaches the client. When the audit write fails the buffered
// response is discarded and the request fails; the failure is counted.
func (a *API) capture(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/") {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		payload := readPayload(r)
		info := &requestInfo{}
		r = r.WithContext(context.WithValue(r.Context(), infoKey{}, info))

		buf := newBufferedWriter()
		next.ServeHTTP(buf, r)

		entry := audit.Entry{
			ID:              ids.New(),
			APIEndpoint:     r.URL.Path,
			HTTPMethod:      r.Method,
			RequestPayload:  payload,
			Response:        truncate(buf.body.String(), maxCapturedBody),
			ResponseMessage: extractMessage(buf.body.Bytes()),
			ResponseStatus:  buf.code,
			UserAgent:       r.UserAgent(),
			IPAddress:       clientIP(r),
			ExecutionMillis: float64(time.Since(start).Microseconds()) / 1000,
		}
		if info.userID != "" {
			entry.UserID = &info.userID
		}

		if err := a.trail.Append(r.Context(), entry); err != nil {
			obs.AuditWriteFailed()
			obs.Log(map[string]any{
				"event":    "audit_write_failed",
				"endpoint": entry.APIEndpoint,
				"error":    err.Error(),
			})
			respondError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}

		for k, vals := range buf.header {
			for _, v := range vals {
				w.Header().Add(k, v)
			}
		}
		w.WriteHeader(buf.code)
		_, _ = w.Write(buf.body.Bytes())
	})
}

func readPayload(r *http.Request) string {
	if r.Body == nil {
		return ""
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxCapturedPayload))
	if err != nil {
		return ""
	}
	rest, _ := io.ReadAll(r.Body)
	r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(data), bytes.NewReader(rest)))
	return string(data)
}

func extractMessage(body []byte) string {
	var env struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return ""
	}
	return env.Message
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}

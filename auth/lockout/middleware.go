package lockout

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aras-services/svccore/errors"
)

// Middleware returns HTTP middleware that automatically enforces login
// lockout on the routes it wraps. It buffers a JSON request body to
// extract identityField, checks the lockout state before the request
// reaches the handler, and records a failure or success based on the
// handler's response status.
//
// If the request is not JSON, or the identity field is absent or not a
// string, the request passes through unenforced: lockout only protects
// routes it can attribute to an identity.
func Middleware(svc *Service, identityField string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.Contains(r.Header.Get("Content-Type"), "application/json") {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
			if err != nil {
				errors.WriteError(w, errors.BadRequestf("failed to read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			identity, ok := extractIdentity(body, identityField)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			status, err := svc.Check(r.Context(), identity)
			if err != nil {
				errors.WriteError(w, errors.Internalf(err, "lockout check failed"))
				return
			}
			if status.Locked {
				writeLocked(w, status.LockoutRemainingSecs)
				return
			}

			rec := newBufferedResponse()
			next.ServeHTTP(rec, r)

			switch {
			case rec.status == http.StatusUnauthorized:
				status, err := svc.RecordFailure(r.Context(), identity)
				if err == nil && status.DelayMs > 0 {
					time.Sleep(time.Duration(status.DelayMs) * time.Millisecond)
				}
			case rec.status >= 200 && rec.status < 300:
				_ = svc.RecordSuccess(r.Context(), identity)
			}

			rec.flush(w)
		})
	}
}

func extractIdentity(body []byte, field string) (string, bool) {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", false
	}
	v, ok := payload[field]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func writeLocked(w http.ResponseWriter, retryAfterSecs int64) {
	w.Header().Set("Retry-After", strconv.FormatInt(retryAfterSecs, 10))
	errors.WriteError(w, errors.Lockedf("account locked, try again in %d seconds", retryAfterSecs))
}

// bufferedResponse captures a handler's response without sending it, so
// the lockout middleware can apply a progressive delay before the client
// sees a failed login attempt.
type bufferedResponse struct {
	header      http.Header
	body        bytes.Buffer
	status      int
	wroteHeader bool
}

func newBufferedResponse() *bufferedResponse {
	return &bufferedResponse{header: make(http.Header), status: http.StatusOK}
}

func (r *bufferedResponse) Header() http.Header { return r.header }

func (r *bufferedResponse) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	return r.body.Write(b)
}

func (r *bufferedResponse) WriteHeader(code int) {
	if r.wroteHeader {
		return
	}
	r.status = code
	r.wroteHeader = true
}

func (r *bufferedResponse) flush(w http.ResponseWriter) {
	for k, vv := range r.header {
		for _, v := range vv {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(r.status)
	_, _ = w.Write(r.body.Bytes())
}

package handler

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"static-server/internal/metrics"
)

// Cross-origin isolation headers. Browsers only enable SharedArrayBuffer and
// friends for documents served with both COOP and COEP.
const (
	HeaderOpenerPolicy   = "Cross-Origin-Opener-Policy"
	HeaderEmbedderPolicy = "Cross-Origin-Embedder-Policy"
	HeaderAllowOrigin    = "Access-Control-Allow-Origin"
	HeaderRequestID      = "X-Request-Id"

	OpenerPolicySameOrigin    = "same-origin"
	EmbedderPolicyRequireCorp = "require-corp"
	AllowOriginAny            = "*"
)

// Middleware decorates an http.Handler
type Middleware func(http.Handler) http.Handler

// Chain wraps h so that mws[0] is the outermost layer
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// IsolationHeaders sets the COOP, COEP and allow-origin headers on every
// response before the wrapped handler runs, so error responses carry them too.
func IsolationHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set(HeaderOpenerPolicy, OpenerPolicySameOrigin)
		h.Set(HeaderEmbedderPolicy, EmbedderPolicyRequireCorp)
		h.Set(HeaderAllowOrigin, AllowOriginAny)
		next.ServeHTTP(w, r)
	})
}

// CountRequests brackets every request with RequestStarted/RequestFinished.
// The release runs from a defer, so it also happens when the handler panics
// or the client goes away mid-response.
func CountRequests(m *metrics.Metrics) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.RequestStarted()
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w}

			completed := false
			defer func() {
				code := sw.Status()
				if !completed && !sw.wroteHeader {
					code = http.StatusInternalServerError
				}
				m.RequestFinished(code, time.Since(start))
			}()

			next.ServeHTTP(sw, r)
			completed = true
		})
	}
}

// AccessLog tags each request with an X-Request-Id and logs it once done
func AccessLog(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(HeaderRequestID)
			if id == "" {
				id = uuid.New().String()
			}
			w.Header().Set(HeaderRequestID, id)

			start := time.Now()
			sw := &statusWriter{ResponseWriter: w}
			next.ServeHTTP(sw, r)

			logger.Debug("request served",
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.Status(),
				"bytes", sw.written,
				"duration", time.Since(start),
				"remote_addr", r.RemoteAddr)
		})
	}
}

// CORS answers preflight requests and advertises the allowed methods. It is
// used on the metrics port, where pages post game events cross-origin.
func CORS(methods ...string) Middleware {
	allowed := strings.Join(append(methods, http.MethodOptions), ", ")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(HeaderAllowOrigin, AllowOriginAny)
			w.Header().Set("Access-Control-Allow-Methods", allowed)
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// statusWriter records the status code and byte count of a response
type statusWriter struct {
	http.ResponseWriter
	status      int
	written     int64
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	if !w.wroteHeader {
		w.status = http.StatusOK
		w.wroteHeader = true
	}
	n, err := w.ResponseWriter.Write(p)
	w.written += int64(n)
	return n, err
}

// ReadFrom keeps the sendfile path of the underlying writer available to
// http.FileServer.
func (w *statusWriter) ReadFrom(src io.Reader) (int64, error) {
	if !w.wroteHeader {
		w.status = http.StatusOK
		w.wroteHeader = true
	}
	var n int64
	var err error
	if rf, ok := w.ResponseWriter.(io.ReaderFrom); ok {
		n, err = rf.ReadFrom(src)
	} else {
		n, err = io.Copy(struct{ io.Writer }{w.ResponseWriter}, src)
	}
	w.written += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Status returns the response code, defaulting to 200 when nothing was written
func (w *statusWriter) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

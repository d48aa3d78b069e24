package metrics

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

// WithMetrics instrumenta requests HTTP (contadores, latencia, inflight).
func WithMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := strings.ToUpper(r.Method)
		pathLabel := NormalizePath(r.URL.Path)

		httpInflight.WithLabelValues(method, pathLabel).Inc()
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		defer func() {
			httpInflight.WithLabelValues(method, pathLabel).Dec()
			httpRequestDuration.WithLabelValues(method, pathLabel).Observe(time.Since(start).Seconds())
			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			httpRequestsTotal.WithLabelValues(method, pathLabel, strconv.Itoa(status)).Inc()
		}()
		next.ServeHTTP(rec, r)
	})
}

var (
	tokenSegmentRE = regexp.MustCompile(`^[A-Za-z0-9_-]{24,}$`)
	projectsRE     = regexp.MustCompile(`^(projects|tenants)$`)
)

// NormalizePath reemplaza IDs de proyecto/tenant y tokens por :param para
// no explotar la cardinalidad. "accounts:signUp" queda como está.
func NormalizePath(p string) string {
	clean := strings.SplitN(p, "?", 2)[0]
	segments := strings.Split(clean, "/")
	out := make([]string, 0, len(segments))
	prevIsCollection := false
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		switch {
		case prevIsCollection:
			// projects/{id}:createSessionCookie conserva el verbo
			if i := strings.IndexByte(seg, ':'); i > 0 {
				out = append(out, ":param"+seg[i:])
			} else {
				out = append(out, ":param")
			}
		case tokenSegmentRE.MatchString(seg):
			out = append(out, ":param")
		default:
			out = append(out, seg)
		}
		prevIsCollection = projectsRE.MatchString(seg)
	}
	if len(out) == 0 {
		return "/"
	}
	return "/" + strings.Join(out, "/")
}

package httpapi

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/MimeLyc/batch-sub-translator/pkg/log"
)

// quietPaths are polled constantly and only logged on errors.
var quietPaths = map[string]bool{
	"/api/session":        true,
	"/api/session/stream": true,
	"/api/actions":        true,
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		if quietPaths[r.URL.Path] && r.Method == http.MethodGet && status < 400 {
			return
		}
		log.Info("%s %s %d %s", r.Method, r.URL.Path, status, time.Since(start))
	})
}

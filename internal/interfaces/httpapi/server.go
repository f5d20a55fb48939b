package httpapi

import (
	"net/http"

	"github.com/shiroseschnee/bullet-royale/internal/platform/logging"
)

// RouterConfig carries the cross-cutting wiring the middleware chain needs.
type RouterConfig struct {
	Sessions         SessionVerifier
	Logger           *logging.Logger
	AllowedOrigins   []string
	InternalJobToken string
}

// NewRouter builds the HTTP surface. Order matters: tracing wraps logging so
// log lines carry trace ids, and the panic guard sits innermost so a handler
// crash still produces a well-formed error response.
func NewRouter(handler *Handler, cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	mux := http.NewServeMux()
	registerSystemRoutes(mux, handler)
	registerPublicRoutes(mux, handler)
	registerPlayerRoutes(mux, handler, cfg.Sessions)
	registerInternalJobRoutes(mux, handler, cfg.InternalJobToken)

	var root http.Handler = recoverPanic(logger, mux)
	root = CORS(cfg.AllowedOrigins, root)
	root = RequestLogging(logger, root)
	root = RequestTracing(root)
	return root
}

func recoverPanic(logger *logging.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if recovered := recover(); recovered != nil {
				ctx := r.Context()
				logger.ErrorContext(ctx, "panic recovered",
					"method", r.Method,
					"path", r.URL.Path,
					"panic", recovered,
				)
				writeInternalError(ctx, w)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

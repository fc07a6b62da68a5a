package pulse

import (
	"net/http"

	"github.com/pulsekit/pulse/core"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Middleware instruments an http.Handler: requests are traced through the
// active backend's propagators, and a panicking handler is reported via
// SendError with the http_request namespace before the request is answered
// with a 500.
//
// This is the host-framework attachment hook for net/http based hosts; wire
// it once at startup, after Initialize:
//
//	mux := http.NewServeMux()
//	mux.HandleFunc("/api/orders", ordersHandler)
//	http.ListenAndServe(":8080", pulse.Middleware("checkout")(mux))
//
// The middleware is safe to install before Initialize or while the agent is
// degraded; it simply passes requests through.
func Middleware(serviceName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		instrumented := otelhttp.NewHandler(next, serviceName,
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return "HTTP " + r.Method + " " + r.URL.Path
			}),
		)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					SendError(rec,
						WithNamespace(core.NamespaceHTTP),
						WithStack(core.CaptureStack(2)),
						WithContextData(map[string]interface{}{
							"method": r.Method,
							"path":   r.URL.Path,
						}),
					)
					w.WriteHeader(http.StatusInternalServerError)
				}
			}()
			instrumented.ServeHTTP(w, r)
		})
	}
}

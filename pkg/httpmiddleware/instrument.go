package httpmiddleware

import (
	"context"
	"net/http"
	"sync"

	"github.com/go-faster/sdk/app"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Instrument traces and measures every request with otelhttp using the
// providers of m.
func Instrument(service string, m *app.Telemetry) Middleware {
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, service,
			otelhttp.WithTracerProvider(m.TracerProvider()),
			otelhttp.WithMeterProvider(m.MeterProvider()),
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method
			}),
		)
	}
}

// routeSlot carries the matched route template back to middlewares that run
// outside the router.
type routeSlot struct {
	mu    sync.Mutex
	route string
}

func (s *routeSlot) set(route string) {
	s.mu.Lock()
	s.route = route
	s.mu.Unlock()
}

func (s *routeSlot) get() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.route
}

type routeSlotKey struct{}

func withRouteSlot(ctx context.Context) (context.Context, *routeSlot) {
	if s, ok := ctx.Value(routeSlotKey{}).(*routeSlot); ok {
		return ctx, s
	}
	s := &routeSlot{}
	return context.WithValue(ctx, routeSlotKey{}, s), s
}

// RouteFromContext returns the route template recorded by RouteLabeler.
func RouteFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(routeSlotKey{}).(*routeSlot); ok {
		return s.get()
	}
	return ""
}

// RouteLabeler is a mux.MiddlewareFunc that names the active span after the
// matched route and labels otelhttp metrics with it.
func RouteLabeler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cur := mux.CurrentRoute(r)
		if cur == nil {
			next.ServeHTTP(w, r)
			return
		}
		tmpl, err := cur.GetPathTemplate()
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		if s, ok := ctx.Value(routeSlotKey{}).(*routeSlot); ok {
			s.set(tmpl)
		}
		attr := attribute.String("http.route", tmpl)
		if l, ok := otelhttp.LabelerFromContext(ctx); ok {
			l.Add(attr)
		}
		span := trace.SpanFromContext(ctx)
		span.SetName(r.Method + " " + tmpl)
		span.SetAttributes(attr)

		next.ServeHTTP(w, r)
	})
}

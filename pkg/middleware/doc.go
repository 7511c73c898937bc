// Package middleware provides observability plugins for store registries.
//
// # OpenTelemetry
//
// OpenTelemetry traces every store action with one span per invocation:
//
//	r.Use(middleware.OpenTelemetry(
//	    middleware.WithTracerName("my-app"),
//	    middleware.WithActionFilter(func(storeID, action string) bool {
//	        return storeID != "clock"
//	    }),
//	))
//
// # Prometheus Metrics
//
// Prometheus counts store builds, actions and mutations and times actions:
//   - vstore_stores_active: Current number of built stores
//   - vstore_actions_total: Actions by store, action and status
//   - vstore_action_duration_seconds: Action duration histogram
//   - vstore_mutations_total: Mutations by store and type
//
//	r.Use(middleware.Prometheus())
//
// Then expose metrics:
//
//	http.Handle("/metrics", promhttp.Handler())
package middleware

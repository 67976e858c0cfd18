/*
Package observability exposes framecast activity as Prometheus metrics.

Metrics are fed through domain.LifecycleHooks, so the compositor and counter
stay unaware of the metrics backend:

	m := observability.NewMetrics(prometheus.NewRegistry())
	studio, _ := framecast.New(frames, store, framecast.WithHooks(m.Hooks()))
*/
package observability

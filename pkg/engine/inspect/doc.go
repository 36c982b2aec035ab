// Package inspect serves a read-mostly HTTP view of a running engine for
// debugging tools and dashboards.
//
// Mount the handler on any server:
//
//	reg := prometheus.NewRegistry()
//	metrics, _ := observability.NewPrometheusMetrics(reg)
//	eng := engine.New(engine.WithMetricsRecorder(metrics))
//
//	srv := &http.Server{
//	    Addr:    "127.0.0.1:6060",
//	    Handler: inspect.NewHandler(inspect.Config{Engine: eng, Gatherer: reg}),
//	}
//	go srv.ListenAndServe()
//
// POST /engine/{command} runs the command on the request goroutine and
// responds with the resulting state.
package inspect

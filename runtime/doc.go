// Package runtime loads WebAssembly modules through an admission gate.
//
// Every module passes the compat.Checker before wazero compiles it. A
// rejected module is never compiled and the caller receives the checker's
// verdict unchanged.
//
//	ctx := context.Background()
//	rt, err := runtime.New(ctx, runtime.WithChecker(checker))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	mod, err := rt.Load(ctx, wasmBytes)
//	if errors.Is(err, compat.ErrUnsupportedImports) {
//	    // built against a newer host API
//	}
//
// # Verdict Cache
//
// Verdicts are kept in an LRU keyed by the SHA-256 of the module bytes, so
// resubmitting the same code skips extraction. Set Config.CacheSize to a
// negative value to disable it.
//
// # Metrics
//
// The runtime exports wasmgate_admissions_total{verdict},
// wasmgate_verdict_cache_hits_total and wasmgate_check_duration_seconds.
// Pass WithRegisterer to expose them on an existing registry.
package runtime

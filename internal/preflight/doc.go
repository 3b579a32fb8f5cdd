// Package preflight runs the system diagnostics behind "ragline doctor".
//
// The package validates:
//   - Data directory existence and write permissions
//   - Disk space availability (minimum 100MB)
//   - Vector store reachability and chunk count
//   - BM25 index reachability (warning only; queries degrade without it)
//   - Embedding and chat endpoint availability (warnings)
//
// Use the Checker type to run all validations:
//
//	checker := preflight.New(cfg)
//	results := checker.RunAll(ctx)
//	if checker.HasCriticalFailures(results) {
//	    // Handle failures
//	}
package preflight

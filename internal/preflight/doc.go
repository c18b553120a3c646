// Package preflight checks that the machine can run zeno before the
// server takes ownership of the index.
//
// The package validates:
//   - Write permissions in the data directory
//   - Disk space available to the index
//   - File descriptor limits
//   - The pdftotext tool used for PDF extraction
//   - That the HTTP address is free
//
// Use the Checker type to run all validations:
//
//	checker := preflight.New(cfg)
//	results := checker.RunAll(ctx)
//	if checker.HasCriticalFailures(results) {
//	    // Handle failures
//	}
package preflight

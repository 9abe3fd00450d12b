// Package errors provides coded, structured errors for streamres.
//
// Every error produced by the library itself carries a code from a fixed
// registry, a category and a human message:
//
//	err := errors.Wrap(errors.CodeLoaderPanic, cause).
//	    WithDetail("loader for feed chat panicked")
//	fmt.Println(err.Format())
//	// ERROR E101: Loader panicked
//	//
//	//   loader for feed chat panicked
//
// # Categories
//
//   - resource: failures inside a resource pipeline (E1xx)
//   - config: configuration loading and validation (E2xx)
//   - server: HTTP surface errors (E3xx)
//
// Codes compare with errors.Is: two StreamErrors match when their codes
// match, and Unwrap exposes the underlying cause.
package errors

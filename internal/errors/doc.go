// Package errors provides structured, actionable error messages for vstore.
//
// Every error has a unique code (e.g., "E001") that maps to a short message,
// a detailed explanation and a documentation URL. Errors compare by code, so
// a freshly built error matches a package-level sentinel with errors.Is:
//
//	var ErrUnknownAction = errors.New("E004")
//
//	err := errors.New("E004").WithSubject("counter.increment")
//	stderrors.Is(err, ErrUnknownAction) // true
//
// # Error Categories
//
//   - runtime: registry and store usage errors
//   - hydration: snapshot payload errors
//   - persistence: snapshot backend errors
//   - config: configuration file errors
//   - cli: command line errors
//
// # Usage
//
//	err := errors.New("E001").
//	    WithSuggestion("Call store.New() and Install it, or pass the registry to Use")
//
//	fmt.Println(err.Format())
package errors

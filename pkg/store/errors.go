package store

import (
	"fmt"

	"github.com/vango-dev/vstore/internal/errors"
)

// Sentinel errors. Errors returned by this package carry the same codes
// and match these with errors.Is.
var (
	ErrNoActiveRegistry = errors.New("E001")
	ErrRegistryDisposed = errors.New("E002")
	ErrResetUnsupported = errors.New("E003")
	ErrUnknownAction    = errors.New("E004")
	ErrUnknownField     = errors.New("E005")
	ErrReadOnly         = errors.New("E006")
	ErrTypeMismatch     = errors.New("E007")
	ErrAlreadyInstalled = errors.New("E008")
)

func errNoActiveRegistry(id string) error {
	return errors.New("E001").
		WithSubject("store %q", id).
		WithSuggestion("did you install it? Create a registry with store.New(), call Install on your app, or pass it to Use").
		WithExample("r := store.New()\nr.Install(app)\ncounter := useCounter.Use(r)")
}

func errRegistryDisposed(id string) error {
	return errors.New("E002").WithSubject("store %q", id)
}

func errUnknownAction(id, name string) error {
	return errors.New("E004").WithSubject("%s.%s", id, name)
}

func errUnknownField(id, name string) error {
	return errors.New("E005").WithSubject("%s.%s", id, name)
}

func errReadOnly(id, name string, kind Kind) error {
	return errors.New("E006").WithSubject("%s.%s is a %s", id, name, kind)
}

func errTypeMismatch(id, name string, err error) error {
	return errors.New("E007").WithSubject("%s.%s", id, name).Wrap(err)
}

// panicError converts a recovered panic value into an error.
func panicError(rec any) error {
	if err, ok := rec.(error); ok {
		return err
	}
	return fmt.Errorf("panic: %v", rec)
}

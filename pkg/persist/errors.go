package persist

import (
	"github.com/vango-dev/vstore/internal/errors"
)

// Sentinel errors, matched by code with errors.Is.
var (
	ErrSnapshotDecode  = errors.New("E020")
	ErrSnapshotVersion = errors.New("E021")
	ErrStoreClosed     = errors.New("E022")
)

func errDecode(err error) error {
	return errors.New("E020").Wrap(err)
}

func errVersion(version int) error {
	return errors.New("E021").
		WithSubject("version %d", version).
		WithSuggestion("upgrade vstore or re-create the snapshot with this version")
}

func errClosed(backend string) error {
	return errors.New("E022").WithSubject("%s", backend)
}

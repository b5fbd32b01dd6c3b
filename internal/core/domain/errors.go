package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrConfiguration        = errors.New("configuration error")
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")
	ErrGenerationFailure    = errors.New("generation failure")
	ErrTemporary            = errors.New("temporary failure")
	ErrTerminalState        = errors.New("router state is terminal")
)

// errorKinds fixes the label of every kind. Order matters: the first kind an
// error matches wins, so a generation failure caused by a temporary outage is
// reported as a generation failure.
var errorKinds = []struct {
	label string
	kind  error
}{
	{"invalid_input", ErrInvalidInput},
	{"generation_failure", ErrGenerationFailure},
	{"retrieval_unavailable", ErrRetrievalUnavailable},
	{"configuration", ErrConfiguration},
	{"temporary", ErrTemporary},
	{"terminal_state", ErrTerminalState},
}

// WrapError tags err with a kind and the failing operation. The result
// matches both kind and err under errors.Is.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// KindLabel is a stable snake_case label for the kind of err, "none" for nil
// and "internal" for untagged errors. Used for metrics and wire replies.
func KindLabel(err error) string {
	if err == nil {
		return "none"
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.kind) {
			return k.label
		}
	}
	return "internal"
}

// KindByLabel reverses KindLabel.
func KindByLabel(label string) (error, bool) {
	for _, k := range errorKinds {
		if k.label == label {
			return k.kind, true
		}
	}
	return nil, false
}

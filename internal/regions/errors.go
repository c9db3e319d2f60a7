package regions

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingRegions is matched by every MissingRegionsError.
var ErrMissingRegions = errors.New("missing regions")

// MissingRegionsError reports the parts that could not be derived for a frame.
// No processed output exists for a frame that fails with it.
type MissingRegionsError struct {
	Parts  []Part
	Detail string
}

func (e *MissingRegionsError) Error() string {
	names := make([]string, len(e.Parts))
	for i, p := range e.Parts {
		names[i] = p.String()
	}
	msg := fmt.Sprintf("missing regions: %s", strings.Join(names, ", "))
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

func (e *MissingRegionsError) Is(target error) bool {
	return target == ErrMissingRegions
}

// ConfigError reports a malformed body part table.
type ConfigError struct {
	Part   Part
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid body part table entry %q: %s", e.Part, e.Reason)
}

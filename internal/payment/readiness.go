package payment

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Readiness reports whether a provider can currently accept a payment on
// this device.
type Readiness int

const (
	ReadinessUnknown Readiness = iota
	Ready
	NotReady
	TemporarilyUnavailable
	Unsupported
	ReadinessError
)

var readinessNames = map[Readiness]string{
	ReadinessUnknown:       "UNKNOWN",
	Ready:                  "READY",
	NotReady:               "NOT_READY",
	TemporarilyUnavailable: "TEMPORARILY_UNAVAILABLE",
	Unsupported:            "UNSUPPORTED",
	ReadinessError:         "UNKNOWN_ERROR",
}

func (r Readiness) String() string {
	if name, ok := readinessNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Readiness(%d)", int(r))
}

func (r Readiness) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// ParseReadiness parses the names produced by String.
func ParseReadiness(s string) (Readiness, error) {
	want := strings.ToUpper(strings.TrimSpace(s))
	for r, name := range readinessNames {
		if name == want {
			return r, nil
		}
	}
	return ReadinessUnknown, fmt.Errorf("%w: %q", ErrInvalidReadiness, s)
}

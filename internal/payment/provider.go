// Package payment holds the value types shared by the checkout coordinator,
// the wallet adapters and the presentation layer: providers, request
// descriptors, outcomes and readiness.
package payment

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Provider identifies one of the integrated wallet providers.
type Provider int

const (
	ProviderUnknown Provider = iota
	GenericWallet
	DeviceWallet
)

// Providers lists every known provider in display order.
var Providers = []Provider{GenericWallet, DeviceWallet}

func (p Provider) String() string {
	switch p {
	case GenericWallet:
		return "generic_wallet"
	case DeviceWallet:
		return "device_wallet"
	default:
		return "unknown"
	}
}

// Valid reports whether p is one of the known providers.
func (p Provider) Valid() bool {
	return p == GenericWallet || p == DeviceWallet
}

// ParseProvider accepts the lower-case names used in URLs and config
// ("generic_wallet", "device_wallet"), case-insensitively.
func ParseProvider(s string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "generic_wallet":
		return GenericWallet, nil
	case "device_wallet":
		return DeviceWallet, nil
	default:
		return ProviderUnknown, fmt.Errorf("%w: %q", ErrUnknownProvider, s)
	}
}

func (p Provider) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Provider) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseProvider(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

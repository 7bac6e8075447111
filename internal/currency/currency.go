// Package currency provides the canonical Money type for the MWK/CNY corridor,
// normalization of heterogeneous upstream amount payloads, and cross-currency
// conversion over an injected rate table.
package currency

import (
	"strings"
	"sync"

	"github.com/kwachalink/corridor_compliance/pkg/errors"
)

// Code is an ISO 4217 currency code supported by the platform.
type Code string

const (
	MWK Code = "MWK"
	CNY Code = "CNY"
	USD Code = "USD"
	EUR Code = "EUR"
	GBP Code = "GBP"
	JPY Code = "JPY"
	AUD Code = "AUD"
	CAD Code = "CAD"
	CHF Code = "CHF"
	ZAR Code = "ZAR"
)

// BaseCurrency is the platform settlement currency.
const BaseCurrency = MWK

var (
	registryMu sync.RWMutex

	// minor units per currency; currencies without subunits carry 0
	registry = map[Code]int32{
		MWK: 2,
		CNY: 2,
		USD: 2,
		EUR: 2,
		GBP: 2,
		JPY: 0,
		AUD: 2,
		CAD: 2,
		CHF: 2,
		ZAR: 2,
	}
)

// Register adds a currency to the supported set. Existing entries are
// overwritten; minor units below zero are clamped to zero.
func Register(code Code, minorUnits int32) {
	if minorUnits < 0 {
		minorUnits = 0
	}
	registryMu.Lock()
	registry[code] = minorUnits
	registryMu.Unlock()
}

// Parse validates a raw currency string against the supported set. Unknown
// codes are rejected, never passed through.
func Parse(raw string) (Code, error) {
	code := Code(strings.ToUpper(strings.TrimSpace(raw)))
	if code == "" {
		return "", errors.Validation("currency code is empty")
	}
	if !code.Supported() {
		return "", errors.Validation("unsupported currency code %q", raw)
	}
	return code, nil
}

// Supported reports whether the code is in the registry.
func (c Code) Supported() bool {
	registryMu.RLock()
	_, ok := registry[c]
	registryMu.RUnlock()
	return ok
}

// MinorUnits returns the number of decimal places of the currency's smallest
// unit. Unregistered codes report 2, the corridor default.
func (c Code) MinorUnits() int32 {
	registryMu.RLock()
	units, ok := registry[c]
	registryMu.RUnlock()
	if !ok {
		return 2
	}
	return units
}

func (c Code) String() string { return string(c) }

// SPDX-License-Identifier: MIT
package spectral

import (
	"fmt"
	"strings"
)

// FilterType selects the attenuation curve applied to each frequency bin.
type FilterType int

// The set is closed; values outside it are rejected at construction.
const (
	Wiener             FilterType = iota // max((psd-sigma)/psd, 0)
	HardThreshold                        // 0 below sigma, 1 otherwise
	Multiplier                           // constant sigma
	BandMultiplier                       // sigma inside [pmin, pmax], sigma2 outside
	ModifiedMultiplier                   // sigma scaled by a psd dependent band-pass
	GeneralizedWiener                    // Wiener raised to the power pmin
	SqrtWiener                           // square root of Wiener
)

var filterTypeNames = [...]string{
	Wiener:             "wiener",
	HardThreshold:      "hard",
	Multiplier:         "multiplier",
	BandMultiplier:     "band",
	ModifiedMultiplier: "modified",
	GeneralizedWiener:  "generalized",
	SqrtWiener:         "sqrt",
}

// Valid reports whether t is one of the defined curves.
func (t FilterType) Valid() bool {
	return t >= Wiener && t <= SqrtWiener
}

func (t FilterType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("FilterType(%d)", int(t))
	}
	return filterTypeNames[t]
}

// ParseFilterType accepts either the curve name (case-insensitive) or its
// numeric value.
func ParseFilterType(s string) (FilterType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range filterTypeNames {
		if s == name || s == fmt.Sprint(i) {
			return FilterType(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrFilterType, s)
}

// ScalesWithWindow reports whether sigma is a noise power for this curve
// (and therefore grows with the window energy) rather than a gain.
func (t FilterType) ScalesWithWindow() bool {
	switch t {
	case Wiener, HardThreshold, GeneralizedWiener, SqrtWiener:
		return true
	default:
		return false
	}
}

// ScalesBand reports whether pmin and pmax are noise powers for this curve.
func (t FilterType) ScalesBand() bool {
	return t == BandMultiplier || t == ModifiedMultiplier
}

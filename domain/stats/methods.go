package stats

import (
	"strings"

	"statcore/domain/core"
)

// PostHocMethod selects the pairwise comparison procedure
type PostHocMethod int

const (
	PostHocNone PostHocMethod = iota
	PostHocTukey
	PostHocHolm
	PostHocBonferroni
)

// String returns the canonical name
func (m PostHocMethod) String() string {
	switch m {
	case PostHocNone:
		return "none"
	case PostHocTukey:
		return "tukey"
	case PostHocHolm:
		return "holm"
	case PostHocBonferroni:
		return "bonferroni"
	}
	return "unknown"
}

// ParsePostHocMethod parses a method name; "" means none
func ParsePostHocMethod(s string) (PostHocMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return PostHocNone, nil
	case "tukey", "tukey-kramer":
		return PostHocTukey, nil
	case "holm":
		return PostHocHolm, nil
	case "bonferroni":
		return PostHocBonferroni, nil
	}
	return PostHocNone, core.NewUnknownMethodError("post-hoc method", s)
}

func (m PostHocMethod) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *PostHocMethod) UnmarshalText(b []byte) error {
	parsed, err := ParsePostHocMethod(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// RotationMethod selects the factor rotation
type RotationMethod int

const (
	RotationNone RotationMethod = iota
	RotationVarimax
	RotationPromax
	RotationOblimin
	RotationGeomin
)

// String returns the canonical name
func (r RotationMethod) String() string {
	switch r {
	case RotationNone:
		return "none"
	case RotationVarimax:
		return "varimax"
	case RotationPromax:
		return "promax"
	case RotationOblimin:
		return "oblimin"
	case RotationGeomin:
		return "geomin"
	}
	return "unknown"
}

// Oblique reports whether the rotation permits correlated factors
func (r RotationMethod) Oblique() bool {
	switch r {
	case RotationPromax, RotationOblimin, RotationGeomin:
		return true
	case RotationNone, RotationVarimax:
		return false
	}
	return false
}

// ParseRotationMethod parses a rotation name; "" means none
func ParseRotationMethod(s string) (RotationMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return RotationNone, nil
	case "varimax":
		return RotationVarimax, nil
	case "promax":
		return RotationPromax, nil
	case "oblimin", "direct-oblimin", "quartimin":
		return RotationOblimin, nil
	case "geomin":
		return RotationGeomin, nil
	}
	return RotationNone, core.NewUnknownMethodError("rotation", s)
}

func (r RotationMethod) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *RotationMethod) UnmarshalText(b []byte) error {
	parsed, err := ParseRotationMethod(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

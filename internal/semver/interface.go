package semver

import (
	"fmt"
	"strconv"
	"strings"
)

// InterfaceVersion is an interface version "MAJOR.MINOR[.SOFTWARE]".
type InterfaceVersion struct {
	Major int
	Minor int
	// Software is nil when the version has only two parts.
	Software *int
}

func ParseInterfaceVersion(raw string) (InterfaceVersion, error) {
	parts := strings.Split(strings.TrimSpace(raw), ".")
	if len(parts) < 2 || len(parts) > 3 {
		return InterfaceVersion{}, fmt.Errorf("semver: parse interface version %q: want MAJOR.MINOR[.SOFTWARE]", raw)
	}
	nums := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || strings.HasPrefix(p, "+") {
			return InterfaceVersion{}, fmt.Errorf("semver: parse interface version %q: bad number %q", raw, p)
		}
		nums[i] = n
	}
	v := InterfaceVersion{Major: nums[0], Minor: nums[1]}
	if len(nums) == 3 {
		sw := nums[2]
		v.Software = &sw
	}
	return v, nil
}

func (v InterfaceVersion) String() string {
	if v.Software == nil {
		return fmt.Sprintf("%d.%d", v.Major, v.Minor)
	}
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, *v.Software)
}

// Satisfies reports whether provided version v meets required version req.
//
// Majors must match. A higher minor always satisfies; an equal minor
// satisfies when req has no software part or v's software part is not lower.
func (v InterfaceVersion) Satisfies(req InterfaceVersion) bool {
	if v.Major != req.Major {
		return false
	}
	if v.Minor != req.Minor {
		return v.Minor > req.Minor
	}
	if req.Software == nil {
		return true
	}
	sw := 0
	if v.Software != nil {
		sw = *v.Software
	}
	return sw >= *req.Software
}

// IsCompatible reports whether the provided version string satisfies a single
// required version. Unparsable versions are never compatible.
func IsCompatible(provided, required string) bool {
	p, err := ParseInterfaceVersion(provided)
	if err != nil {
		return false
	}
	r, err := ParseInterfaceVersion(required)
	if err != nil {
		return false
	}
	return p.Satisfies(r)
}

// IsCompatibleAny reports whether provided satisfies any of the
// space-separated alternatives in required, e.g. "1.0 2.0".
func IsCompatibleAny(provided, required string) bool {
	for _, alt := range strings.Fields(required) {
		if IsCompatible(provided, alt) {
			return true
		}
	}
	return false
}

package semver

import (
	"fmt"

	mm "github.com/Masterminds/semver/v3"
)

// Version wraps github.com/Masterminds/semver/v3.
type Version struct {
	v *mm.Version
}

func Parse(raw string) (Version, error) {
	v, err := mm.NewVersion(raw)
	if err != nil {
		return Version{}, fmt.Errorf("semver: parse version %q: %w", raw, err)
	}
	return Version{v: v}, nil
}

func (v Version) String() string {
	if v.v == nil {
		return ""
	}
	return v.v.String()
}

// Compare returns -1, 0 or 1. A zero Version sorts before every parsed one.
func Compare(a, b Version) int {
	if a.v == nil && b.v == nil {
		return 0
	}
	if a.v == nil {
		return -1
	}
	if b.v == nil {
		return 1
	}
	return a.v.Compare(b.v)
}

// Newer reports whether candidate is a strictly higher version than current.
// Unparseable versions fall back to a plain inequality check.
func Newer(current, candidate string) bool {
	cur, errCur := Parse(current)
	next, errNext := Parse(candidate)
	if errCur != nil || errNext != nil {
		return candidate != "" && candidate != current
	}
	return Compare(next, cur) > 0
}

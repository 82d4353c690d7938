// Package coord defines artifact coordinates and the version ordering used
// to resolve version selectors such as "1.+".
package coord

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

// Coordinate identifies a resolvable artifact. Version is either concrete
// ("1.3") or a selector ("1.+", "+").
type Coordinate struct {
	Group   string
	Name    string
	Version string
}

// Parse reads "group:name:version" or "name:version".
func Parse(s string) (Coordinate, error) {
	parts := strings.Split(s, ":")
	switch len(parts) {
	case 2:
		c := Coordinate{Name: parts[0], Version: parts[1]}
		return c, c.Validate()
	case 3:
		c := Coordinate{Group: parts[0], Name: parts[1], Version: parts[2]}
		return c, c.Validate()
	default:
		return Coordinate{}, fmt.Errorf("invalid coordinate %q: expected [group:]name:version", s)
	}
}

// Validate checks that the required fields are present and contain no path
// separators, since the fields become directory names in the artifact store.
func (c Coordinate) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("coordinate %q has no name", c.String())
	}
	if c.Version == "" {
		return fmt.Errorf("coordinate %q has no version", c.String())
	}
	for _, f := range []string{c.Group, c.Name, c.Version} {
		if strings.ContainsAny(f, `/\`) || f == "." || f == ".." {
			return fmt.Errorf("coordinate %q contains an invalid path element %q", c.String(), f)
		}
	}
	return nil
}

// String renders the coordinate as "group:name:version", omitting an empty group.
func (c Coordinate) String() string {
	if c.Group == "" {
		return c.Name + ":" + c.Version
	}
	return c.Group + ":" + c.Name + ":" + c.Version
}

// Module is the version-less identity (group, name) used to collapse
// duplicate declarations.
func (c Coordinate) Module() string {
	return c.Group + ":" + c.Name
}

// IsSelector reports whether the version is a dynamic selector.
func (c Coordinate) IsSelector() bool {
	return IsSelector(c.Version)
}

// WithVersion returns a copy of c with a concrete version.
func (c Coordinate) WithVersion(v string) Coordinate {
	c.Version = v
	return c
}

// IsSelector reports whether v is a prefix selector ("1.+") or the
// match-anything selector ("+").
func IsSelector(v string) bool {
	return strings.HasSuffix(v, "+")
}

// Matches reports whether a concrete version satisfies a version or selector.
func Matches(selector, version string) bool {
	if !IsSelector(selector) {
		return selector == version
	}
	prefix := strings.TrimSuffix(selector, "+")
	return strings.HasPrefix(version, prefix) && len(version) > len(prefix)
}

// Compare orders two concrete versions. It returns -1, 0 or +1.
//
// Versions that are valid semantic versions once prefixed with "v" are
// ordered by semver; anything else falls back to comparing dot separated
// segments, numerically when both segments are numbers.
func Compare(a, b string) int {
	va, vb := "v"+a, "v"+b
	if semver.IsValid(va) && semver.IsValid(vb) {
		if c := semver.Compare(va, vb); c != 0 {
			return c
		}
		// semver treats "1.3" and "1.3.0" as equal; keep a total order.
		return strings.Compare(a, b)
	}
	return compareSegments(a, b)
}

func compareSegments(a, b string) int {
	as := strings.FieldsFunc(a, isSeparator)
	bs := strings.FieldsFunc(b, isSeparator)
	for i := 0; i < len(as) && i < len(bs); i++ {
		if c := compareSegment(as[i], bs[i]); c != 0 {
			return c
		}
	}
	// A trailing qualifier sorts before the release it qualifies
	// (1.0-rc1 < 1.0), a trailing number after it (1.0 < 1.0.1).
	switch {
	case len(as) < len(bs):
		return -trailing(bs[len(as)])
	case len(as) > len(bs):
		return trailing(as[len(bs)])
	}
	return strings.Compare(a, b)
}

func trailing(seg string) int {
	if _, err := strconv.Atoi(seg); err == nil {
		return 1
	}
	return -1
}

func compareSegment(a, b string) int {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	switch {
	case errA == nil && errB == nil:
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		}
		return 0
	case errA == nil:
		// Numeric segments sort after qualifiers: 1.0-rc < 1.0.1
		return 1
	case errB == nil:
		return -1
	}
	return strings.Compare(a, b)
}

func isSeparator(r rune) bool {
	return r == '.' || r == '-' || r == '_'
}

// Highest returns the highest of the given versions matching selector and
// whether any matched.
func Highest(selector string, versions []string) (string, bool) {
	best, found := "", false
	for _, v := range versions {
		if !Matches(selector, v) {
			continue
		}
		if !found || Compare(v, best) > 0 {
			best, found = v, true
		}
	}
	return best, found
}

// Descending returns the versions matching selector, highest first.
func Descending(selector string, versions []string) []string {
	var out []string
	for _, v := range versions {
		if Matches(selector, v) {
			out = append(out, v)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return Compare(out[i], out[j]) > 0 })
	return out
}

package domain

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// versionCore matches the numeric part of a version after the prefix is
// removed. Leading zeros are rejected so parsing and formatting round-trip.
var versionCore = regexp.MustCompile(`^(0|[1-9]\d*)\.(0|[1-9]\d*)\.(0|[1-9]\d*)$`)

// Version is an immutable semantic version together with its tag prefix
// (e.g. "v" or "ver", possibly empty).
type Version struct {
	prefix string
	sem    *semver.Version
}

// ParseVersion parses s into a Version, stripping the given prefix. It fails
// with ErrInvalidVersionFormat when s does not start with the prefix or the
// remainder is not a plain MAJOR.MINOR.PATCH triple.
func ParseVersion(s, prefix string) (*Version, error) {
	core, ok := strings.CutPrefix(s, prefix)
	if !ok {
		return nil, fmt.Errorf("%w: %q does not start with prefix %q", ErrInvalidVersionFormat, s, prefix)
	}
	return newVersion(core, prefix)
}

// ParseTagVersion parses a tag name as a Version, inferring the prefix as the
// leading run of non-digit characters.
func ParseTagVersion(name string) (*Version, error) {
	i := 0
	for i < len(name) && (name[i] < '0' || name[i] > '9') {
		i++
	}
	return newVersion(name[i:], name[:i])
}

func newVersion(core, prefix string) (*Version, error) {
	if !versionCore.MatchString(core) {
		return nil, fmt.Errorf(
			"%w: %q is not of the form MAJOR.MINOR.PATCH",
			ErrInvalidVersionFormat, prefix+core,
		)
	}
	sem, err := semver.StrictNewVersion(core)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidVersionFormat, err)
	}
	return &Version{prefix: prefix, sem: sem}, nil
}

// Prefix returns the tag prefix the version was parsed with.
func (v *Version) Prefix() string { return v.prefix }

// Major returns the major component.
func (v *Version) Major() uint64 { return v.sem.Major() }

// Minor returns the minor component.
func (v *Version) Minor() uint64 { return v.sem.Minor() }

// Patch returns the patch component.
func (v *Version) Patch() uint64 { return v.sem.Patch() }

// Compare orders two versions by their (major, minor, patch) tuple. The
// prefix does not participate in ordering.
func (v *Version) Compare(other *Version) int {
	return v.sem.Compare(other.sem)
}

// String returns the canonical textual form {prefix}{major}.{minor}.{patch}.
func (v *Version) String() string {
	return v.prefix + v.sem.String()
}

// AddCommits returns a new Version whose patch component is advanced by the
// given commit count. Major and minor are carried over unchanged: the patch
// slot absorbs the raw commit count since the last tag instead of following
// conventional reset-on-bump semver rules.
func (v *Version) AddCommits(count int) *Version {
	next, err := newVersion(
		fmt.Sprintf("%d.%d.%d", v.sem.Major(), v.sem.Minor(), v.sem.Patch()+uint64(count)),
		v.prefix,
	)
	if err != nil {
		// Unreachable: the formatted triple always matches versionCore.
		panic(err)
	}
	return next
}

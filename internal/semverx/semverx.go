// Package semverx wraps github.com/Masterminds/semver/v3 for the two
// things the deployment manager needs: validating an uploaded version
// string and comparing two version strings during check-in.
package semverx

import "github.com/Masterminds/semver/v3"

// Validate reports whether s parses as a strict semantic version. Unlike
// semver.NewVersion, StrictNewVersion rejects lenient forms like "1.2" or
// a "v" prefix, so "1.2" and "v1.2.3" are both errors here.
func Validate(s string) error {
	_, err := semver.StrictNewVersion(s)
	return err
}

// Compare returns -1, 0, or 1 depending on whether a is less than, equal
// to, or greater than b. Both must already be valid semver strings.
func Compare(a, b string) (int, error) {
	va, err := semver.NewVersion(a)
	if err != nil {
		return 0, err
	}
	vb, err := semver.NewVersion(b)
	if err != nil {
		return 0, err
	}
	return va.Compare(vb), nil
}

package version

import (
	"regexp"
	"testing"
)

func TestVersionFormat(t *testing.T) {
	// Release builds inject the git tag via -ldflags; dev builds carry a -dev suffix.
	if !regexp.MustCompile(`^v\d+\.\d+\.\d+(-[0-9A-Za-z.-]+)?$`).MatchString(Version) {
		t.Errorf("Version %q is not a v-prefixed semantic version", Version)
	}
}

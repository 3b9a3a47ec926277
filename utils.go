package blobstart

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxBlobNameLength is the longest blob name accepted by the storage services.
const MaxBlobNameLength = 1024

// IsValidBlobName validates that a blob name can be stored by every backend.
// It checks that the name:
//   - is not empty, "." or "/"
//   - is relative (does not start with "/") and does not end with "/"
//   - is at most MaxBlobNameLength bytes
//   - does not contain "//", "\" or "." / ".." segments
//   - is valid UTF-8
//   - does not contain null bytes, control characters (< 0x20) or DEL (0x7f)
//
// Unlike object paths in a URL, blob names may contain spaces.
func IsValidBlobName(name string) bool {
	if name == "" || name == "/" || name == "." {
		return false
	}

	if len(name) > MaxBlobNameLength {
		return false
	}

	if name[0] == '/' || strings.HasSuffix(name, "/") {
		return false
	}

	if strings.Contains(name, "//") || strings.ContainsRune(name, '\\') {
		return false
	}

	if !utf8.ValidString(name) {
		return false
	}

	for _, seg := range strings.Split(name, "/") {
		if seg == "." || seg == ".." {
			return false
		}
	}

	for _, r := range name {
		if r == 0 || r < 0x20 || r == 0x7f || (unicode.IsSpace(r) && r != ' ') {
			return false
		}
	}

	return true
}

var validContainerNameRegex = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9]|-[a-z0-9])*$`)

// IsValidContainerName checks the container naming rules shared by Azure and S3:
// 3 to 63 characters, lowercase letters, digits and single hyphens, starting and
// ending with a letter or digit.
func IsValidContainerName(name string) bool {
	return len(name) >= 3 && len(name) <= 63 && validContainerNameRegex.MatchString(name)
}

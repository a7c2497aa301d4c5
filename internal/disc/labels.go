package disc

import (
	"regexp"
	"strings"
)

var (
	allDigitsPattern = regexp.MustCompile(`^\d+$`)
	unsafeNameChars  = regexp.MustCompile(`[/\\:*?"<>|\x00-\x1f]+`)
)

var genericLabelPatterns = []string{
	"LOGICAL_VOLUME_ID", "VOLUME_ID", "DVD_VIDEO", "BLURAY", "BD_ROM",
	"UNTITLED", "UNKNOWN DISC", "VOLUME_", "DISK_",
}

// IsGenericLabel reports whether a disc label is too generic to name output
// after, so that two different discs could share it.
func IsGenericLabel(label string) bool {
	label = strings.TrimSpace(label)
	if label == "" || allDigitsPattern.MatchString(label) {
		return true
	}
	upper := strings.ToUpper(label)
	for _, pattern := range genericLabelPatterns {
		if strings.Contains(upper, pattern) {
			return true
		}
	}
	return false
}

// SafeName turns a disc title into a single path component.
func SafeName(title string) string {
	cleaned := unsafeNameChars.ReplaceAllString(strings.TrimSpace(title), "_")
	cleaned = strings.Trim(cleaned, ". _")
	if cleaned == "" {
		return "disc"
	}
	return cleaned
}

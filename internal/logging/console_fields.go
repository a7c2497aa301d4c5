package logging

import (
	"log/slog"
	"strings"
)

type infoField struct {
	label string
	value string
}

// infoHighlightKeys are rendered first, in this order, on info-level console lines.
var infoHighlightKeys = []string{
	FieldEventType,
	FieldDiscTitle,
	FieldMode,
	FieldPhase,
	"disc_count",
	"progress_percent",
	"destination",
	"error",
	FieldErrorHint,
	FieldImpact,
	"duration",
}

// selectInfoFields orders attributes for info-level output and reports how many
// debug-only attributes were hidden.
func selectInfoFields(attrs []kv) ([]infoField, int) {
	if len(attrs) == 0 {
		return nil, 0
	}
	used := make([]bool, len(attrs))
	result := make([]infoField, 0, len(attrs))
	hidden := 0

	for _, key := range infoHighlightKeys {
		for idx, attr := range attrs {
			if used[idx] || attr.key != key {
				continue
			}
			used[idx] = true
			result = append(result, infoField{label: displayLabel(attr.key), value: formatInfoValue(attr.key, attr.value)})
			break
		}
	}

	for idx, attr := range attrs {
		if used[idx] {
			continue
		}
		if isDebugOnlyKey(attr.key) {
			hidden++
			continue
		}
		result = append(result, infoField{label: displayLabel(attr.key), value: formatInfoValue(attr.key, attr.value)})
	}
	return result, hidden
}

func formatInfoValue(key string, v slog.Value) string {
	v = v.Resolve()
	if v.Kind() == slog.KindBool {
		if v.Bool() {
			return "yes"
		}
		return "no"
	}
	value := formatValue(v)
	if key == "error" && len(value) > 200 {
		value = value[:200] + "…"
	}
	return value
}

func isDebugOnlyKey(key string) bool {
	switch key {
	case "", FieldDriveID, FieldRunID, FieldCorrelationID, "device", "args":
		return true
	}
	return strings.HasSuffix(key, "_path") || strings.HasSuffix(key, "_dir")
}

func displayLabel(key string) string {
	switch key {
	case FieldEventType:
		return "Event"
	case FieldDiscTitle:
		return "Disc"
	case FieldErrorHint:
		return "Hint"
	case "disc_count":
		return "Discs"
	case "progress_percent":
		return "Progress"
	}
	parts := strings.FieldsFunc(key, func(r rune) bool { return r == '_' || r == '-' || r == '.' })
	for i, part := range parts {
		parts[i] = strings.ToUpper(part[:1]) + strings.ToLower(part[1:])
	}
	return strings.Join(parts, " ")
}

package disc

import (
	"bufio"
	"bytes"
	"errors"
	"sort"
	"strconv"
	"strings"
)

// MakeMKV attribute identifiers used in CINFO/TINFO/SINFO lines.
const (
	attrType         = 1
	attrName         = 2
	attrLangCode     = 3
	attrLangName     = 4
	attrCodecShort   = 6
	attrCodecLong    = 7
	attrChapterCount = 8
	attrDuration     = 9
	attrSizeBytes    = 11
	attrChannelCount = 14
	attrSourceFile   = 16
	attrTreeInfo     = 30
	attrVolumeName   = 32
)

// ErrEmptyOutput is returned when makemkvcon produced nothing parseable.
var ErrEmptyOutput = errors.New("makemkv produced empty output")

// splitRobotLine splits "KEY:a,b,\"c,d\"" into KEY and its unquoted fields.
func splitRobotLine(line string) (string, []string, bool) {
	key, payload, ok := strings.Cut(strings.TrimSpace(line), ":")
	if !ok || key == "" {
		return "", nil, false
	}
	var (
		fields  []string
		current strings.Builder
		quoted  bool
	)
	for i := 0; i < len(payload); i++ {
		ch := payload[i]
		switch {
		case ch == '"' && quoted && i+1 < len(payload) && payload[i+1] == '"':
			current.WriteByte('"')
			i++
		case ch == '"':
			quoted = !quoted
		case ch == ',' && !quoted:
			fields = append(fields, current.String())
			current.Reset()
		default:
			current.WriteByte(ch)
		}
	}
	fields = append(fields, current.String())
	return key, fields, true
}

func eachRobotLine(data []byte, fn func(key string, fields []string)) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if key, fields, ok := splitRobotLine(scanner.Text()); ok {
			fn(key, fields)
		}
	}
}

func atoi(value string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	return n, err == nil
}

// ParseInfo builds a FileInfo from `makemkvcon -r info disc:N` output.
func ParseInfo(data []byte) (*FileInfo, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyOutput
	}

	info := &FileInfo{}
	titles := make(map[int]*Title)
	streams := make(map[int]map[int]*Track)

	titleFor := func(id int) *Title {
		title, ok := titles[id]
		if !ok {
			title = &Title{ID: id}
			titles[id] = title
		}
		return title
	}

	eachRobotLine(data, func(key string, fields []string) {
		switch key {
		case "CINFO":
			if len(fields) < 3 {
				return
			}
			attr, ok := atoi(fields[0])
			if !ok {
				return
			}
			switch attr {
			case attrType:
				info.Type = fields[2]
			case attrName:
				info.Name = fields[2]
			case attrVolumeName:
				info.VolumeName = fields[2]
			}
		case "TINFO":
			if len(fields) < 4 {
				return
			}
			id, ok1 := atoi(fields[0])
			attr, ok2 := atoi(fields[1])
			if !ok1 || !ok2 {
				return
			}
			applyTitleAttr(titleFor(id), attr, fields[3])
		case "SINFO":
			if len(fields) < 5 {
				return
			}
			id, ok1 := atoi(fields[0])
			stream, ok2 := atoi(fields[1])
			attr, ok3 := atoi(fields[2])
			if !ok1 || !ok2 || !ok3 {
				return
			}
			titleFor(id)
			byStream, ok := streams[id]
			if !ok {
				byStream = make(map[int]*Track)
				streams[id] = byStream
			}
			track, ok := byStream[stream]
			if !ok {
				track = &Track{StreamID: stream, Type: TrackTypeUnknown}
				byStream[stream] = track
			}
			track.applyStreamAttr(attr, fields[4])
		case "MSG":
			if text, ok := warningText(fields); ok {
				info.Warnings = append(info.Warnings, text)
			}
		}
	})

	ids := make([]int, 0, len(titles))
	for id := range titles {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	info.Titles = make([]Title, 0, len(ids))
	for _, id := range ids {
		title := titles[id]
		streamIDs := make([]int, 0, len(streams[id]))
		for sid := range streams[id] {
			streamIDs = append(streamIDs, sid)
		}
		sort.Ints(streamIDs)
		for _, sid := range streamIDs {
			title.Tracks = append(title.Tracks, *streams[id][sid])
		}
		info.Titles = append(info.Titles, *title)
	}
	return info, nil
}

func applyTitleAttr(title *Title, attr int, value string) {
	switch attr {
	case attrName:
		if value != "" {
			title.Name = value
		}
	case attrChapterCount:
		if n, ok := atoi(value); ok {
			title.Chapters = n
		}
	case attrDuration:
		title.Duration = parseDuration(value)
	case attrSizeBytes:
		if n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			title.SizeBytes = n
		}
	case attrSourceFile:
		title.Playlist = value
	}
}

// parseDuration converts MakeMKV "h:mm:ss" values to seconds.
func parseDuration(value string) int {
	segments := strings.Split(strings.TrimSpace(value), ":")
	if len(segments) != 3 {
		return 0
	}
	total := 0
	for _, segment := range segments {
		n, ok := atoi(segment)
		if !ok {
			return 0
		}
		total = total*60 + n
	}
	return total
}

// warningText returns the text of MSG lines that report read or drive errors.
func warningText(fields []string) (string, bool) {
	if len(fields) < 4 {
		return "", false
	}
	code, ok := atoi(fields[0])
	if !ok {
		return "", false
	}
	switch code {
	case 2003, 5003, 5010:
		text := strings.TrimSpace(fields[3])
		return text, text != ""
	}
	return "", false
}

// ErrorMessage picks the most useful line from makemkvcon output for error reporting.
func ErrorMessage(stdout, stderr []byte) string {
	combined := strings.TrimSpace(string(stderr) + "\n" + string(stdout))
	if combined == "" {
		return ""
	}

	var found string
	eachRobotLine([]byte(combined), func(key string, fields []string) {
		if found != "" || key != "MSG" || len(fields) < 4 {
			return
		}
		text := strings.TrimSpace(fields[3])
		lower := strings.ToLower(text)
		for _, marker := range errorMarkers {
			if strings.Contains(lower, marker) {
				found = text
				return
			}
		}
	})
	if found != "" {
		return found
	}

	for _, line := range strings.Split(combined, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return combined
}

var errorMarkers = []string{
	"too old",
	"registration key",
	"failed",
	"error",
	"copy protection",
	"no disc",
	"not found",
	"timeout",
}

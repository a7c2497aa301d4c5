package disc

import (
	"strconv"
	"strings"
)

// TrackType represents the general classification for a MakeMKV stream.
type TrackType string

const (
	TrackTypeUnknown  TrackType = "unknown"
	TrackTypeVideo    TrackType = "video"
	TrackTypeAudio    TrackType = "audio"
	TrackTypeSubtitle TrackType = "subtitle"
)

// Track captures the parsed metadata for a MakeMKV stream associated with a title.
type Track struct {
	StreamID     int       `json:"stream_id"`
	Type         TrackType `json:"type"`
	CodecShort   string    `json:"codec_short,omitempty"`
	CodecLong    string    `json:"codec_long,omitempty"`
	Language     string    `json:"language,omitempty"`
	LanguageName string    `json:"language_name,omitempty"`
	Name         string    `json:"name,omitempty"`
	ChannelCount int       `json:"channel_count,omitempty"`
}

func parseTrackType(value string) TrackType {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "video":
		return TrackTypeVideo
	case "audio":
		return TrackTypeAudio
	case "subtitles", "subtitle":
		return TrackTypeSubtitle
	default:
		return TrackTypeUnknown
	}
}

// applyStreamAttr stores one SINFO attribute on the track.
func (t *Track) applyStreamAttr(attr int, value string) {
	switch attr {
	case attrType:
		t.Type = parseTrackType(value)
	case attrLangCode:
		t.Language = value
	case attrLangName:
		t.LanguageName = value
	case attrCodecShort:
		t.CodecShort = value
	case attrCodecLong:
		t.CodecLong = value
	case attrChannelCount:
		if n, err := strconv.Atoi(value); err == nil {
			t.ChannelCount = n
		}
	case attrTreeInfo:
		if t.Name == "" {
			t.Name = value
		}
	}
}

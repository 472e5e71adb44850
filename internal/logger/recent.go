package logger

import (
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

const defaultRecentSize = 500

// Entry is a decoded log event kept for the status server.
type Entry struct {
	Time      string         `json:"time"`
	Level     string         `json:"level"`
	Component string         `json:"component,omitempty"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Recent is an io.Writer sink that remembers the latest log events.
type Recent struct {
	buffer *RingBuffer[Entry]
}

// NewRecent creates a sink keeping up to size entries.
func NewRecent(size int) *Recent {
	if size <= 0 {
		size = defaultRecentSize
	}
	return &Recent{buffer: NewRingBuffer[Entry](size)}
}

// Write implements io.Writer for zerolog JSON events. Malformed events are dropped.
func (r *Recent) Write(p []byte) (int, error) {
	var raw map[string]any
	if err := json.Unmarshal(p, &raw); err != nil {
		return len(p), nil //nolint:nilerr // a log sink must never fail the logger
	}

	entry := Entry{Fields: make(map[string]any, len(raw))}
	for k, v := range raw {
		s, _ := v.(string)
		switch k {
		case zerolog.TimestampFieldName:
			entry.Time = s
		case zerolog.LevelFieldName:
			entry.Level = s
		case zerolog.MessageFieldName:
			entry.Message = s
		case "component":
			entry.Component = s
		default:
			entry.Fields[k] = v
		}
	}
	r.buffer.Push(entry)
	return len(p), nil
}

// Entries returns buffered entries at or above minLevel, oldest first.
func (r *Recent) Entries(minLevel zerolog.Level) []Entry {
	all := r.buffer.Snapshot()
	out := all[:0]
	for _, e := range all {
		lvl, err := zerolog.ParseLevel(e.Level)
		if err != nil || lvl >= minLevel {
			out = append(out, e)
		}
	}
	return out
}

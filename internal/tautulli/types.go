package tautulli

import (
	"bytes"
	"strconv"

	json "github.com/goccy/go-json"
)

type envelope struct {
	Response struct {
		Result  string          `json:"result"`
		Message *string         `json:"message"`
		Data    json.RawMessage `json:"data"`
	} `json:"response"`
}

type historyPage struct {
	RecordsFiltered int            `json:"recordsFiltered"`
	Data            []historyEntry `json:"data"`
}

type historyEntry struct {
	RatingKey            flexString `json:"rating_key"`
	GrandparentRatingKey flexString `json:"grandparent_rating_key"`
	Stopped              int64      `json:"stopped"`
	User                 string     `json:"user"`
}

// key returns the show key for episodes and the item key otherwise.
func (e historyEntry) key() string {
	if e.GrandparentRatingKey != "" {
		return string(e.GrandparentRatingKey)
	}
	return string(e.RatingKey)
}

type metadata struct {
	GUID  string  `json:"guid"`
	Title string  `json:"title"`
	Year  flexInt `json:"year"`
}

// flexString accepts JSON strings and numbers; Tautulli mixes both for keys.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = flexString(str)
		return nil
	}
	*s = flexString(data)
	return nil
}

// flexInt accepts numbers, numeric strings and empty strings.
type flexInt int

func (i *flexInt) UnmarshalJSON(data []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(data); err != nil {
		return err
	}
	if s == "" {
		*i = 0
		return nil
	}
	n, err := strconv.Atoi(string(s))
	if err != nil {
		*i = 0
		return nil //nolint:nilerr // unknown years are treated as missing
	}
	*i = flexInt(n)
	return nil
}

package main

import (
	"encoding/json"
	"io"

	"github.com/genricoloni/nowplaying/internal/domain"
)

// jsonSink writes one JSON object per media change
type jsonSink struct {
	enc *json.Encoder
}

func newJSONSink(w io.Writer) *jsonSink {
	return &jsonSink{enc: json.NewEncoder(w)}
}

func (s *jsonSink) Publish(props domain.MediaProps) error {
	return s.enc.Encode(props)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// snapshot is the output of "now --status"
type snapshot struct {
	Media  domain.MediaProps   `json:"media"`
	Status domain.PlayerStatus `json:"status"`
}

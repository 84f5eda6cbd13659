package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"regexp"
	"strings"
)

var codeFence = regexp.MustCompile("```(?:json)?\\n?")

// stripCodeFences removes markdown fence markers the model sometimes wraps JSON in.
func stripCodeFences(raw string) string {
	return strings.TrimSpace(codeFence.ReplaceAllString(raw, ""))
}

// decodeStrict decodes exactly one JSON value into v. Unknown fields and
// trailing data are errors.
func decodeStrict(raw string, v interface{}) error {
	dec := json.NewDecoder(strings.NewReader(stripCodeFences(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after JSON value")
	}
	return nil
}

func trimReply(raw string) string {
	return strings.TrimSpace(raw)
}

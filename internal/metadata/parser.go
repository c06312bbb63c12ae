package metadata

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
)

// FlexInt is an int that also accepts JSON string encodings ("3").
// Positions and group ids occasionally arrive that way from hand-edited
// metadata.
type FlexInt int

// FlexIntPtr is a convenience for building field literals.
func FlexIntPtr(v int) *FlexInt {
	f := FlexInt(v)
	return &f
}

func (f FlexInt) MarshalJSON() ([]byte, error) {
	return json.Marshal(int(f))
}

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case float64:
		*f = FlexInt(int(v))
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%q is not an integer", v)
		}
		*f = FlexInt(parsed)
	case nil:
		*f = FlexInt(0)
	default:
		return fmt.Errorf("%v (%T) is not an integer", raw, raw)
	}
	return nil
}

// Parser converts raw metadata strings from the API into Models.
// Unparsable content yields the empty model: the metadata column is
// user-editable and broken JSON must not poison a state pull.
type Parser struct {
	logger *log.Logger
}

// NewParser returns a Parser. A nil logger discards parse warnings.
func NewParser(logger *log.Logger) *Parser {
	return &Parser{logger: logger}
}

// Parse converts a raw metadata string to a Model.
func (p *Parser) Parse(raw string) Model {
	if strings.TrimSpace(raw) == "" {
		return Model{}
	}
	var model Model
	if err := json.Unmarshal([]byte(raw), &model); err != nil {
		if p.logger != nil {
			p.logger.Printf("Warning: metadata could not be parsed as valid JSON: %v", err)
		}
		return Model{}
	}
	return model
}

// ParseTags splits the pipe-delimited tags string the API returns.
func ParseTags(raw string) []string {
	if raw == "" {
		return nil
	}
	return strings.Split(raw, "|")
}

// ParseTagIDs splits the comma-delimited tag id string the API returns.
// Malformed entries invalidate the whole list, mirroring tag parsing
// being best-effort.
func ParseTagIDs(raw string) []int {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]int, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil
		}
		ids = append(ids, id)
	}
	return ids
}

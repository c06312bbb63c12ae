package metadata

import (
	"encoding/json"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Value is a metadata field value: either a single string or, for
// multi-selects, a list of strings. Numbers in source documents are
// coerced to strings, matching how eLabFTW stores field values.
type Value struct {
	single string
	list   []string
	isList bool
}

// StringValue returns a single-string Value.
func StringValue(s string) Value {
	return Value{single: s}
}

// ListValue returns a multi-value Value.
func ListValue(values ...string) Value {
	return Value{list: values, isList: true}
}

// IsList reports whether the value holds multiple strings.
func (v Value) IsList() bool {
	return v.isList
}

// IsEmpty reports whether the value is the empty string or an empty list.
func (v Value) IsEmpty() bool {
	if v.isList {
		return len(v.list) == 0
	}
	return v.single == ""
}

// String returns the single value, or for lists a comma-joined rendering.
func (v Value) String() string {
	if !v.isList {
		return v.single
	}
	out := ""
	for i, item := range v.list {
		if i > 0 {
			out += ", "
		}
		out += item
	}
	return out
}

// List returns the underlying values. A single value becomes a one-element
// list; the empty single value becomes an empty list.
func (v Value) List() []string {
	if v.isList {
		out := make([]string, len(v.list))
		copy(out, v.list)
		return out
	}
	if v.single == "" {
		return nil
	}
	return []string{v.single}
}

// Equal reports deep equality of two values.
func (v Value) Equal(o Value) bool {
	if v.isList != o.isList {
		return false
	}
	if !v.isList {
		return v.single == o.single
	}
	if len(v.list) != len(o.list) {
		return false
	}
	for i := range v.list {
		if v.list[i] != o.list[i] {
			return false
		}
	}
	return true
}

// Raw returns the value as it appears on the wire: a string or a
// []string. Used when building diffable dictionaries.
func (v Value) Raw() any {
	if v.isList {
		return v.List()
	}
	return v.single
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Raw())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	return v.fromAny(raw)
}

func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	return v.fromAny(raw)
}

func (v *Value) fromAny(raw any) error {
	switch val := raw.(type) {
	case nil:
		*v = Value{}
	case string:
		*v = Value{single: val}
	case bool:
		*v = Value{single: strconv.FormatBool(val)}
	case int:
		*v = Value{single: strconv.Itoa(val)}
	case int64:
		*v = Value{single: strconv.FormatInt(val, 10)}
	case float64:
		*v = Value{single: formatFloat(val)}
	case json.Number:
		*v = Value{single: val.String()}
	case []any:
		items := make([]string, 0, len(val))
		for _, item := range val {
			var inner Value
			if err := inner.fromAny(item); err != nil {
				return err
			}
			if inner.isList {
				return fmt.Errorf("nested lists are not valid field values")
			}
			items = append(items, inner.single)
		}
		*v = Value{list: items, isList: true}
	default:
		return fmt.Errorf("value %v (%T) is not a string or list of strings", raw, raw)
	}
	return nil
}

func formatFloat(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

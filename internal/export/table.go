// Package export turns pulled server objects into tabular output: JSON,
// CSV or a SQLite table, written to stdout, a local file or S3.
package export

import (
	"fmt"
	"sort"

	"elabctl/internal/state"
)

// ExpandMode controls what a metadata field contributes to its column.
type ExpandMode string

const (
	// ExpandNone leaves metadata out of the table.
	ExpandNone ExpandMode = "none"
	// ExpandValue puts the bare field value in the cell.
	ExpandValue ExpandMode = "value"
	// ExpandUnit puts the field unit in the cell.
	ExpandUnit ExpandMode = "unit"
	// ExpandCombined puts "value unit" in the cell.
	ExpandCombined ExpandMode = "combined"
)

// ParseExpandMode validates a mode given on the command line.
func ParseExpandMode(s string) (ExpandMode, error) {
	switch ExpandMode(s) {
	case ExpandNone, ExpandValue, ExpandUnit, ExpandCombined:
		return ExpandMode(s), nil
	}
	return "", fmt.Errorf("unknown metadata mode %q, expected none, value, unit or combined", s)
}

// Table is the flattened view shared by the CSV and SQLite writers. The
// fixed columns come first; metadata columns follow, sorted by name so
// the union over heterogeneous objects is stable.
type Table struct {
	Columns []string
	Rows    []map[string]string
}

var baseColumns = []string{"_id", "_kind", "_name", "title"}

// BuildTable flattens the objects. Every metadata field seen on any
// object becomes a column; cells for objects lacking the field stay
// empty.
func BuildTable(objects []state.Object, mode ExpandMode) *Table {
	fieldSet := make(map[string]struct{})
	rows := make([]map[string]string, 0, len(objects))
	for _, obj := range objects {
		row := map[string]string{
			"_id":   fmt.Sprintf("%d", obj.ID()),
			"_kind": string(obj.Kind),
			"_name": obj.Name(),
		}
		if title, ok := obj.Data["title"].(string); ok {
			row["title"] = title
		}
		if mode != ExpandNone {
			for name, cell := range fieldCells(obj, mode) {
				if reserved(name) {
					continue
				}
				fieldSet[name] = struct{}{}
				row[name] = cell
			}
		}
		rows = append(rows, row)
	}

	columns := append([]string(nil), baseColumns...)
	fields := make([]string, 0, len(fieldSet))
	for name := range fieldSet {
		fields = append(fields, name)
	}
	sort.Strings(fields)
	return &Table{Columns: append(columns, fields...), Rows: rows}
}

func fieldCells(obj state.Object, mode ExpandMode) map[string]string {
	switch mode {
	case ExpandValue:
		return obj.Meta.FieldValues()
	case ExpandUnit:
		return obj.Meta.FieldUnits()
	default:
		return obj.Meta.FieldValuesAndUnits()
	}
}

func reserved(name string) bool {
	for _, col := range baseColumns {
		if name == col {
			return true
		}
	}
	return false
}

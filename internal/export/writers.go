package export

import (
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"elabctl/internal/state"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// WriteJSON writes the raw server representations, in the same
// {"type", "data"} shape the state file uses.
func WriteJSON(w io.Writer, objects []state.Object, indent bool) error {
	type entry struct {
		Type string         `json:"type"`
		Data map[string]any `json:"data"`
	}
	entries := make([]entry, 0, len(objects))
	for _, obj := range objects {
		entries = append(entries, entry{Type: string(obj.Kind), Data: obj.Data})
	}
	enc := json.NewEncoder(w)
	if indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(entries)
}

// WriteCSV writes the table with a header row. Cells for columns a row
// does not carry are left empty.
func WriteCSV(w io.Writer, table *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(table.Columns); err != nil {
		return err
	}
	record := make([]string, len(table.Columns))
	for _, row := range table.Rows {
		for i, col := range table.Columns {
			record[i] = row[col]
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSQLite creates the database file at path and fills one table with
// the rows. An existing table of the same name is replaced.
func WriteSQLite(path, tableName string, table *Table) error {
	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer conn.Close()

	quoted := make([]string, len(table.Columns))
	placeholders := make([]string, len(table.Columns))
	for i, col := range table.Columns {
		quoted[i] = quoteIdent(col)
		placeholders[i] = "?"
	}
	if _, err := conn.Exec("DROP TABLE IF EXISTS " + quoteIdent(tableName)); err != nil {
		return err
	}
	create := fmt.Sprintf("CREATE TABLE %s (%s TEXT)",
		quoteIdent(tableName), strings.Join(quoted, " TEXT, "))
	if _, err := conn.Exec(create); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	tx, err := conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(tableName), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))
	stmt, err := tx.Prepare(insert)
	if err != nil {
		return err
	}
	defer stmt.Close()
	args := make([]any, len(table.Columns))
	for _, row := range table.Rows {
		for i, col := range table.Columns {
			args[i] = row[col]
		}
		if _, err := stmt.Exec(args...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"elabctl/internal/export"
	"elabctl/internal/metadata"
	"elabctl/internal/state"
)

var getCmd = &cobra.Command{
	Use:   "get <kind> [id]",
	Short: "Download objects and write them as JSON, CSV or SQLite",
	Long: `Pull objects of one kind from the server and write them out. The
default is JSON on stdout; --format selects csv or sqlite, --out a
file or an s3://bucket/key target.

With an id only that object is fetched. --category and --ids narrow a
listing; --metadata controls whether metadata fields become columns and
whether a cell holds the value, the unit or both.

Unlike plan and apply, get sees every object on the server, managed or
not.`,
	Args: cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		kind, err := kindFromArg(args[0])
		if err != nil {
			fatal(err)
		}
		formatArg, _ := cmd.Flags().GetString("format")
		format, err := export.ParseFormat(formatArg)
		if err != nil {
			fatal(err)
		}
		modeArg, _ := cmd.Flags().GetString("metadata")
		mode, err := export.ParseExpandMode(modeArg)
		if err != nil {
			fatal(err)
		}
		out, _ := cmd.Flags().GetString("out")
		tableName, _ := cmd.Flags().GetString("table")
		indent, _ := cmd.Flags().GetBool("indent")
		category, _ := cmd.Flags().GetString("category")
		idsArg, _ := cmd.Flags().GetString("ids")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		logger := newLogger()
		client, err := newClient(logger)
		if err != nil {
			fatal(err)
		}

		parser := metadata.NewParser(warnLogger())
		var objects []state.Object
		if len(args) == 2 {
			id, err := strconv.Atoi(args[1])
			if err != nil {
				fatal(fmt.Errorf("id %q is not a number", args[1]))
			}
			data, err := client.Get(ctx, kind, id)
			if err != nil {
				fatal(err)
			}
			objects = []state.Object{state.NewObject(kind, data, parser)}
		} else {
			listed, err := client.List(ctx, kind)
			if err != nil {
				fatal(err)
			}
			for _, data := range listed {
				objects = append(objects, state.NewObject(kind, data, parser))
			}
		}

		objects, err = filterObjects(objects, category, idsArg)
		if err != nil {
			fatal(err)
		}

		err = export.Export(ctx, objects, out, export.Options{
			Format:    format,
			Expand:    mode,
			Indent:    indent,
			TableName: tableName,
		})
		if err != nil {
			fatal(err)
		}
	},
}

// filterObjects narrows a listing by category title and by explicit ids.
func filterObjects(objects []state.Object, category, idsArg string) ([]state.Object, error) {
	ids := make(map[int]struct{})
	if idsArg != "" {
		for _, part := range strings.Split(idsArg, ",") {
			id, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return nil, fmt.Errorf("--ids: %q is not a number", part)
			}
			ids[id] = struct{}{}
		}
	}
	if category == "" && len(ids) == 0 {
		return objects, nil
	}
	var out []state.Object
	for _, obj := range objects {
		if len(ids) > 0 {
			if _, ok := ids[obj.ID()]; !ok {
				continue
			}
		}
		if category != "" && !matchesCategory(obj, category) {
			continue
		}
		out = append(out, obj)
	}
	return out, nil
}

func matchesCategory(obj state.Object, category string) bool {
	if title, ok := obj.Data["category_title"].(string); ok && title == category {
		return true
	}
	switch v := obj.Data["category"].(type) {
	case string:
		return v == category
	case float64:
		return strconv.Itoa(int(v)) == category
	}
	return false
}

func init() {
	getCmd.Flags().String("format", "json", "Output format: json, csv or sqlite")
	getCmd.Flags().String("out", "-", "Destination: -, a file path or s3://bucket/key")
	getCmd.Flags().String("metadata", "combined", "Metadata columns: none, value, unit or combined")
	getCmd.Flags().String("table", "objects", "SQLite table name")
	getCmd.Flags().Bool("indent", false, "Pretty-print JSON output")
	getCmd.Flags().String("category", "", "Keep only objects whose category matches")
	getCmd.Flags().String("ids", "", "Comma-separated list of ids to keep")
	rootCmd.AddCommand(getCmd)
}

package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"elabctl/internal/state"
)

// Format selects the output encoding.
type Format string

const (
	FormatJSON   Format = "json"
	FormatCSV    Format = "csv"
	FormatSQLite Format = "sqlite"
)

// ParseFormat validates a format given on the command line.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON, FormatCSV, FormatSQLite:
		return Format(s), nil
	}
	return "", fmt.Errorf("unknown format %q, expected json, csv or sqlite", s)
}

// Options bundles the export settings.
type Options struct {
	Format Format
	// Expand controls the metadata columns of tabular formats.
	Expand ExpandMode
	// Indent pretty-prints JSON output.
	Indent bool
	// TableName names the SQLite table. Empty means "objects".
	TableName string
}

// Export writes the objects to the target in the requested format. The
// target is "-" for stdout, an s3://bucket/key URI, or a local path.
func Export(ctx context.Context, objects []state.Object, target string, opts Options) error {
	if opts.Format == FormatSQLite {
		return exportSQLite(ctx, objects, target, opts)
	}
	w, err := openTarget(ctx, target)
	if err != nil {
		return err
	}
	switch opts.Format {
	case FormatCSV:
		err = WriteCSV(w, BuildTable(objects, opts.Expand))
	default:
		err = WriteJSON(w, objects, opts.Indent)
	}
	if err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// exportSQLite builds the database in place for local targets. Stdout
// and S3 get the bytes of a temporary database file.
func exportSQLite(ctx context.Context, objects []state.Object, target string, opts Options) error {
	tableName := opts.TableName
	if tableName == "" {
		tableName = "objects"
	}
	table := BuildTable(objects, opts.Expand)

	if target != "-" && target != "" && !isS3(target) {
		return WriteSQLite(target, tableName, table)
	}

	tmp, err := os.CreateTemp("", "elabctl-export-*.db")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)
	if err := WriteSQLite(tmpPath, tableName, table); err != nil {
		return err
	}

	src, err := os.Open(tmpPath)
	if err != nil {
		return err
	}
	defer src.Close()
	w, err := openTarget(ctx, target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, src); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func isS3(target string) bool {
	return strings.HasPrefix(target, "s3://")
}

func parseS3URI(uri string) (bucket, key string, err error) {
	rest := strings.TrimPrefix(uri, "s3://")
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid S3 URI %q, expected s3://bucket/key", uri)
	}
	return bucket, key, nil
}

func openTarget(ctx context.Context, target string) (io.WriteCloser, error) {
	switch {
	case target == "" || target == "-":
		return nopCloser{os.Stdout}, nil
	case isS3(target):
		bucket, key, err := parseS3URI(target)
		if err != nil {
			return nil, err
		}
		return &s3Writer{ctx: ctx, bucket: bucket, key: key}, nil
	default:
		if dir := filepath.Dir(target); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
		return os.Create(target)
	}
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// s3Writer buffers the output and uploads it in one PutObject on Close.
type s3Writer struct {
	ctx    context.Context
	bucket string
	key    string
	buf    bytes.Buffer
}

func (w *s3Writer) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *s3Writer) Close() error {
	cfg, err := awsconfig.LoadDefaultConfig(w.ctx)
	if err != nil {
		return fmt.Errorf("load AWS config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	_, err = client.PutObject(w.ctx, &s3.PutObjectInput{
		Bucket: aws.String(w.bucket),
		Key:    aws.String(w.key),
		Body:   bytes.NewReader(w.buf.Bytes()),
	})
	if err != nil {
		return fmt.Errorf("upload to s3://%s/%s: %w", w.bucket, w.key, err)
	}
	return nil
}

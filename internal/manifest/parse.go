package manifest

import (
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseFiles reads manifests from a YAML file or, for a directory, from
// every .yaml and .yml file under it. A file may hold a single manifest
// mapping, a list of manifests, or several YAML documents.
func ParseFiles(path string, logger *log.Logger) ([]Manifest, error) {
	files, err := manifestFiles(path)
	if err != nil {
		return nil, err
	}
	var manifests []Manifest
	for _, file := range files {
		if logger != nil {
			logger.Printf("Parsing definition file: %s", file)
		}
		parsed, err := parseFile(file)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		manifests = append(manifests, parsed...)
	}
	return manifests, nil
}

// ParseIndex is the usual entry point: parse then index.
func ParseIndex(path string, logger *log.Logger) (*Index, error) {
	manifests, err := ParseFiles(path, logger)
	if err != nil {
		return nil, err
	}
	return NewIndex(manifests)
}

func manifestFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(p)) {
		case ".yaml", ".yml":
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func parseFile(path string) ([]Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseReader(f)
}

// ParseReader decodes manifests from a stream of YAML documents.
func ParseReader(r io.Reader) ([]Manifest, error) {
	var manifests []Manifest
	decoder := yaml.NewDecoder(r)
	for {
		var doc yaml.Node
		if err := decoder.Decode(&doc); err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		root := &doc
		if root.Kind == yaml.DocumentNode && len(root.Content) == 1 {
			root = root.Content[0]
		}
		switch root.Kind {
		case yaml.MappingNode:
			var m Manifest
			if err := root.Decode(&m); err != nil {
				return nil, err
			}
			manifests = append(manifests, m)
		case yaml.SequenceNode:
			var list []Manifest
			if err := root.Decode(&list); err != nil {
				return nil, err
			}
			manifests = append(manifests, list...)
		default:
			return nil, fmt.Errorf("line %d: expected a manifest or a list of manifests", root.Line)
		}
	}
	return manifests, nil
}

package ingest

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LoadDocuments reads .md, .markdown and .txt files from paths, descending
// into directories. Markdown is reduced to plain text. Documents are named
// by their path relative to the argument they were found under.
func LoadDocuments(paths []string) ([]Document, error) {
	var docs []Document
	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("ingest: %w", err)
		}
		if !info.IsDir() {
			doc, err := readDocument(root, filepath.Base(root))
			if err != nil {
				return nil, err
			}
			docs = append(docs, doc)
			continue
		}

		var files []string
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && supported(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("ingest: walk %s: %w", root, err)
		}
		sort.Strings(files)
		for _, path := range files {
			name, _ := filepath.Rel(root, path)
			doc, err := readDocument(path, filepath.ToSlash(name))
			if err != nil {
				return nil, err
			}
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

func supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown", ".txt":
		return true
	}
	return false
}

func readDocument(path, name string) (Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("ingest: %w", err)
	}
	content := string(raw)
	if ext := strings.ToLower(filepath.Ext(path)); ext == ".md" || ext == ".markdown" {
		content = MarkdownText(raw)
	}
	return Document{Name: name, Content: content}, nil
}

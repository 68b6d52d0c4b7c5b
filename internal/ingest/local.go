package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type localConfig struct {
	Dir      string   `json:"dir"`
	Includes []string `json:"includes"`
	Excludes []string `json:"excludes"`
}

type LocalSource struct {
	dir      string
	includes []string
	excludes []string
}

func init() {
	Register("local", createLocalSource)
}

func createLocalSource(args interface{}) (Source, error) {
	cfg := &localConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	if cfg.Dir == "" {
		return nil, fmt.Errorf("local source dir is required")
	}
	return NewLocalSource(cfg.Dir, cfg.Includes, cfg.Excludes), nil
}

func NewLocalSource(dir string, includes, excludes []string) *LocalSource {
	if len(includes) == 0 {
		includes = []string{"**/*"}
	}
	return &LocalSource{dir: dir, includes: includes, excludes: excludes}
}

func (s *LocalSource) Type() string {
	return "local"
}

// Dir is the root directory the source reads from.
func (s *LocalSource) Dir() string {
	return s.dir
}

func (s *LocalSource) Extract(ctx context.Context) ([]Document, error) {
	root, err := filepath.Abs(s.dir)
	if err != nil {
		return nil, err
	}
	var docs []Document
	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if info.IsDir() {
			if rel != "." && s.matchAny(s.excludes, rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}
		if !s.matchAny(s.includes, rel) || s.matchAny(s.excludes, rel) || !Supported(rel) {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", rel, err)
		}
		content, err := Parse(rel, data)
		if err != nil {
			logutil.GetLogger(ctx).Warn("skip unreadable document", zap.String("file", rel), zap.Error(err))
			return nil
		}
		if content == "" {
			logutil.GetLogger(ctx).Debug("skip empty document", zap.String("file", rel))
			return nil
		}
		docs = append(docs, Document{Name: rel, Text: content})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", s.dir, err)
	}
	return docs, nil
}

func (s *LocalSource) matchAny(patterns []string, rel string) bool {
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}

package loader

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// LocalLoader walks a working tree on disk. repoURL is the directory path;
// the token is ignored. Hidden files and directories are skipped.
type LocalLoader struct {
	filter *Filter
}

func NewLocalLoader(filter *Filter) *LocalLoader {
	if filter == nil {
		filter = NewFilter()
	}
	return &LocalLoader{filter: filter}
}

func (l *LocalLoader) Load(ctx context.Context, root, _ string) ([]Document, error) {
	absPath, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	var docs []Document
	err = filepath.WalkDir(absPath, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walk error at %s: %w", p, err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		relPath, err := filepath.Rel(absPath, p)
		if err != nil {
			return fmt.Errorf("failed to get relative path for %s: %w", p, err)
		}
		if relPath == "." {
			return nil
		}
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") || l.filter.Excluded(relPath+"/x") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") || !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if l.filter.Skip(relPath, info.Size()) {
			return nil
		}

		content, err := os.ReadFile(p)
		if err != nil {
			log.Warn().Err(&FetchError{Path: relPath, Err: err}).Msg("Skipping file")
			return nil
		}
		if !IsText(content) {
			log.Warn().Str("path", relPath).Msg("Skipping binary file")
			return nil
		}
		docs = append(docs, Document{Path: relPath, Content: string(content), Language: Language(relPath)})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sortDocuments(docs)
	return docs, nil
}

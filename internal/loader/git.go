package loader

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/ishaan812/gitsage/internal/git"
)

// GitLoader shallow-clones the repository into memory with go-git. It costs
// one clone instead of one request per file, which suits large repositories
// and hosts other than GitHub.
type GitLoader struct {
	filter *Filter
}

func NewGitLoader(filter *Filter) *GitLoader {
	if filter == nil {
		filter = NewFilter()
	}
	return &GitLoader{filter: filter}
}

func (l *GitLoader) Load(ctx context.Context, repoURL, token string) ([]Document, error) {
	repo, err := git.Clone(ctx, repoURL, token, 1)
	if err != nil {
		return nil, err
	}
	return readRepository(repo, l.filter)
}

func readRepository(repo *git.Repository, filter *Filter) ([]Document, error) {
	var docs []Document
	err := repo.Files(filter.Skip, func(f git.File) error {
		if f.Binary || !IsText(f.Content) {
			log.Warn().Str("path", f.Path).Msg("Skipping binary file")
			return nil
		}
		docs = append(docs, Document{Path: f.Path, Content: string(f.Content), Language: Language(f.Path)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortDocuments(docs)
	return docs, nil
}

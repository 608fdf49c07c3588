package loader

import (
	"context"
	"fmt"

	"github.com/poiesic/groundwork/core"
)

// TextLoader wraps literal text in a single record.
type TextLoader struct{}

// NewTextLoader creates a text loader.
func NewTextLoader() *TextLoader {
	return &TextLoader{}
}

func (TextLoader) Load(_ context.Context, source core.Source) (*core.LoadResult, error) {
	return localResult(source.Identifier)
}

// QnALoader renders a question and answer pair as "Q: ...\nA: ...".
type QnALoader struct{}

// NewQnALoader creates a Q&A loader.
func NewQnALoader() *QnALoader {
	return &QnALoader{}
}

func (QnALoader) Load(_ context.Context, source core.Source) (*core.LoadResult, error) {
	if source.Question == "" || source.Answer == "" {
		return nil, fmt.Errorf("%w: question and answer are required", core.ErrLoad)
	}
	return localResult(fmt.Sprintf("Q: %s\nA: %s", source.Question, source.Answer))
}

func localResult(content string) (*core.LoadResult, error) {
	if content == "" {
		return nil, fmt.Errorf("%w: %w", core.ErrLoad, core.ErrEmptyContent)
	}
	return &core.LoadResult{
		SourceID: core.SourceID(core.LocalSourceURL, content),
		Records: []core.LoadedRecord{{
			Content:  content,
			Metadata: core.Metadata{core.MetaURL: core.LocalSourceURL},
		}},
	}, nil
}

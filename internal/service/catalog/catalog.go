// Package catalog answers which section a question belongs to and what type it is.
package catalog

import (
	"context"
	"fmt"
	"sort"

	"github.com/samber/lo"

	"github.com/jwalitptl/intake-api/internal/model"
	"github.com/jwalitptl/intake-api/internal/repository"
)

// Catalog is an immutable snapshot of the question reference data.
type Catalog struct {
	questions map[int64]*model.Question
	sections  []int64
}

func New(questions []*model.Question) *Catalog {
	byID := lo.SliceToMap(questions, func(q *model.Question) (int64, *model.Question) { return q.ID, q })
	sections := lo.Uniq(lo.Map(questions, func(q *model.Question, _ int) int64 { return q.SectionID }))
	sort.Slice(sections, func(i, j int) bool { return sections[i] < sections[j] })
	return &Catalog{questions: byID, sections: sections}
}

func (c *Catalog) SectionFor(questionID int64) (int64, bool) {
	q, ok := c.questions[questionID]
	if !ok {
		return 0, false
	}
	return q.SectionID, true
}

func (c *Catalog) TypeOf(questionID int64) (string, bool) {
	q, ok := c.questions[questionID]
	if !ok {
		return "", false
	}
	return q.Type, true
}

func (c *Catalog) HasSection(sectionID int64) bool {
	return lo.Contains(c.sections, sectionID)
}

// FirstSection is the lowest section id, the one a new patient starts in.
func (c *Catalog) FirstSection() (int64, bool) {
	if len(c.sections) == 0 {
		return 0, false
	}
	return c.sections[0], true
}

func (c *Catalog) Sections() []int64 {
	return append([]int64(nil), c.sections...)
}

// Loader reads the whole catalog in one query. Callers load once per operation.
type Loader struct {
	repo repository.QuestionRepository
}

func NewLoader(repo repository.QuestionRepository) *Loader {
	return &Loader{repo: repo}
}

func (l *Loader) Load(ctx context.Context) (*Catalog, error) {
	questions, err := l.repo.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load question catalog: %w", err)
	}
	return New(questions), nil
}

package services

import "gorm.io/gorm"

const (
	defaultPageSize = 100
	maxPageSize     = 500
)

// Page is an offset window. Zero values mean the first default-sized page.
type Page struct {
	Skip  int
	Limit int
}

func (p Page) apply(q *gorm.DB) *gorm.DB {
	skip, limit := p.Skip, p.Limit
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return q.Offset(skip).Limit(limit)
}

func validScore(v *int) bool {
	return v == nil || (*v >= 1 && *v <= 5)
}

func validScores(named map[string]*int) error {
	for name, v := range named {
		if !validScore(v) {
			return NewValidationError("%s must be between 1 and 5", name)
		}
	}
	return nil
}

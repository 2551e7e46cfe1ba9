package model

import "time"

// Timestamps is embedded by every persisted row.
type Timestamps struct {
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Pagination represents common pagination parameters
type Pagination struct {
	Page     int `json:"page" form:"page" validate:"omitempty,min=1"`
	PageSize int `json:"page_size" form:"page_size" validate:"omitempty,min=1"`
}

// Normalize clamps the page to 1.. and the size to 1..maxSize, using def when unset.
func (p *Pagination) Normalize(def, maxSize int) {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = def
	}
	if maxSize > 0 && p.PageSize > maxSize {
		p.PageSize = maxSize
	}
}

func (p Pagination) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.PageSize
}

func (p Pagination) Limit() int {
	return p.PageSize
}

// Page is one page of results plus the metadata a client needs to walk the rest.
type Page[T any] struct {
	Data     []T `json:"data"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
	LastPage int `json:"last_page"`
}

func NewPage[T any](data []T, total int, p Pagination) *Page[T] {
	if data == nil {
		data = []T{}
	}
	last := 1
	if p.PageSize > 0 && total > 0 {
		last = (total + p.PageSize - 1) / p.PageSize
	}
	return &Page[T]{
		Data:     data,
		Total:    total,
		Page:     p.Page,
		PageSize: p.PageSize,
		LastPage: last,
	}
}

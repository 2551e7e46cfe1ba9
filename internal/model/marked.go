package model

// MarkResult reports a soft outcome instead of an error.
type MarkResult string

const (
	MarkResultMarked        MarkResult = "marked"
	MarkResultUnmarked      MarkResult = "unmarked"
	MarkResultAlreadyMarked MarkResult = "already_marked"
	MarkResultNotMarked     MarkResult = "not_marked"
	MarkResultNotFound      MarkResult = "not_found"
)

func (r MarkResult) OK() bool {
	return r == MarkResultMarked || r == MarkResultUnmarked
}

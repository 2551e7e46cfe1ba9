package model

// Fixed question ids the listing projection reads.
const (
	QuestionIDName     int64 = 1
	QuestionIDHospital int64 = 2
)

// Question types
const (
	QuestionTypeText        = "text"
	QuestionTypeChoice      = "choice"
	QuestionTypeMultiChoice = "multi_choice"
	QuestionTypeNumeric     = "numeric"
	QuestionTypeDate        = "date"
	QuestionTypeFiles       = "files"
)

// Question is read-only reference data.
type Question struct {
	ID        int64  `json:"id" db:"id"`
	SectionID int64  `json:"section_id" db:"section_id"`
	Type      string `json:"type" db:"type"`
	Mandatory bool   `json:"mandatory" db:"mandatory"`
	Label     string `json:"label" db:"label"`
}

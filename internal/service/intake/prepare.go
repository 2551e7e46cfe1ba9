package intake

import (
	"context"

	"github.com/goccy/go-json"

	"github.com/jwalitptl/intake-api/internal/model"
	"github.com/jwalitptl/intake-api/internal/service/catalog"
	"github.com/jwalitptl/intake-api/pkg/storage"
)

// preparedAnswer is an answer value in stored form, not yet bound to a patient.
type preparedAnswer struct {
	QuestionID int64
	SectionID  int64
	Variant    model.Variant
	Value      string
	// DropsOther marks a primary sent without an other value; a stored other row
	// for the same question is removed.
	DropsOther bool
}

func (p preparedAnswer) key() model.AnswerKey {
	return model.AnswerKey{QuestionID: p.QuestionID, Variant: p.Variant}
}

func (p preparedAnswer) row(patientID, doctorID int64) *model.Answer {
	return &model.Answer{
		DoctorID:   doctorID,
		SectionID:  p.SectionID,
		QuestionID: p.QuestionID,
		PatientID:  patientID,
		Value:      p.Value,
		Variant:    p.Variant,
	}
}

// prepare encodes payload entries for storage. Unknown questions and malformed
// values are skipped. File answers are uploaded here, before any transaction
// opens; a failed upload stores an empty list. When onlySection is non-zero,
// questions from other sections are skipped.
func (s *Service) prepare(ctx context.Context, cat *catalog.Catalog, entries []model.PayloadEntry, onlySection int64) []preparedAnswer {
	prepared := make([]preparedAnswer, 0, len(entries))

	for _, e := range entries {
		sectionID, ok := cat.SectionFor(e.QuestionID)
		if !ok {
			s.logger.Debug("skipping unknown question", "question_id", e.QuestionID)
			continue
		}
		if onlySection != 0 && sectionID != onlySection {
			s.logger.Debug("skipping question from another section",
				"question_id", e.QuestionID,
				"section_id", sectionID,
				"requested_section", onlySection)
			continue
		}
		qtype, _ := cat.TypeOf(e.QuestionID)

		if e.Value != nil {
			var value string
			if qtype == model.QuestionTypeFiles {
				value = s.uploadFiles(ctx, e.QuestionID, e.Value)
			} else {
				v, err := model.EncodeValue(e.Value)
				if err != nil {
					s.logger.Warn("skipping malformed answer", "question_id", e.QuestionID, "error", err.Error())
					continue
				}
				value = v
			}
			prepared = append(prepared, preparedAnswer{
				QuestionID: e.QuestionID,
				SectionID:  sectionID,
				Variant:    model.VariantPrimary,
				Value:      value,
				DropsOther: e.Other == nil,
			})
		}

		if e.Other != nil {
			v, err := model.EncodeValue(e.Other)
			if err != nil {
				s.logger.Warn("skipping malformed other answer", "question_id", e.QuestionID, "error", err.Error())
				continue
			}
			prepared = append(prepared, preparedAnswer{
				QuestionID: e.QuestionID,
				SectionID:  sectionID,
				Variant:    model.VariantOther,
				Value:      v,
			})
		}
	}
	return prepared
}

func (s *Service) uploadFiles(ctx context.Context, questionID int64, raw json.RawMessage) string {
	var files []storage.File
	if err := json.Unmarshal(raw, &files); err != nil {
		s.logger.Error(err, "malformed file payload", "question_id", questionID)
		s.metrics.UploadFailures.Inc()
		return model.EncodeList(nil)
	}
	return model.EncodeList(s.uploader.Upload(ctx, files))
}

// displayName reads question 1 from prepared answers without touching storage.
func displayName(prepared []preparedAnswer) string {
	for _, p := range prepared {
		if p.QuestionID == model.QuestionIDName && p.Variant == model.VariantPrimary {
			return model.DisplayText(p.Value)
		}
	}
	return ""
}

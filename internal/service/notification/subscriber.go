package notification

import (
	"context"
	"fmt"

	"github.com/jwalitptl/intake-api/internal/model"
	"github.com/jwalitptl/intake-api/pkg/event"
)

// Subscribe fans domain events out as notifications: new patients and new outcomes
// to every admin, milestones to the doctor who reached them.
func Subscribe(bus *event.Bus, svc Service) {
	bus.Subscribe("notification", func(ctx context.Context, e event.Event) error {
		patientID := e.PatientID
		switch e.Type {
		case event.PatientCreated:
			return svc.NotifyAdmins(ctx, Message{
				Type:      model.NotificationNewPatient,
				Title:     "New patient",
				Body:      fmt.Sprintf("Patient %s (#%d) was registered", displayName(e), e.PatientID),
				PatientID: &patientID,
			})
		case event.OutcomeRecorded:
			return svc.NotifyAdmins(ctx, Message{
				Type:      model.NotificationNewOutcome,
				Title:     "New outcome",
				Body:      fmt.Sprintf("An outcome was recorded for patient #%d", e.PatientID),
				PatientID: &patientID,
			})
		case event.MilestoneReached:
			return svc.NotifyUser(ctx, e.DoctorID, Message{
				Type:      model.NotificationMilestone,
				Title:     "Milestone reached",
				Body:      fmt.Sprintf("Your score reached %d", e.Score),
				PatientID: &patientID,
			})
		}
		return nil
	}, event.PatientCreated, event.OutcomeRecorded, event.MilestoneReached)
}

func displayName(e event.Event) string {
	if e.PatientName == "" {
		return "without a name"
	}
	return e.PatientName
}

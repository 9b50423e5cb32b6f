package policy

import (
	"errors"
	"time"

	"github.com/AntoineVagnon/DoktuTracker-sub005/internal/config"
	ledgerdomain "github.com/AntoineVagnon/DoktuTracker-sub005/internal/ledger/domain"
)

// Actor is who initiated the cancellation or no-show.
type Actor string

const (
	ActorPatient Actor = "patient"
	ActorDoctor  Actor = "doctor"
)

// Action is what happened to the appointment.
type Action string

const (
	ActionCancel     Action = "cancel"
	ActionReschedule Action = "reschedule"
	ActionNoShow     Action = "no_show"
)

var (
	ErrUnknownActor  = errors.New("unknown_actor")
	ErrUnknownAction = errors.New("unknown_action")
)

// Decision says whether a consumed credit comes back, and under which
// ledger reason when it does.
type Decision struct {
	Restore bool
	Reason  string
}

// Policy decides credit restoration on cancellation. The rules are
// fixed; only the patient cancellation cutoff is configurable.
type Policy struct {
	patientCutoff time.Duration
}

func New(cfg config.Config) Policy {
	cutoff := time.Duration(cfg.CancellationCutoffMinutes) * time.Minute
	if cutoff <= 0 {
		cutoff = 60 * time.Minute
	}
	return Policy{patientCutoff: cutoff}
}

// PatientCutoff reports the configured patient cancellation cutoff.
func (p Policy) PatientCutoff() time.Duration { return p.patientCutoff }

// Decide applies the restoration rules:
//   - doctor cancellation or doctor no-show restores,
//   - patient cancellation restores only at or before the cutoff,
//   - patient no-show and any reschedule never restore.
//
// untilAppointment is the time left before the appointment starts and
// may be negative when the appointment already began.
func (p Policy) Decide(actor Actor, action Action, untilAppointment time.Duration) (Decision, error) {
	if actor != ActorPatient && actor != ActorDoctor {
		return Decision{}, ErrUnknownActor
	}

	switch action {
	case ActionReschedule:
		// The spent credit covers the rescheduled slot.
		return Decision{}, nil
	case ActionCancel:
		if actor == ActorDoctor {
			return Decision{Restore: true, Reason: ledgerdomain.ReasonDoctorCancelled}, nil
		}
		if untilAppointment >= p.patientCutoff {
			return Decision{Restore: true, Reason: ledgerdomain.ReasonPatientCancelled}, nil
		}
		return Decision{}, nil
	case ActionNoShow:
		if actor == ActorDoctor {
			return Decision{Restore: true, Reason: ledgerdomain.ReasonDoctorNoShow}, nil
		}
		return Decision{}, nil
	default:
		return Decision{}, ErrUnknownAction
	}
}

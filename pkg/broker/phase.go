package broker

// Phase is a step of one login attempt. Initiated and AwaitingCallback
// happen in BeginLogin; HandleCallback ends in Resolved or Failed.
type Phase string

const (
	PhaseInitiated        Phase = "initiated"
	PhaseAwaitingCallback Phase = "awaiting_callback"
	PhaseResolved         Phase = "resolved"
	PhaseFailed           Phase = "failed"
)

// Terminal reports whether no further transition is possible.
func (p Phase) Terminal() bool {
	return p == PhaseResolved || p == PhaseFailed
}

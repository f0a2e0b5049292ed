package viewstate

import "github.com/starford/ansuz/internal/models"

// Phase is the lifecycle position of the client.
type Phase int

const (
	// Disconnected: no wallet identity yet.
	Disconnected Phase = iota
	// Unknown: connected, first fetch not resolved.
	Unknown
	// Absent: connected, the record has not been initialized.
	Absent
	// Present: connected, the record was fetched.
	Present
	// Unavailable: connected, the last fetch could not determine the record.
	Unavailable
)

// String implements fmt.Stringer.
func (p Phase) String() string {
	switch p {
	case Disconnected:
		return "disconnected"
	case Unknown:
		return "connected/unknown"
	case Absent:
		return "connected/absent"
	case Present:
		return "connected/present"
	case Unavailable:
		return "connected/unavailable"
	default:
		return "invalid"
	}
}

// View is an immutable snapshot of the client state. Entries and
// Contributors are only set in Present.
type View struct {
	Phase        Phase
	Identity     models.Identity
	Entries      []models.WordCloudEntry
	Contributors models.ContributorList
	Digest       string
	Err          error
	Seq          uint64
}

// Connected reports whether a wallet identity is in effect.
func (v View) Connected() bool {
	return v.Phase != Disconnected
}

// CanInitialize reports whether InitializeOneTime is valid.
func (v View) CanInitialize() bool {
	return v.Phase == Absent
}

package domain

// SyncOutcome is the terminal state of one episode's sync task.
type SyncOutcome int

const (
	// OutcomeUpdated means the episode document was rewritten.
	OutcomeUpdated SyncOutcome = iota

	// OutcomeSkipped means the manifest already had everything and no
	// network activity happened.
	OutcomeSkipped

	// OutcomePartial means one target section was obtained this run and the
	// other could not be; a document was still written if anything was
	// non-empty.
	OutcomePartial

	// OutcomeFailed means the episode could not be processed at all and
	// nothing was written.
	OutcomeFailed
)

func (o SyncOutcome) String() string {
	switch o {
	case OutcomeUpdated:
		return "updated"
	case OutcomeSkipped:
		return "skipped"
	case OutcomePartial:
		return "partial"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SyncResult pairs an outcome with its diagnostic detail.
type SyncResult struct {
	CanonicalID string
	Outcome     SyncOutcome

	// MissingDescription / MissingTranscript record which parts could not
	// be obtained when Outcome is OutcomePartial.
	MissingDescription bool
	MissingTranscript  bool

	// Err holds the terminal error for OutcomeFailed (and the soft error
	// for OutcomePartial, when one was recorded).
	Err error
}

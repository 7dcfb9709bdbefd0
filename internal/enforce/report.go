package enforce

// Outcome classifies one (chat, member) pair at the end of a run.
type Outcome string

const (
	// OutcomeApplied: the exclusion action succeeded, or the platform
	// reported the member already absent.
	OutcomeApplied Outcome = "applied"
	// OutcomeSkipped: the pair was already applied before the run.
	OutcomeSkipped Outcome = "skipped"
	// OutcomePermissionDenied: the bot lacks rights in the chat. Needs an
	// operator reset before it is retried.
	OutcomePermissionDenied Outcome = "permission_denied"
	// OutcomeNotApplicable: the chat or member no longer resolves on the
	// platform. Not retried automatically.
	OutcomeNotApplicable Outcome = "not_applicable"
	// OutcomeTransient: network-classified failure, retried on the next
	// run.
	OutcomeTransient Outcome = "transient"
)

// PairResult is one failing or noteworthy pair with its reason, for
// human-facing breakdowns.
type PairResult struct {
	ChatID    int64
	AccountID int64
	Outcome   Outcome
	Detail    string
}

// Report aggregates a single enforcement run. Runs always "succeed" at
// the batch level; the breakdown carries the per-target results.
type Report struct {
	RunID string
	Scope string

	Applied          int
	Skipped          int
	PermissionDenied int
	NotApplicable    int
	Transient        int

	// Failures lists every pair that did not end in applied, with its
	// reason.
	Failures []PairResult
}

// Pairs returns how many pairs the run considered.
func (r *Report) Pairs() int {
	return r.Applied + r.Skipped + r.PermissionDenied + r.NotApplicable + r.Transient
}

func (r *Report) record(result PairResult) {
	switch result.Outcome {
	case OutcomeApplied:
		r.Applied++
	case OutcomeSkipped:
		r.Skipped++
	case OutcomePermissionDenied:
		r.PermissionDenied++
		r.Failures = append(r.Failures, result)
	case OutcomeNotApplicable:
		r.NotApplicable++
		r.Failures = append(r.Failures, result)
	case OutcomeTransient:
		r.Transient++
		r.Failures = append(r.Failures, result)
	}
}

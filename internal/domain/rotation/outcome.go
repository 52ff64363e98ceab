package rotation

// Result classifies how a rotation cycle ended.
type Result string

const (
	ResultSuccess      Result = "success"
	ResultNoWinner     Result = "aborted-no-winner"
	ResultStripFailure Result = "aborted-strip-failure"
	ResultGrantFailure Result = "aborted-grant-failure"
)

// Phase identifies which stage of the cycle a role mutation failed in.
type Phase string

const (
	PhaseStrip Phase = "strip"
	PhaseGrant Phase = "grant"
)

// Failure records one failed role mutation. Failures never abort the
// strip fan-out; they are aggregated and judged after the barrier.
type Failure struct {
	UserID string
	Phase  Phase
	Cause  error
}

// Outcome summarizes one rotation cycle for one guild. It is produced
// once per execution and consumed for logging and tests only.
type Outcome struct {
	GuildID  string
	Result   Result
	WinnerID string
	Stripped []string
	Failures []Failure
}

// FailureCount is the number of recorded role-mutation failures.
func (o *Outcome) FailureCount() int { return len(o.Failures) }

package syncer

// State is a step of the per-run state machine.
type State string

const (
	StateIdle        State = "idle"
	StateConnected   State = "connected"
	StateForCategory State = "for_category"
	StateForTarget   State = "for_target"
	StateFetched     State = "fetched"
	StateDiffed      State = "diffed"
	StateFiltered    State = "filtered"
	StateBackedUp    State = "backed_up"
	StateWritten     State = "written"
	StateSkipped     State = "skipped"
	StateReported    State = "reported"
)

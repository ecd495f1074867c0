package checkin

import "fmt"

// Result is the terminal outcome of one session. Exactly one is produced
// per (account, target) pair per run.
type Result int

const (
	ResultSuccess Result = iota
	ResultFailed
	ResultTimedOut
)

func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "success"
	case ResultFailed:
		return "failed"
	case ResultTimedOut:
		return "timed-out"
	default:
		return fmt.Sprintf("Result(%d)", int(r))
	}
}

// PairKey identifies one (account, target) session.
type PairKey struct {
	Account string
	Target  string
}

func (k PairKey) String() string {
	return fmt.Sprintf("%s/%s", k.Account, k.Target)
}

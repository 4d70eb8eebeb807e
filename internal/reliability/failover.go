package reliability

// FailureStrategy decides what happens to a request when a best-effort
// control (the rate limiter backend) cannot answer.
type FailureStrategy string

const (
	FailOpen   FailureStrategy = "fail_open"
	FailClosed FailureStrategy = "fail_closed"
)

// ShouldAllow reports whether a request may proceed given an error from
// the control and the configured strategy.
func ShouldAllow(strategy FailureStrategy, err error) bool {
	if err == nil {
		return true
	}
	return strategy == FailOpen
}

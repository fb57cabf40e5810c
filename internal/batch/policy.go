package batch

import "fmt"

// Policy decides what happens to a run when an item fails.
type Policy string

const (
	// BestEffort skips failed items, keeps going and reports every
	// failure next to a partial archive.
	BestEffort Policy = "best-effort"
	// FailFast aborts the run on the first failed item and discards all
	// work done so far.
	FailFast Policy = "fail-fast"
)

// ParsePolicy converts a configuration value into a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case BestEffort, "":
		return BestEffort, nil
	case FailFast:
		return FailFast, nil
	default:
		return "", fmt.Errorf("%w: %q", errUnknownPolicyName, s)
	}
}

package host

import (
	"fmt"
	"time"
)

// Outcome is the normalized result of one Run.
//
// Result is nil when the runtime reported no result; a pointer to "" is a
// present, empty result. Error is empty when there was no error, and when it
// is set Result is always nil.
type Outcome struct {
	Stdout string
	Result *string
	Error  string
	// Fault is set when Error comes from reaching or crossing the runtime
	// boundary rather than from the evaluated program.
	Fault    bool
	Duration time.Duration
}

// Failed reports whether the outcome carries an error.
func (o Outcome) Failed() bool {
	return o.Error != ""
}

func errorOutcome(stdout string, err error) Outcome {
	return Outcome{Stdout: stdout, Error: err.Error(), Fault: true}
}

// normalize validates the host form of a boundary value. Each of stdout,
// result and error must be absent, null, or a string.
func normalize(m map[string]any) (Outcome, error) {
	if m == nil {
		return Outcome{}, fmt.Errorf("%w: value is null", ErrMalformedValue)
	}
	stdout, _, err := optionalString(m, "stdout")
	if err != nil {
		return Outcome{}, err
	}
	result, hasResult, err := optionalString(m, "result")
	if err != nil {
		return Outcome{Stdout: stdout}, err
	}
	errMsg, _, err := optionalString(m, "error")
	if err != nil {
		return Outcome{Stdout: stdout}, err
	}

	out := Outcome{Stdout: stdout, Error: errMsg}
	if hasResult && errMsg == "" {
		out.Result = &result
	}
	return out, nil
}

func optionalString(m map[string]any, key string) (string, bool, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", false, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", false, fmt.Errorf("%w: %s is %T, want string or null", ErrMalformedValue, key, v)
	}
	return s, true, nil
}

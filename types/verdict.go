package types

import (
	"encoding/json"
	"fmt"
)

// Verdict is the outcome of executing candidate code against a single
// test case. The set is closed so submission aggregation can switch over
// it exhaustively.
type Verdict int

const (
	// VerdictAccepted indicates the output matched the expected output.
	VerdictAccepted Verdict = iota

	// VerdictWrongAnswer indicates the program produced incorrect output.
	VerdictWrongAnswer

	// VerdictTimeLimitExceeded indicates the program exceeded the time
	// limit, including transport-level execution timeouts.
	VerdictTimeLimitExceeded

	// VerdictCompileError indicates the program failed to compile.
	VerdictCompileError

	// VerdictRuntimeError indicates the program crashed, the executor
	// reported an unrecognized status, or transport to the executor
	// failed. The caller never sees the transport layer directly.
	VerdictRuntimeError
)

// String returns the compact representation used in API responses.
func (v Verdict) String() string {
	switch v {
	case VerdictAccepted:
		return "AC"
	case VerdictWrongAnswer:
		return "WA"
	case VerdictTimeLimitExceeded:
		return "TL"
	case VerdictCompileError:
		return "CE"
	case VerdictRuntimeError:
		return "RE"
	default:
		return "UNKNOWN"
	}
}

func (v Verdict) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

func (v *Verdict) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "AC":
		*v = VerdictAccepted
	case "WA":
		*v = VerdictWrongAnswer
	case "TL":
		*v = VerdictTimeLimitExceeded
	case "CE":
		*v = VerdictCompileError
	case "RE":
		*v = VerdictRuntimeError
	default:
		return fmt.Errorf("unknown verdict: %q", s)
	}
	return nil
}

package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/codearena/apiserver/config"
	"github.com/codearena/apiserver/types"
)

// ErrUnsupportedLanguage is returned before any network call when the
// requested language is not in the executor's fixed supported set.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// languageIDs maps supported language names to executor language IDs.
var languageIDs = map[string]int{
	"Python":     71,
	"C++":        54,
	"Java":       62,
	"Javascript": 63,
}

// SupportedLanguage reports whether the executor can run the language.
func SupportedLanguage(language string) bool {
	_, ok := languageIDs[language]
	return ok
}

// ExecRequest is one unit of work for the execution service: run the
// source code against stdin and, when ExpectedOutput is non-nil, let the
// executor compare the produced output against it.
type ExecRequest struct {
	Code           string
	Stdin          string
	Language       string
	ExpectedOutput *string
}

// Result is the typed outcome of a single execution.
type Result struct {
	// Verdict classifies the run.
	Verdict types.Verdict `json:"verdict"`
	// Time is the execution time in seconds, zero when unavailable.
	Time float64 `json:"time"`
	// Memory is the peak memory in kilobytes, zero when unavailable.
	Memory int64 `json:"memory"`
	// Output is the program's stdout, when available.
	Output string `json:"output"`
	// ExpectedOutput echoes the expected output this run was compared to.
	ExpectedOutput string `json:"expected_output,omitempty"`
	// ErrorDetails carries stderr or compile output when the run failed.
	ErrorDetails string `json:"error_details,omitempty"`
}

// Executor sends one execution unit to the sandboxed execution service.
// Transport faults never surface as errors: they are folded into the
// verdict so per-case failures flow through aggregation as data.
type Executor interface {
	Execute(ctx context.Context, req ExecRequest) (Result, error)
}

// Client is the HTTP adapter for a Judge0-compatible execution service.
type Client struct {
	url           string
	httpClient    *http.Client
	cpuTimeLimit  int
	memoryLimitKB int
}

// NewClient constructs an execution client from config.
func NewClient(cfg config.JudgeConfig) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("judge url is required")
	}
	return &Client{
		url:           cfg.URL,
		httpClient:    &http.Client{Timeout: cfg.Timeout},
		cpuTimeLimit:  cfg.CPUTimeLimitSeconds,
		memoryLimitKB: cfg.MemoryLimitKB,
	}, nil
}

// executorRequest is the wire payload sent to the execution service.
type executorRequest struct {
	LanguageID     int     `json:"language_id"`
	SourceCode     string  `json:"source_code"`
	Stdin          string  `json:"stdin"`
	ExpectedOutput *string `json:"expected_output,omitempty"`
	CPUTimeLimit   int     `json:"cpu_time_limit"`
	MemoryLimit    int     `json:"memory_limit"`
}

// executorResponse is the wire reply. Time arrives as a decimal string
// of seconds, memory as kilobytes.
type executorResponse struct {
	Status struct {
		ID int `json:"id"`
	} `json:"status"`
	Time          *string `json:"time"`
	Memory        *int64  `json:"memory"`
	Stdout        *string `json:"stdout"`
	Stderr        *string `json:"stderr"`
	CompileOutput *string `json:"compile_output"`
}

// Executor status codes.
const (
	statusAccepted          = 3
	statusWrongAnswer       = 4
	statusTimeLimitExceeded = 5
	statusCompileError      = 6
)

// Execute sends one execution unit and maps the raw reply to a typed
// result. An unsupported language fails immediately with
// ErrUnsupportedLanguage and no network call. Timeouts and transport
// failures are mapped to TimeLimitExceeded / RuntimeError verdicts; the
// caller never sees the transport layer.
func (c *Client) Execute(ctx context.Context, req ExecRequest) (Result, error) {
	languageID, ok := languageIDs[req.Language]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, req.Language)
	}

	payload := executorRequest{
		LanguageID:     languageID,
		SourceCode:     req.Code,
		Stdin:          req.Stdin,
		ExpectedOutput: req.ExpectedOutput,
		CPUTimeLimit:   c.cpuTimeLimit,
		MemoryLimit:    c.memoryLimitKB,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("judge: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("judge: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return Result{
				Verdict:        types.VerdictTimeLimitExceeded,
				ExpectedOutput: deref(req.ExpectedOutput),
				ErrorDetails:   "execution timed out",
			}, nil
		}
		return Result{
			Verdict:        types.VerdictRuntimeError,
			ExpectedOutput: deref(req.ExpectedOutput),
			ErrorDetails:   err.Error(),
		}, nil
	}
	defer resp.Body.Close()

	var reply executorResponse
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return Result{
			Verdict:        types.VerdictRuntimeError,
			ExpectedOutput: deref(req.ExpectedOutput),
			ErrorDetails:   fmt.Sprintf("invalid executor response: %v", err),
		}, nil
	}

	return mapResponse(reply, deref(req.ExpectedOutput)), nil
}

func mapResponse(reply executorResponse, expectedOutput string) Result {
	var verdict types.Verdict
	switch reply.Status.ID {
	case statusAccepted:
		verdict = types.VerdictAccepted
	case statusWrongAnswer:
		verdict = types.VerdictWrongAnswer
	case statusTimeLimitExceeded:
		verdict = types.VerdictTimeLimitExceeded
	case statusCompileError:
		verdict = types.VerdictCompileError
	default:
		verdict = types.VerdictRuntimeError
	}

	result := Result{
		Verdict:        verdict,
		Output:         deref(reply.Stdout),
		ExpectedOutput: expectedOutput,
	}
	if reply.Time != nil {
		if t, err := strconv.ParseFloat(strings.TrimSpace(*reply.Time), 64); err == nil {
			result.Time = t
		}
	}
	if reply.Memory != nil {
		result.Memory = *reply.Memory
	}
	if reply.Stderr != nil && *reply.Stderr != "" {
		result.ErrorDetails = *reply.Stderr
	} else if reply.CompileOutput != nil && *reply.CompileOutput != "" {
		result.ErrorDetails = *reply.CompileOutput
	}
	return result
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

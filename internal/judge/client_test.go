package judge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/codearena/apiserver/config"
	"github.com/codearena/apiserver/types"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, timeout time.Duration) (*Client, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(config.JudgeConfig{
		URL:                 srv.URL,
		Timeout:             timeout,
		CPUTimeLimitSeconds: 5,
		MemoryLimitKB:       128000,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client, srv
}

func TestExecuteUnsupportedLanguage(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for unsupported language")
	}, time.Second)

	_, err := client.Execute(context.Background(), ExecRequest{
		Code:     "print(1)",
		Language: "Cobol",
	})
	if !errors.Is(err, ErrUnsupportedLanguage) {
		t.Fatalf("err = %v, want ErrUnsupportedLanguage", err)
	}
}

func TestExecuteVerdictMapping(t *testing.T) {
	str := func(s string) *string { return &s }
	mem := func(m int64) *int64 { return &m }

	tests := []struct {
		name        string
		reply       map[string]any
		wantVerdict types.Verdict
		wantTime    float64
		wantMemory  int64
		wantDetail  string
	}{
		{
			name: "accepted",
			reply: map[string]any{
				"status": map[string]any{"id": 3},
				"time":   str("0.024"),
				"memory": mem(1024),
				"stdout": str("3\n"),
			},
			wantVerdict: types.VerdictAccepted,
			wantTime:    0.024,
			wantMemory:  1024,
		},
		{
			name: "wrong answer",
			reply: map[string]any{
				"status": map[string]any{"id": 4},
				"stdout": str("4\n"),
			},
			wantVerdict: types.VerdictWrongAnswer,
		},
		{
			name: "time limit exceeded",
			reply: map[string]any{
				"status": map[string]any{"id": 5},
			},
			wantVerdict: types.VerdictTimeLimitExceeded,
		},
		{
			name: "compile error uses compile output",
			reply: map[string]any{
				"status":         map[string]any{"id": 6},
				"compile_output": str("syntax error on line 1"),
			},
			wantVerdict: types.VerdictCompileError,
			wantDetail:  "syntax error on line 1",
		},
		{
			name: "stderr wins over compile output",
			reply: map[string]any{
				"status":         map[string]any{"id": 11},
				"stderr":         str("division by zero"),
				"compile_output": str("ignored"),
			},
			wantVerdict: types.VerdictRuntimeError,
			wantDetail:  "division by zero",
		},
		{
			name: "unknown status is runtime error",
			reply: map[string]any{
				"status": map[string]any{"id": 99},
			},
			wantVerdict: types.VerdictRuntimeError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("method = %s, want POST", r.Method)
				}
				var req executorRequest
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					t.Errorf("decode request: %v", err)
				}
				if req.LanguageID != 71 {
					t.Errorf("language_id = %d, want 71", req.LanguageID)
				}
				if req.CPUTimeLimit != 5 {
					t.Errorf("cpu_time_limit = %d, want 5", req.CPUTimeLimit)
				}
				if req.MemoryLimit != 128000 {
					t.Errorf("memory_limit = %d, want 128000", req.MemoryLimit)
				}
				_ = json.NewEncoder(w).Encode(tt.reply)
			}, time.Second)

			expected := "3\n"
			res, err := client.Execute(context.Background(), ExecRequest{
				Code:           "print(input())",
				Stdin:          "3",
				Language:       "Python",
				ExpectedOutput: &expected,
			})
			if err != nil {
				t.Fatalf("Execute: %v", err)
			}
			if res.Verdict != tt.wantVerdict {
				t.Errorf("verdict = %s, want %s", res.Verdict, tt.wantVerdict)
			}
			if res.Time != tt.wantTime {
				t.Errorf("time = %v, want %v", res.Time, tt.wantTime)
			}
			if res.Memory != tt.wantMemory {
				t.Errorf("memory = %d, want %d", res.Memory, tt.wantMemory)
			}
			if res.ErrorDetails != tt.wantDetail {
				t.Errorf("error details = %q, want %q", res.ErrorDetails, tt.wantDetail)
			}
			if res.ExpectedOutput != expected {
				t.Errorf("expected output = %q, want %q", res.ExpectedOutput, expected)
			}
		})
	}
}

func TestExecuteTimeoutMapsToTimeLimitExceeded(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}, 20*time.Millisecond)

	res, err := client.Execute(context.Background(), ExecRequest{
		Code:     "while True: pass",
		Language: "Python",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Verdict != types.VerdictTimeLimitExceeded {
		t.Fatalf("verdict = %s, want %s", res.Verdict, types.VerdictTimeLimitExceeded)
	}
	if res.ErrorDetails != "execution timed out" {
		t.Fatalf("error details = %q", res.ErrorDetails)
	}
}

func TestExecuteTransportFailureMapsToRuntimeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client, err := NewClient(config.JudgeConfig{URL: srv.URL, Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	res, err := client.Execute(context.Background(), ExecRequest{
		Code:     "print(1)",
		Language: "Python",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Verdict != types.VerdictRuntimeError {
		t.Fatalf("verdict = %s, want %s", res.Verdict, types.VerdictRuntimeError)
	}
	if res.ErrorDetails == "" {
		t.Fatal("expected error details")
	}
}

func TestExecuteInvalidResponseMapsToRuntimeError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}, time.Second)

	res, err := client.Execute(context.Background(), ExecRequest{
		Code:     "print(1)",
		Language: "Java",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Verdict != types.VerdictRuntimeError {
		t.Fatalf("verdict = %s, want %s", res.Verdict, types.VerdictRuntimeError)
	}
}

func TestNewClientRequiresURL(t *testing.T) {
	if _, err := NewClient(config.JudgeConfig{}); err == nil {
		t.Fatal("expected error for empty url")
	}
}

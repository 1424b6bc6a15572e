package advisory

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"time"

	"main/internal/schema"
	"main/pkg/scanner"

	"github.com/yanun0323/logs"
)

const defaultDeadline = 30 * time.Second

// Config defines the external decision-support process.
type Config struct {
	Command  string
	Args     []string
	Deadline time.Duration
}

// Client invokes an external, unreliable decision process and returns a
// best-effort result. Every failure mode resolves to nil: the caller
// never sees an error, never waits past the deadline, and never gates a
// transition on the outcome.
type Client struct {
	cfg Config
}

// NewClient creates a client. An empty command yields a client whose
// Assess always returns nil, so wiring stays unconditional.
func NewClient(cfg Config) *Client {
	if cfg.Deadline <= 0 {
		cfg.Deadline = defaultDeadline
	}
	return &Client{cfg: cfg}
}

// Deadline returns the hard per-call deadline.
func (c *Client) Deadline() time.Duration {
	return c.cfg.Deadline
}

// Assess serializes the context, runs the external process, and decodes
// the first embedded object from its output. On timeout the process is
// killed so no call outlives the deadline.
func (c *Client) Assess(ctx context.Context, advCtx schema.AdvisoryContext) *schema.AdvisoryResult {
	if c == nil || c.cfg.Command == "" {
		return nil
	}

	payload, err := json.Marshal(advCtx)
	if err != nil {
		logs.Errorf("marshal advisory context, err: %v", err)
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Deadline)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.cfg.Command, c.cfg.Args...)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.WaitDelay = time.Second

	if err := cmd.Run(); err != nil {
		logs.Debugf("advisory process unavailable for %s, err: %v", advCtx.Symbol, err)
		return nil
	}

	return Decode(stdout.Bytes())
}

// Decode locates the first well-formed embedded object in free text and
// returns it with confidence clamped to [0,1]. Surrounding noise is
// ignored; an undecodable output yields nil.
func Decode(output []byte) *schema.AdvisoryResult {
	rest := output
	for {
		obj, ok := scanner.ExtractObject(rest)
		if !ok {
			return nil
		}

		var res schema.AdvisoryResult
		if err := json.Unmarshal(obj, &res); err == nil && res.Reasoning != "" {
			res.Confidence = clamp(res.Confidence)
			return &res
		}

		// Malformed region: resume the scan just past its opening brace.
		idx := bytes.Index(rest, obj)
		if idx < 0 {
			return nil
		}
		rest = rest[idx+1:]
	}
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

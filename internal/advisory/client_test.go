package advisory

import (
	"context"
	"testing"
	"time"

	"main/internal/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	testCases := []struct {
		desc     string
		output   string
		expected *schema.AdvisoryResult
	}{
		{
			"clean object",
			`{"reasoning":"entry aligns with value area low","confidence":0.8}`,
			&schema.AdvisoryResult{Reasoning: "entry aligns with value area low", Confidence: 0.8},
		},
		{
			"noise around object",
			`Thinking about ES... {"reasoning":"ok","confidence":1.7} trailing words`,
			&schema.AdvisoryResult{Reasoning: "ok", Confidence: 1},
		},
		{
			"negative confidence clamps to zero",
			`{"reasoning":"weak setup","confidence":-0.4}`,
			&schema.AdvisoryResult{Reasoning: "weak setup", Confidence: 0},
		},
		{
			"first malformed object is skipped",
			`{"broken": } then {"reasoning":"second one","confidence":0.5}`,
			&schema.AdvisoryResult{Reasoning: "second one", Confidence: 0.5},
		},
		{
			"object without reasoning is skipped",
			`{"confidence":0.9} {"reasoning":"found it","confidence":0.3}`,
			&schema.AdvisoryResult{Reasoning: "found it", Confidence: 0.3},
		},
		{
			"nested braces inside strings",
			`log: {"reasoning":"price held {poc} level","confidence":0.6}`,
			&schema.AdvisoryResult{Reasoning: "price held {poc} level", Confidence: 0.6},
		},
		{"no object at all", `plain refusal, no data`, nil},
		{"empty output", ``, nil},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			got := Decode([]byte(tc.output))
			if tc.expected == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tc.expected.Reasoning, got.Reasoning)
			assert.Equal(t, tc.expected.Confidence, got.Confidence)
		})
	}
}

func TestAssessRunsProcess(t *testing.T) {
	client := NewClient(Config{
		Command: "sh",
		Args:    []string{"-c", `echo 'model says: {"reasoning":"stdin echoed","confidence":0.75}'`},
	})

	res := client.Assess(context.Background(), schema.AdvisoryContext{Symbol: "ES"})
	require.NotNil(t, res)
	assert.Equal(t, "stdin echoed", res.Reasoning)
	assert.Equal(t, 0.75, res.Confidence)
}

func TestAssessKillsProcessAtDeadline(t *testing.T) {
	client := NewClient(Config{
		Command:  "sh",
		Args:     []string{"-c", "sleep 10"},
		Deadline: 100 * time.Millisecond,
	})

	started := time.Now()
	res := client.Assess(context.Background(), schema.AdvisoryContext{Symbol: "ES"})
	assert.Nil(t, res)
	assert.Less(t, time.Since(started), 3*time.Second)
}

func TestAssessMissingCommand(t *testing.T) {
	client := NewClient(Config{Command: "/nonexistent/advisor"})
	assert.Nil(t, client.Assess(context.Background(), schema.AdvisoryContext{Symbol: "ES"}))
}

func TestAssessEmptyCommandIsNoop(t *testing.T) {
	client := NewClient(Config{})
	assert.Nil(t, client.Assess(context.Background(), schema.AdvisoryContext{Symbol: "ES"}))
}

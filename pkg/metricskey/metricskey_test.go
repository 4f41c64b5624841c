package metricskey

import (
	"sort"
	"testing"

	"github.com/effective-security/metrics"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	for _, m := range Metrics {
		assert.NotEmpty(t, m.Name)
		assert.Contains(t, m.Help, m.Name)
		assert.NotEmpty(t, m.RequiredTags, m.Name)
	}

	isSorted := sort.SliceIsSorted(Metrics, func(i, j int) bool {
		return Metrics[i].Name < Metrics[j].Name
	})
	assert.True(t, isSorted, "Metrics must be sorted by name")

	seen := make(map[string]bool)
	for _, m := range Metrics {
		assert.False(t, seen[m.Name], "duplicate metric: %s", m.Name)
		seen[m.Name] = true
	}

	tagged := map[string][]*metrics.Describe{
		"agent": {
			&StatsLLMMessagesSent,
			&StatsLLMBytesSent,
			&StatsLLMBytesReceived,
			&StatsAssistantCallsSucceeded,
			&StatsAssistantCallsFailed,
			&StatsAssistantLLMParseErrors,
			&PerfAssistantCall,
		},
		"tool": {
			&StatsToolCallsSucceeded,
			&StatsToolCallsFailed,
			&StatsToolCallsNotFound,
			&PerfToolCall,
		},
		"source": {
			&StatsCalculatorEvaluations,
			&StatsCalculatorErrors,
			&PerfCalculatorEval,
		},
	}
	for tag, list := range tagged {
		for _, m := range list {
			assert.Contains(t, m.RequiredTags, tag, m.Name)
			assert.True(t, seen[m.Name], "not registered: %s", m.Name)
		}
	}
}

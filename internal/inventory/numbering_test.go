package inventory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func march2024() time.Time { return time.Date(2024, time.March, 15, 9, 0, 0, 0, time.UTC) }

func TestNextWorkflowNumberIncrementsWithinMonth(t *testing.T) {
	existing := []Transaction{{WorkflowNumber: "WF0324-001"}}
	require.Equal(t, "WF0324-002", NextWorkflowNumber(existing, march2024()))
}

func TestNextWorkflowNumberStartsFreshEachMonth(t *testing.T) {
	existing := []Transaction{{WorkflowNumber: "WF0324-007"}}
	april := time.Date(2024, time.April, 2, 0, 0, 0, 0, time.UTC)
	require.Equal(t, "WF0424-001", NextWorkflowNumber(existing, april))
	require.Equal(t, "WF0424-001", NextWorkflowNumber(nil, april))
}

func TestNextWorkflowNumberIgnoresUnparseableSuffixes(t *testing.T) {
	existing := []Transaction{
		{WorkflowNumber: "WF0324-abc"},
		{WorkflowNumber: "WF0324-"},
		{WorkflowNumber: ""},
		{WorkflowNumber: "WF0324-004"},
		{WorkflowNumber: "WF0323-900"},
	}
	require.Equal(t, "WF0324-005", NextWorkflowNumber(existing, march2024()))
}

func TestNextWorkflowNumberGrowsPastThreeDigits(t *testing.T) {
	existing := []Transaction{{WorkflowNumber: "WF0324-999"}}
	require.Equal(t, "WF0324-1000", NextWorkflowNumber(existing, march2024()))
}

func TestNextWorkflowNumberNeverCollidesWhenAppended(t *testing.T) {
	existing := []Transaction{{WorkflowNumber: "WF0324-003"}, {WorkflowNumber: "WF0324-010"}, {WorkflowNumber: "WF0324-002"}}
	seen := map[string]bool{}
	for _, tx := range existing {
		seen[tx.WorkflowNumber] = true
	}
	for i := 0; i < 5; i++ {
		next := NextWorkflowNumber(existing, march2024())
		require.False(t, seen[next], next)
		seen[next] = true
		existing = append(existing, Transaction{WorkflowNumber: next})
	}
}

func TestAllocatorIssuesIncreasingNumbers(t *testing.T) {
	alloc := newAllocator([]Transaction{{WorkflowNumber: "WF0324-002"}}, march2024())
	require.Equal(t, "WF0324-003", alloc.next())
	require.Equal(t, "WF0324-004", alloc.next())
}

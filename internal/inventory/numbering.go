package inventory

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// WorkflowPrefix returns the month prefix of workflow numbers, e.g. "WF0324-".
func WorkflowPrefix(now time.Time) string {
	return fmt.Sprintf("WF%02d%02d-", int(now.Month()), now.Year()%100)
}

// NextWorkflowNumber derives the next number for now's month from the
// existing workflows. Nothing is persisted; the value is always max+1.
func NextWorkflowNumber(existing []Transaction, now time.Time) string {
	return newAllocator(existing, now).next()
}

// allocator hands out consecutive numbers for one month, remembering what it
// already issued so a batch gets strictly increasing numbers.
type allocator struct {
	prefix string
	max    int
}

func newAllocator(existing []Transaction, now time.Time) *allocator {
	a := &allocator{prefix: WorkflowPrefix(now)}
	for _, tx := range existing {
		if n := a.suffix(tx.WorkflowNumber); n > a.max {
			a.max = n
		}
	}
	return a
}

// suffix parses the counter of a number in this month; anything else counts as 0.
func (a *allocator) suffix(number string) int {
	if !strings.HasPrefix(number, a.prefix) {
		return 0
	}
	n, err := strconv.Atoi(number[len(a.prefix):])
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func (a *allocator) next() string {
	a.max++
	return fmt.Sprintf("%s%03d", a.prefix, a.max)
}

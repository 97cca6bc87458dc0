package entity

// WorkflowState is the single mutual-exclusion flag guarding the two
// long-running allocation workflows. Exactly one value is ever set; a new
// expenditure or refund sweep may only start from WorkflowIdle, so the two
// workflows can never run concurrently with each other or with themselves.
type WorkflowState string

const (
	WorkflowIdle        = WorkflowState("idle")
	WorkflowExpenditure = WorkflowState("expenditure")
	WorkflowRefunds     = WorkflowState("refunds")
)

func (s WorkflowState) String() string {
	return string(s)
}

func (s WorkflowState) IsValid() bool {
	switch s {
	case WorkflowIdle, WorkflowExpenditure, WorkflowRefunds:
		return true
	}
	return false
}

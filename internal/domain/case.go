package domain

// CaseStatus mirrors the status field of a case record. The engine does not
// own cases; it reads and writes only this field, and only as a side effect
// of plan completion.
type CaseStatus string

const (
	CaseStatusOpen         CaseStatus = "open"
	CaseStatusInTreatment  CaseStatus = "in_treatment"
	CaseStatusReturnToWork CaseStatus = "return_to_work"
	CaseStatusClosed       CaseStatus = "closed"
)

// Settled reports whether the case no longer needs a corrective status
// write after plan completion.
func (s CaseStatus) Settled() bool {
	return s == CaseStatusReturnToWork || s == CaseStatusClosed
}

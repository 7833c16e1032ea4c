package domain

import "time"

// ReturnStatus enumerates the filing workflow states of a tax return.
type ReturnStatus string

const (
	ReturnDraft             ReturnStatus = "draft"
	ReturnInProgress        ReturnStatus = "in_progress"
	ReturnUnderReview       ReturnStatus = "under_review"
	ReturnReadyForSignature ReturnStatus = "ready_for_signature"
	ReturnFiled             ReturnStatus = "filed"
	ReturnAccepted          ReturnStatus = "accepted"
)

// returnOrder defines the forward progression of the filing workflow.
var returnOrder = map[ReturnStatus]int{
	ReturnDraft:             0,
	ReturnInProgress:        1,
	ReturnUnderReview:       2,
	ReturnReadyForSignature: 3,
	ReturnFiled:             4,
	ReturnAccepted:          5,
}

// CanTransitionTo reports whether moving from s to next is a valid forward
// step. Returns may advance one or more steps but never move backward,
// except under_review -> in_progress (a reviewer sending work back).
func (s ReturnStatus) CanTransitionTo(next ReturnStatus) bool {
	from, ok1 := returnOrder[s]
	to, ok2 := returnOrder[next]
	if !ok1 || !ok2 {
		return false
	}
	if s == ReturnUnderReview && next == ReturnInProgress {
		return true
	}
	return to > from
}

// TaxReturn is a per-client filing record tracked by status.
type TaxReturn struct {
	ID             string       `json:"id" db:"id"`
	OrganizationID string       `json:"organization_id" db:"organization_id"`
	ClientID       string       `json:"clientId" db:"client_id"`
	TaxYear        int          `json:"taxYear" db:"tax_year"`
	ReturnType     string       `json:"returnType" db:"return_type"`
	Status         ReturnStatus `json:"status" db:"status"`
	RefundAmount   float64      `json:"refundAmount" db:"refund_amount"`
	BalanceDue     float64      `json:"balanceDue" db:"balance_due"`
	CreatedAt      time.Time    `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time    `json:"updatedAt" db:"updated_at"`
}

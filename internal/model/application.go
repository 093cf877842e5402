package model

import (
    "fmt"
    "time"
)

// ApplicationType distinguishes deposit from withdrawal requests.
type ApplicationType string

const (
    ApplicationDeposit    ApplicationType = "deposit"
    ApplicationWithdrawal ApplicationType = "withdrawal"
)

// ParseApplicationType validates a raw type string.
func ParseApplicationType(s string) (ApplicationType, error) {
    switch t := ApplicationType(s); t {
    case ApplicationDeposit, ApplicationWithdrawal:
        return t, nil
    }
    return "", fmt.Errorf("unknown application type %q", s)
}

// LedgerType maps an application to the ledger entry it produces on completion.
func (t ApplicationType) LedgerType() MileageTransactionType {
    if t == ApplicationWithdrawal {
        return MileageWithdrawal
    }
    return MileageDeposit
}

// ApplicationStatus is the closed set of application states.
type ApplicationStatus string

const (
    ApplicationPending    ApplicationStatus = "pending"
    ApplicationProcessing ApplicationStatus = "processing"
    ApplicationCompleted  ApplicationStatus = "completed"
    ApplicationRejected   ApplicationStatus = "rejected"
)

var applicationTransitions = map[ApplicationStatus][]ApplicationStatus{
    ApplicationPending:    {ApplicationProcessing, ApplicationRejected},
    ApplicationProcessing: {ApplicationCompleted, ApplicationRejected},
    ApplicationCompleted:  nil,
    ApplicationRejected:   nil,
}

// ParseApplicationStatus validates a raw status string.
func ParseApplicationStatus(s string) (ApplicationStatus, error) {
    st := ApplicationStatus(s)
    if _, ok := applicationTransitions[st]; !ok {
        return "", fmt.Errorf("unknown application status %q", s)
    }
    return st, nil
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s ApplicationStatus) CanTransitionTo(next ApplicationStatus) bool {
    for _, n := range applicationTransitions[s] {
        if n == next {
            return true
        }
    }
    return false
}

// Terminal reports whether the application is closed.
func (s ApplicationStatus) Terminal() bool {
    edges, ok := applicationTransitions[s]
    return ok && len(edges) == 0
}

// BankInfo is the payout destination of a withdrawal.
type BankInfo struct {
    BankName      string `db:"bank_name" json:"bank_name" validate:"required,max=100"`
    AccountNumber string `db:"account_number" json:"account_number" validate:"required,max=64"`
    AccountHolder string `db:"account_holder" json:"account_holder" validate:"required,max=100"`
}

// Application is the common shape of deposit_applications and
// withdrawal_applications rows.  Bank is nil for deposits.
type Application struct {
    ID          uint64            `db:"id" json:"id"`
    Type        ApplicationType   `db:"-" json:"type"`
    UserID      uint64            `db:"user_id" json:"user_id"`
    Amount      int64             `db:"amount" json:"amount"`
    Status      ApplicationStatus `db:"status" json:"status"`
    Bank        *BankInfo         `db:"-" json:"bank,omitempty"`
    AdminMemo   string            `db:"admin_memo" json:"admin_memo,omitempty"`
    ProcessedBy *uint64           `db:"processed_by" json:"processed_by,omitempty"`
    ProcessedAt *time.Time        `db:"processed_at" json:"processed_at,omitempty"`
    CreatedAt   time.Time         `db:"created_at" json:"created_at"`
    UpdatedAt   time.Time         `db:"updated_at" json:"updated_at"`
}

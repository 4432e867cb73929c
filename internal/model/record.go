package model

// Journal record kinds.
const (
	RecordSubmitted = "submitted"
	RecordSettled   = "settled"
	RecordClaimed   = "claimed"
)

// SettlementRecord is one line of the append-only settlement journal.
// Amounts are decimal strings so values survive JSON round trips intact.
type SettlementRecord struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Sequence    uint64 `json:"sequence,omitempty"`
	Pool        uint64 `json:"pool"`
	Account     string `json:"account"`
	RequestKind string `json:"request_kind,omitempty"`
	Status      string `json:"status,omitempty"`
	Reason      string `json:"reason,omitempty"`
	Amount      string `json:"amount,omitempty"`
	Shares      string `json:"shares,omitempty"`
	Receivable  string `json:"receivable,omitempty"`
	Fee         string `json:"fee,omitempty"`
	Pending     string `json:"pending,omitempty"`
	Submitted   uint64 `json:"submitted_count"`
	Processed   uint64 `json:"processed_up_to"`
	Timestamp   string `json:"ts"`
}

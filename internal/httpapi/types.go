package httpapi

// Request and response contracts for the HTTP surface. Amounts are decimal
// strings; addresses are 0x-prefixed hex.

type submitRequest struct {
	Kind     string `json:"kind"`
	Pool     uint64 `json:"pool"`
	Amount   string `json:"amount"`
	Receiver string `json:"receiver,omitempty"`
}

type confirmRequest struct {
	ExpectedSequence uint64  `json:"expected_sequence"`
	Shares           *string `json:"shares,omitempty"`
	Receivable       *string `json:"receivable,omitempty"`
}

type claimRequest struct {
	Account string `json:"account"`
	Pool    uint64 `json:"pool"`
}

type registerPoolRequest struct {
	ID       uint64 `json:"id"`
	Capacity string `json:"capacity"`
}

type capacityRequest struct {
	Capacity string `json:"capacity"`
}

type spotResponse struct {
	Sequence uint64 `json:"sequence"`
	Pool     uint64 `json:"pool"`
	Account  string `json:"account"`
	Vault    string `json:"vault"`
	Kind     string `json:"kind"`
	Amount   string `json:"amount"`
	Receiver string `json:"receiver,omitempty"`
	Status   string `json:"status"`
	Reason   string `json:"reason,omitempty"`
}

type queueResponse struct {
	SubmittedCount uint64        `json:"submitted_count"`
	ProcessedUpTo  uint64        `json:"processed_up_to"`
	Head           *spotResponse `json:"head,omitempty"`
}

type poolResponse struct {
	ID              uint64 `json:"id"`
	Vault           string `json:"vault"`
	Registered      bool   `json:"registered"`
	Capacity        string `json:"capacity"`
	AggregateActive string `json:"aggregate_active"`
}

type positionResponse struct {
	Pool    uint64 `json:"pool"`
	Account string `json:"account"`
	Active  string `json:"active"`
	Pending string `json:"pending"`
	Fee     string `json:"fee"`
}

type claimResponse struct {
	Pool    uint64 `json:"pool"`
	Account string `json:"account"`
	Pending string `json:"pending"`
	Fee     string `json:"fee"`
}

type errorResponse struct {
	Status string       `json:"status"`
	Error  errorPayload `json:"error"`
}

type errorPayload struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

type successResponse struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data,omitempty"`
}

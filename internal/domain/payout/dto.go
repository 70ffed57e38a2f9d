package payout

// CreateRequest for requesting a payout of the caller's balance
type CreateRequest struct {
	AmountMinor int64  `json:"amount_minor" validate:"required,gt=0"`
	Currency    string `json:"currency" validate:"required,currency"`
	Destination string `json:"destination" validate:"required,max=255"`
}

// MarkPaidRequest for confirming a payout
type MarkPaidRequest struct {
	ExternalTransferID string `json:"external_transfer_id" validate:"max=255"`
}

// MarkFailedRequest for failing a payout
type MarkFailedRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// DispatchResponse for a dispatched transfer
type DispatchResponse struct {
	PayoutID   string `json:"payout_id"`
	TransferID string `json:"transfer_id"`
}

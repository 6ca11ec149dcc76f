package models

import (
	// Go Internal Packages
	"time"
)

type Method string

const (
	MethodPix      Method = "PIX"
	MethodCard     Method = "CARD"
	MethodBoleto   Method = "BOLETO"
	MethodWithdraw Method = "WITHDRAW"
)

func (m Method) Valid() bool {
	switch m {
	case MethodPix, MethodCard, MethodBoleto, MethodWithdraw:
		return true
	}
	return false
}

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusPaidOut  Status = "PAID_OUT"
	StatusFailed   Status = "FAILED"
	StatusCanceled Status = "CANCELED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPaidOut, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed out of s.
func (s Status) IsTerminal() bool {
	return s == StatusPaidOut || s == StatusFailed || s == StatusCanceled
}

// CanTransition allows only PENDING -> terminal.
func (s Status) CanTransition(to Status) bool {
	return s == StatusPending && to.IsTerminal()
}

// Transaction is a deposit or withdrawal attempt keyed by its locally generated request number.
type Transaction struct {
	RequestNumber string     `json:"request_number" bson:"_id"`
	UserID        string     `json:"user_id" bson:"user_id"`
	GatewayID     string     `json:"gateway_id,omitempty" bson:"gateway_id,omitempty"`
	Method        Method     `json:"method" bson:"method"`
	Amount        Amount     `json:"amount" bson:"amount"`
	Status        Status     `json:"status" bson:"status"`
	QRCode        string     `json:"qr_code,omitempty" bson:"qr_code,omitempty"`
	QRCodeImage   string     `json:"qr_code_image,omitempty" bson:"qr_code_image,omitempty"`
	Barcode       string     `json:"barcode,omitempty" bson:"barcode,omitempty"`
	DigitableLine string     `json:"digitable_line,omitempty" bson:"digitable_line,omitempty"`
	PixKey        string     `json:"pix_key,omitempty" bson:"pix_key,omitempty"`
	DueDate       *time.Time `json:"due_date,omitempty" bson:"due_date,omitempty"`
	// Processed is set in the same write that moves the status to a terminal value.
	Processed bool `json:"-" bson:"processed"`
	// EffectApplied is set once the balance effect of a terminal status has been written.
	EffectApplied bool      `json:"-" bson:"effect_applied"`
	CreatedAt     time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" bson:"updated_at"`
}

func (t *Transaction) IsWithdrawal() bool {
	return t.Method == MethodWithdraw
}

// BalanceEffect is the signed amount to apply to the owner's balance once the transaction
// settles. Withdrawals are debited when the hold is taken, so only their release credits back.
func (t *Transaction) BalanceEffect() Amount {
	switch {
	case t.Status == StatusPaidOut && !t.IsWithdrawal():
		return t.Amount
	case t.IsWithdrawal() && (t.Status == StatusFailed || t.Status == StatusCanceled):
		return t.Amount
	}
	return 0
}

// HasArtifact reports whether the gateway returned something the payer can act on.
func (t *Transaction) HasArtifact() bool {
	return t.QRCode != "" || t.QRCodeImage != "" || t.DigitableLine != "" || t.Barcode != ""
}

// ClientInfo identifies the payer to the gateway.
type ClientInfo struct {
	Name     string `json:"name"`
	Document string `json:"document,omitempty"`
	Email    string `json:"email,omitempty"`
}

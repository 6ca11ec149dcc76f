package models

import (
	// Go Internal Packages
	"time"
)

type Record struct {
	Key   []byte `json:"key"`
	Value []byte `json:"value"`
	Topic string `json:"topic"`
}

// PaymentEvent is published once a transaction settles.
type PaymentEvent struct {
	RequestNumber string    `json:"request_number"`
	GatewayID     string    `json:"gateway_id,omitempty"`
	UserID        string    `json:"user_id"`
	Method        Method    `json:"method"`
	Status        Status    `json:"status"`
	Amount        Amount    `json:"amount"`
	SettledAt     time.Time `json:"settled_at"`
}

func NewPaymentEvent(tx Transaction) PaymentEvent {
	return PaymentEvent{
		RequestNumber: tx.RequestNumber,
		GatewayID:     tx.GatewayID,
		UserID:        tx.UserID,
		Method:        tx.Method,
		Status:        tx.Status,
		Amount:        tx.Amount,
		SettledAt:     tx.UpdatedAt,
	}
}

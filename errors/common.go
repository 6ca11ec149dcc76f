package errors

import "fmt"

// ErrTransactionNotFound is returned by repositories for unknown request numbers or gateway ids.
var ErrTransactionNotFound = New("transaction not found")

// ErrUserNotFound is returned by repositories for unknown user ids.
var ErrUserNotFound = New("user not found")

// ErrInsufficientFunds is returned by a reservation that would take the balance below zero.
var ErrInsufficientFunds = New("insufficient funds")

// ErrGatewayRejected marks a provider call that was refused or never sent, so it had no
// effect on the provider side.
var ErrGatewayRejected = New("rejected by payment provider")

func InvalidParamsErr(err error) error {
	return E(Invalid, "invalid params", err)
}

func InvalidBodyErr(err error) error {
	return E(Invalid, "invalid request body", err)
}

func ValidationFailedErr(err error) error {
	return E(Invalid, "validation failed", err)
}

func EmptyParamErr(field string) error {
	ve := ValidationErrs()
	ve.Add(field, "cannot be empty")
	return E(Invalid, "validation failed", ve.Err())
}

func NotFoundErr(what string, err error) error {
	return E(NotFound, fmt.Sprintf("%s not found", what), err)
}

func InsufficientBalanceErr() error {
	return E(Insufficient, "insufficient balance", ErrInsufficientFunds)
}

// GatewayErr wraps a failed call to the payment provider.
func GatewayErr(op string, err error) error {
	return E(Unavailable, "payment provider unavailable, try again", fmt.Errorf("%s: %w", op, err))
}

// StorageErr wraps a failed read or write against the persistent store.
func StorageErr(op string, err error) error {
	return E(Internal, "storage failure", fmt.Errorf("%s: %w", op, err))
}

func UnauthorizedErr(msg string) error {
	return E(Unauthorized, msg, nil)
}

package models

import (
	// Go Internal Packages
	"encoding/json"
	"math"
	"testing"

	// External Packages
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    Amount
		wantErr bool
	}{
		{in: "10", want: 1000},
		{in: "10.5", want: 1050},
		{in: "50000.00", want: 5000000},
		{in: "0.01", want: 1},
		{in: "1.001", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "92233720368547758.07", want: math.MaxInt64},
		{in: "92233720368547758.08", wantErr: true},
		{in: "184467440737095616.16", wantErr: true},
		{in: "-92233720368547758.09", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAmountJSON(t *testing.T) {
	var body struct {
		A Amount `json:"a"`
		B Amount `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 100.5, "b": "60.00"}`), &body))
	assert.Equal(t, Amount(10050), body.A)
	assert.Equal(t, Amount(6000), body.B)

	out, err := json.Marshal(body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a": 100.50, "b": 60.00}`, string(out))

	var huge Amount
	assert.Error(t, json.Unmarshal([]byte(`184467440737095616.16`), &huge))
	assert.Error(t, json.Unmarshal([]byte(`"184467440737095616.16"`), &huge))
	assert.Zero(t, huge)
}

func TestMethodAndStatusValid(t *testing.T) {
	for _, m := range []Method{MethodPix, MethodCard, MethodBoleto, MethodWithdraw} {
		assert.True(t, m.Valid(), m)
	}
	assert.False(t, Method("CRYPTO").Valid())
	assert.False(t, Method("").Valid())

	for _, s := range []Status{StatusPending, StatusPaidOut, StatusFailed, StatusCanceled} {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, Status("PAID").Valid())
}

func TestStatusTransitions(t *testing.T) {
	assert.True(t, StatusPending.CanTransition(StatusPaidOut))
	assert.True(t, StatusPending.CanTransition(StatusCanceled))
	assert.False(t, StatusPending.CanTransition(StatusPending))
	assert.False(t, StatusPaidOut.CanTransition(StatusFailed))
	assert.False(t, StatusFailed.CanTransition(StatusPaidOut))
}

func TestBalanceEffect(t *testing.T) {
	deposit := Transaction{Method: MethodPix, Amount: 10000}
	withdrawal := Transaction{Method: MethodWithdraw, Amount: 6000}

	deposit.Status = StatusPaidOut
	assert.Equal(t, Amount(10000), deposit.BalanceEffect())
	deposit.Status = StatusFailed
	assert.Zero(t, deposit.BalanceEffect())

	withdrawal.Status = StatusPaidOut
	assert.Zero(t, withdrawal.BalanceEffect())
	withdrawal.Status = StatusCanceled
	assert.Equal(t, Amount(6000), withdrawal.BalanceEffect())
}

func TestUserHidesPasswordHash(t *testing.T) {
	out, err := json.Marshal(User{ID: "u1", PasswordHash: "secret", AppliedRefs: []string{"r1"}})
	require.NoError(t, err)
	assert.NotContains(t, string(out), "secret")
	assert.NotContains(t, string(out), "r1")
}

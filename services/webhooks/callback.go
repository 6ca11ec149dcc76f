package webhooks

import (
	// Go Internal Packages
	"bytes"
	"encoding/json"
	"strings"

	// Local Packages
	errors "payflow/errors"
	gateway "payflow/gateway"
	models "payflow/models"
)

// Callback is the validated form of a gateway status notification.
type Callback struct {
	GatewayID     string
	RequestNumber string
	Status        models.Status
	Type          string
	Amount        *models.Amount
}

type callbackBody struct {
	IDTransaction     *string        `json:"idTransaction"`
	RequestNumber     string         `json:"requestNumber"`
	StatusTransaction *string        `json:"statusTransaction"`
	TypeTransaction   string         `json:"typeTransaction"`
	Value             *models.Amount `json:"value"`
}

// ParseCallback decodes a callback body and fails on anything it cannot fully interpret.
func ParseCallback(body []byte) (Callback, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' {
		return Callback{}, errors.InvalidBodyErr(errors.New("expected a JSON object"))
	}

	var raw callbackBody
	if err := json.Unmarshal(body, &raw); err != nil {
		return Callback{}, errors.InvalidBodyErr(err)
	}

	ve := errors.ValidationErrs()
	if raw.IDTransaction == nil || strings.TrimSpace(*raw.IDTransaction) == "" {
		ve.Add("idTransaction", "cannot be empty")
	}
	var status models.Status
	if raw.StatusTransaction == nil {
		ve.Add("statusTransaction", "cannot be empty")
	} else {
		s, err := gateway.ParseStatus(*raw.StatusTransaction)
		if err != nil {
			ve.Add("statusTransaction", err.Error())
		}
		status = s
	}
	if raw.Value != nil && *raw.Value <= 0 {
		ve.Add("value", "must be positive")
	}
	if err := ve.Err(); err != nil {
		return Callback{}, errors.ValidationFailedErr(err)
	}

	return Callback{
		GatewayID:     strings.TrimSpace(*raw.IDTransaction),
		RequestNumber: strings.TrimSpace(raw.RequestNumber),
		Status:        status,
		Type:          raw.TypeTransaction,
		Amount:        raw.Value,
	}, nil
}

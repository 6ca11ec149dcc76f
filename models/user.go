package models

type User struct {
	ID           string `json:"id" bson:"_id"`
	Username     string `json:"username" bson:"username"`
	PasswordHash string `json:"-" bson:"password_hash"`
	// Balance is the withdrawable balance; BonusBalance never leaves the platform.
	Balance      Amount `json:"balance" bson:"balance"`
	BonusBalance Amount `json:"bonus_balance" bson:"bonus_balance"`
	PixKey       string `json:"pix_key,omitempty" bson:"pix_key,omitempty"`
	IsAdmin      bool   `json:"is_admin" bson:"is_admin"`
	// AppliedRefs holds the request numbers of the most recent settlements credited to this
	// user; a settlement already listed here is never applied twice.
	AppliedRefs []string `json:"-" bson:"applied_refs,omitempty"`
}

// Setting keys read by the gateway client.
const (
	SettingGatewayClientID     = "gatewayClientId"
	SettingGatewayClientSecret = "gatewayClientSecret"
)

type Setting struct {
	Key   string `json:"key" bson:"_id"`
	Value string `json:"value" bson:"value"`
}

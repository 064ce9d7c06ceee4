package db_models

type Customer struct {
	BaseModel
	Name         string
	Email        string `gorm:"uniqueIndex"`
	PasswordHash string `json:"-"`
	Document     string // CPF, required by the gateway as registry_code
	Phone        string

	// Address fields mirrored to the gateway customer record
	Street   string
	Number   string
	District string
	City     string
	State    string
	ZipCode  string

	// Handles at the payment gateway; filled lazily on first purchase
	GatewayCustomerID     string `gorm:"index"`
	PaymentProfileID      string `json:"-"`
	PaymentToken          string `json:"-"`
	GatewaySubscriptionID string
}

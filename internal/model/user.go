package model

// Tier is the account class gating premium features.
type Tier string

const (
	TierFree    Tier = "Free"
	TierPremium Tier = "Premium"
)

// User is a sender account authenticated via Google OAuth.
type User struct {
	Base
	Email            string  `json:"email" db:"email"`
	Name             string  `json:"name" db:"name"`
	Tier             Tier    `json:"tier" db:"tier"`
	IsAdmin          bool    `json:"is_admin" db:"is_admin"`
	EncryptedTokens  *string `json:"-" db:"encrypted_oauth_tokens"`
	StripeCustomerID *string `json:"-" db:"stripe_customer_id"`
}

// Package model defines the core domain types for linked accounts.
package model

import "time"

// LinkRequest is the inbound body sent by the client after completing Plaid Link.
type LinkRequest struct {
	PublicToken          string `json:"public_token"`
	FinancialInstitution string `json:"financial_inst"`
}

// CredentialRecord is one stored access token. It is written once and never updated.
type CredentialRecord struct {
	CreatedAt            time.Time
	ID                   string
	AccessToken          string
	FinancialInstitution string
}

// RawCredential is a row as read back from the credential table.
// NULL columns scan as empty strings.
type RawCredential struct {
	ID                   string
	AccessToken          string
	FinancialInstitution string
}

// Account is a validated credential ready for reporting.
type Account struct {
	AccessToken          string
	FinancialInstitution string
}

// MaskedToken returns the access token with everything but the last four characters hidden.
func (a Account) MaskedToken() string {
	return MaskToken(a.AccessToken)
}

// AccountCollection is the ordered result of a full credential scan.
type AccountCollection []Account

// Institutions returns the institution of every account, in order.
func (c AccountCollection) Institutions() []string {
	names := make([]string, 0, len(c))
	for _, a := range c {
		names = append(names, a.FinancialInstitution)
	}
	return names
}

// MaskToken hides all but the last four runes of a token.
func MaskToken(token string) string {
	runes := []rune(token)
	if len(runes) <= 4 {
		return "****"
	}
	return "****" + string(runes[len(runes)-4:])
}

package plaid

import "context"

// TokenExchanger defines the contract for exchanging a public token.
// This interface allows for easy mocking in tests.
type TokenExchanger interface {
	ExchangePublicToken(ctx context.Context, publicToken string, creds Credentials) (*ExchangeResponse, error)
}

// LinkTokenCreator defines the contract for starting a Plaid Link session.
type LinkTokenCreator interface {
	CreateLinkToken(ctx context.Context, creds Credentials) (*LinkToken, error)
}

package plaid

import (
	"context"
	"sync"
)

// MockClient is a mock implementation of TokenExchanger and LinkTokenCreator for testing.
type MockClient struct {
	// Functions that can be set by tests to control behavior
	ExchangePublicTokenFn func(ctx context.Context, publicToken string, creds Credentials) (*ExchangeResponse, error)
	CreateLinkTokenFn     func(ctx context.Context, creds Credentials) (*LinkToken, error)

	// Call tracking
	ExchangeCalls        []ExchangeCall
	CreateLinkTokenCalls int

	mu sync.Mutex
}

// ExchangeCall records the parameters of an ExchangePublicToken call.
type ExchangeCall struct {
	PublicToken string
	Credentials Credentials
}

// NewMockClient creates a new mock Plaid client.
func NewMockClient() *MockClient {
	return &MockClient{
		ExchangeCalls: []ExchangeCall{},
	}
}

// ExchangePublicToken implements TokenExchanger.
func (m *MockClient) ExchangePublicToken(ctx context.Context, publicToken string, creds Credentials) (*ExchangeResponse, error) {
	m.mu.Lock()
	m.ExchangeCalls = append(m.ExchangeCalls, ExchangeCall{
		PublicToken: publicToken,
		Credentials: creds,
	})
	fn := m.ExchangePublicTokenFn
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, publicToken, creds)
	}

	// Default behavior: derive a token from the public token
	return &ExchangeResponse{AccessToken: "access-" + publicToken}, nil
}

// CreateLinkToken implements LinkTokenCreator.
func (m *MockClient) CreateLinkToken(ctx context.Context, creds Credentials) (*LinkToken, error) {
	m.mu.Lock()
	m.CreateLinkTokenCalls++
	fn := m.CreateLinkTokenFn
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, creds)
	}

	return &LinkToken{Token: "link-sandbox-mock"}, nil
}

// ExchangeCallCount returns the number of exchange calls made so far.
func (m *MockClient) ExchangeCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ExchangeCalls)
}

// Reset clears all call tracking.
func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ExchangeCalls = []ExchangeCall{}
	m.CreateLinkTokenCalls = 0
}

// Ensure MockClient implements the client interfaces.
var (
	_ TokenExchanger   = (*MockClient)(nil)
	_ LinkTokenCreator = (*MockClient)(nil)
)

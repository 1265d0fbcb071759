// Package plaid provides a client for interacting with the Plaid API.
package plaid

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/davidjwriter/money-tracker/internal/common"
	"github.com/google/uuid"
	"github.com/plaid/plaid-go/v20/plaid"
)

// Link token settings used by the report generator.
const (
	linkClientName = "Weekly Budget Report"
	linkLanguage   = "en"
)

var environments = map[string]plaid.Environment{
	"sandbox":     plaid.Sandbox,
	"development": plaid.Environment("https://development.plaid.com"),
	"production":  plaid.Production,
}

// Config holds Plaid API configuration.
// BaseURL, when set, overrides Environment.
type Config struct {
	Environment string
	BaseURL     string
	Timeout     time.Duration
}

// Validate ensures the configuration names a reachable environment.
func (c *Config) Validate() error {
	if c.BaseURL != "" {
		if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
			return fmt.Errorf("plaid base URL must be http or https: %q", c.BaseURL)
		}
		return nil
	}
	if c.Environment == "" {
		return fmt.Errorf("plaid environment is required")
	}
	if _, ok := environments[c.Environment]; !ok {
		return fmt.Errorf("invalid Plaid environment: must be sandbox, development, or production")
	}
	return nil
}

func (c *Config) endpoint() plaid.Environment {
	if c.BaseURL != "" {
		return plaid.Environment(strings.TrimRight(c.BaseURL, "/"))
	}
	return environments[c.Environment]
}

// Credentials authenticate a single aggregator call.
type Credentials struct {
	ClientID string
	Secret   string
}

// String never includes the secret.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{ClientID:%s Secret:[redacted]}", c.ClientID)
}

// LogValue keeps the secret out of structured logs.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("client_id", c.ClientID),
		slog.String("secret", "[redacted]"),
	)
}

// ExchangeResponse is the aggregator's answer to a public token exchange.
type ExchangeResponse struct {
	AccessToken string
	ItemID      string
	RequestID   string
}

// LinkToken is a short-lived token used to open Plaid Link on the client.
type LinkToken struct {
	Expiration time.Time
	Token      string
	RequestID  string
}

// Client implements TokenExchanger and LinkTokenCreator.
type Client struct {
	client *plaid.APIClient
	logger *slog.Logger
}

// NewClient creates a new Plaid client. Credentials are supplied per call.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	configuration := plaid.NewConfiguration()
	configuration.UseEnvironment(cfg.endpoint())
	configuration.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &Client{
		client: plaid.NewAPIClient(configuration),
		logger: slog.Default().With("component", "plaid"),
	}, nil
}

// ExchangePublicToken exchanges a public token from Link for an access token.
// It makes exactly one request; retry policy belongs to the caller.
func (c *Client) ExchangePublicToken(ctx context.Context, publicToken string, creds Credentials) (*ExchangeResponse, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context cannot be nil")
	}

	request := plaid.NewItemPublicTokenExchangeRequest(publicToken)
	request.SetClientId(creds.ClientID)
	request.SetSecret(creds.Secret)

	c.logger.Debug("Exchanging public token", "credentials", creds)

	resp, httpResp, err := c.client.PlaidApi.ItemPublicTokenExchange(ctx).ItemPublicTokenExchangeRequest(*request).Execute()
	if err != nil {
		return nil, classifyError("exchange public token", httpResp, err)
	}

	accessToken := resp.GetAccessToken()
	if accessToken == "" {
		return nil, fmt.Errorf("%w: response has no access_token", common.ErrMalformedResponse)
	}

	c.logger.Debug("Exchanged public token", "item_id", resp.GetItemId(), "request_id", resp.GetRequestId())

	return &ExchangeResponse{
		AccessToken: accessToken,
		ItemID:      resp.GetItemId(),
		RequestID:   resp.GetRequestId(),
	}, nil
}

// CreateLinkToken creates a Link token for Plaid Link initialization.
func (c *Client) CreateLinkToken(ctx context.Context, creds Credentials) (*LinkToken, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context cannot be nil")
	}

	user := plaid.LinkTokenCreateRequestUser{
		ClientUserId: uuid.NewString(),
	}

	request := plaid.NewLinkTokenCreateRequest(
		linkClientName,
		linkLanguage,
		[]plaid.CountryCode{plaid.COUNTRYCODE_US},
		user,
	)
	request.SetProducts([]plaid.Products{plaid.PRODUCTS_TRANSACTIONS})
	request.SetClientId(creds.ClientID)
	request.SetSecret(creds.Secret)

	resp, httpResp, err := c.client.PlaidApi.LinkTokenCreate(ctx).LinkTokenCreateRequest(*request).Execute()
	if err != nil {
		return nil, classifyError("create link token", httpResp, err)
	}

	token := resp.GetLinkToken()
	if token == "" {
		return nil, fmt.Errorf("%w: response has no link_token", common.ErrMalformedResponse)
	}

	return &LinkToken{
		Token:      token,
		Expiration: resp.GetExpiration(),
		RequestID:  resp.GetRequestId(),
	}, nil
}

// classifyError maps a failed plaid-go call onto the exchange error kinds.
// No response means the request never completed. A non-success status is a
// rejection regardless of the body. A success status is malformed only when
// the body arrived and failed to decode; a body cut off in transit is a
// network failure.
func classifyError(op string, httpResp *http.Response, err error) error {
	if httpResp == nil {
		return fmt.Errorf("%w: %s: %w", common.ErrNetwork, op, err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		rejected := &common.RejectedError{StatusCode: httpResp.StatusCode}
		if plaidError := extractPlaidError(err); plaidError != nil {
			rejected.Code = plaidError.ErrorCode
			rejected.Message = plaidError.ErrorMessage
		}
		return fmt.Errorf("%s: %w", op, rejected)
	}

	if isDecodeError(err) {
		return fmt.Errorf("%w: %s: %w", common.ErrMalformedResponse, op, err)
	}
	return fmt.Errorf("%w: %s: %w", common.ErrNetwork, op, err)
}

func isDecodeError(err error) bool {
	var apiErr plaid.GenericOpenAPIError
	if errors.As(err, &apiErr) {
		return true
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}

// extractPlaidError attempts to extract a Plaid error from a generic error.
func extractPlaidError(err error) *plaid.PlaidError {
	plaidErr, convErr := plaid.ToPlaidError(err)
	if convErr != nil {
		return nil
	}
	if plaidErr.ErrorCode == "" {
		return nil
	}
	return &plaidErr
}

var (
	_ TokenExchanger   = (*Client)(nil)
	_ LinkTokenCreator = (*Client)(nil)
)

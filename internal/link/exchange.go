// Package link turns a public token from Plaid Link into a stored access token.
package link

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/davidjwriter/money-tracker/internal/common"
	"github.com/davidjwriter/money-tracker/internal/model"
	"github.com/davidjwriter/money-tracker/internal/plaid"
	"github.com/davidjwriter/money-tracker/internal/service"
	"github.com/google/uuid"
)

// maxBodyBytes bounds the inbound link request body.
const maxBodyBytes = 64 << 10

// Result describes a completed link.
type Result struct {
	CredentialID         string
	FinancialInstitution string
	ItemID               string
}

// Exchanger runs one linking event end to end. It holds no per-request state
// and is safe for concurrent use.
type Exchanger struct {
	secrets service.SecretProvider
	client  plaid.TokenExchanger
	store   service.CredentialWriter
	logger  *slog.Logger
	newID   func() string
	now     func() time.Time
	persist service.RetryOptions
}

// Option configures an Exchanger.
type Option func(*Exchanger)

// WithPersistRetry retries only the store write, reusing the same record id.
func WithPersistRetry(opts service.RetryOptions) Option {
	return func(e *Exchanger) {
		e.persist = opts
	}
}

// WithIDGenerator replaces the UUID generator.
func WithIDGenerator(fn func() string) Option {
	return func(e *Exchanger) {
		e.newID = fn
	}
}

// NewExchanger wires the secret provider, aggregator client, and credential store.
func NewExchanger(secrets service.SecretProvider, client plaid.TokenExchanger, store service.CredentialWriter, opts ...Option) *Exchanger {
	e := &Exchanger{
		secrets: secrets,
		client:  client,
		store:   store,
		logger:  slog.Default().With("component", "link"),
		newID:   uuid.NewString,
		now:     func() time.Time { return time.Now().UTC() },
		persist: service.RetryOptions{MaxAttempts: 1},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ParseLinkRequest decodes and validates an inbound link body.
func ParseLinkRequest(body io.Reader) (model.LinkRequest, error) {
	var req model.LinkRequest

	data, err := io.ReadAll(io.LimitReader(body, maxBodyBytes+1))
	if err != nil {
		return req, fmt.Errorf("%w: failed to read body: %w", common.ErrBadRequest, err)
	}
	if len(data) > maxBodyBytes {
		return req, fmt.Errorf("%w: body exceeds %d bytes", common.ErrBadRequest, maxBodyBytes)
	}

	decoder := json.NewDecoder(bytes.NewReader(data))
	if err := decoder.Decode(&req); err != nil {
		return req, fmt.Errorf("%w: invalid JSON: %w", common.ErrBadRequest, err)
	}
	if decoder.More() {
		return req, fmt.Errorf("%w: unexpected data after JSON body", common.ErrBadRequest)
	}

	if err := validateLinkRequest(req); err != nil {
		return req, err
	}
	return req, nil
}

func validateLinkRequest(req model.LinkRequest) error {
	if strings.TrimSpace(req.PublicToken) == "" {
		return fmt.Errorf("%w: public_token is required", common.ErrBadRequest)
	}
	if strings.TrimSpace(req.FinancialInstitution) == "" {
		return fmt.Errorf("%w: financial_inst is required", common.ErrBadRequest)
	}
	return nil
}

// Link exchanges req.PublicToken and records the resulting access token.
//
// Exchange failures leave nothing behind and the caller must restart the whole
// flow with a fresh public token. A persist failure is wrapped in
// common.ErrStoreWrite: the token was obtained but may not have been recorded.
func (e *Exchanger) Link(ctx context.Context, req model.LinkRequest) (*Result, error) {
	if err := validateLinkRequest(req); err != nil {
		return nil, err
	}

	creds, err := e.credentials()
	if err != nil {
		e.logger.Error("Link aborted before exchange", "stage", common.StageConfig, "error", err)
		return nil, err
	}

	exchanged, err := e.client.ExchangePublicToken(ctx, req.PublicToken, creds)
	if err != nil {
		e.logger.Warn("Public token exchange failed",
			"stage", common.StageExchange,
			"institution", req.FinancialInstitution,
			"error", err)
		return nil, err
	}

	record := model.CredentialRecord{
		ID:                   e.newID(),
		AccessToken:          exchanged.AccessToken,
		FinancialInstitution: req.FinancialInstitution,
		CreatedAt:            e.now(),
	}

	err = common.WithRetry(ctx, func(ctx context.Context) error {
		insertErr := e.store.Insert(ctx, record)
		if insertErr != nil && !errors.Is(insertErr, common.ErrStoreWrite) {
			return &common.RetryableError{Err: insertErr, Retryable: false}
		}
		return insertErr
	}, e.persist)
	if err != nil {
		e.logger.Error("Access token obtained but not recorded",
			"stage", common.StagePersist,
			"credential_id", record.ID,
			"institution", record.FinancialInstitution,
			"item_id", exchanged.ItemID,
			"error", err)
		return nil, fmt.Errorf("%w: credential %s: %w", common.ErrStoreWrite, record.ID, err)
	}

	e.logger.Info("Linked account",
		"credential_id", record.ID,
		"institution", record.FinancialInstitution,
		"item_id", exchanged.ItemID)

	return &Result{
		CredentialID:         record.ID,
		FinancialInstitution: record.FinancialInstitution,
		ItemID:               exchanged.ItemID,
	}, nil
}

// credentials loads the client id and secret, failing before any network call.
// The table name is checked here too so a token is never exchanged with nowhere to put it.
func (e *Exchanger) credentials() (plaid.Credentials, error) {
	if _, ok := e.secrets.TableName(); !ok {
		return plaid.Credentials{}, fmt.Errorf("%w: credential table name is not set", common.ErrConfiguration)
	}
	clientID, ok := e.secrets.ClientID()
	if !ok {
		return plaid.Credentials{}, fmt.Errorf("%w: plaid client id is not set", common.ErrConfiguration)
	}
	secret, ok := e.secrets.APISecret()
	if !ok {
		return plaid.Credentials{}, fmt.Errorf("%w: plaid secret is not set", common.ErrConfiguration)
	}
	return plaid.Credentials{ClientID: clientID, Secret: secret}, nil
}

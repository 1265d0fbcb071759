package link

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/davidjwriter/money-tracker/internal/common"
	"github.com/davidjwriter/money-tracker/internal/config"
	"github.com/davidjwriter/money-tracker/internal/plaid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postLink(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/access-token", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestExchangeHandler_Success(t *testing.T) {
	store := createTestStore(t)
	client := plaid.NewMockClient()
	handler := ExchangeHandler(NewExchanger(testSecrets(), client, store))

	rec := postLink(t, handler, `{"public_token":"pt-1","financial_inst":"Chase"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ok", rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get(StageHeader))

	rows, err := store.ScanAll(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "access-pt-1", rows[0].AccessToken)
	assert.Equal(t, "Chase", rows[0].FinancialInstitution)
}

func TestExchangeHandler_Errors(t *testing.T) {
	tests := []struct {
		exchangeErr error
		writerErr   error
		secrets     *config.Secrets
		name        string
		body        string
		wantStage   string
		wantBody    string
		wantStatus  int
	}{
		{
			name:       "malformed body",
			body:       `{"public_token":`,
			wantStatus: http.StatusBadRequest,
			wantStage:  common.StageRequest,
			wantBody:   "invalid JSON",
		},
		{
			name:       "missing public token",
			body:       `{"financial_inst":"Chase"}`,
			wantStatus: http.StatusBadRequest,
			wantStage:  common.StageRequest,
			wantBody:   "public_token is required",
		},
		{
			name:       "missing secret",
			body:       `{"public_token":"pt-1","financial_inst":"Chase"}`,
			secrets:    config.NewSecrets("client-id", "", testTable),
			wantStatus: http.StatusInternalServerError,
			wantStage:  common.StageConfig,
			wantBody:   "not configured",
		},
		{
			name:        "aggregator rejected",
			body:        `{"public_token":"pt-1","financial_inst":"Chase"}`,
			exchangeErr: &common.RejectedError{StatusCode: 400, Code: "INVALID_PUBLIC_TOKEN"},
			wantStatus:  http.StatusBadGateway,
			wantStage:   common.StageExchange,
			wantBody:    "status 400",
		},
		{
			name:        "aggregator unreachable",
			body:        `{"public_token":"pt-1","financial_inst":"Chase"}`,
			exchangeErr: fmt.Errorf("%w: dial tcp: connection refused", common.ErrNetwork),
			wantStatus:  http.StatusBadGateway,
			wantStage:   common.StageExchange,
			wantBody:    "could not reach",
		},
		{
			name:       "store write failed",
			body:       `{"public_token":"pt-1","financial_inst":"Chase"}`,
			writerErr:  fmt.Errorf("%w: disk full", common.ErrStoreWrite),
			wantStatus: http.StatusInternalServerError,
			wantStage:  common.StagePersist,
			wantBody:   "could not be saved",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			secrets := tt.secrets
			if secrets == nil {
				secrets = testSecrets()
			}
			client := plaid.NewMockClient()
			if tt.exchangeErr != nil {
				client.ExchangePublicTokenFn = func(_ context.Context, _ string, _ plaid.Credentials) (*plaid.ExchangeResponse, error) {
					return nil, tt.exchangeErr
				}
			}
			writer := &failingWriter{err: tt.writerErr}
			if tt.writerErr != nil {
				writer.failures = 1
			}

			rec := postLink(t, ExchangeHandler(NewExchanger(secrets, client, writer)), tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantStage, rec.Header().Get(StageHeader))
			assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Contains(t, rec.Body.String(), tt.wantBody)
			assert.NotContains(t, rec.Body.String(), "access-pt-1")
			assert.NotContains(t, rec.Body.String(), "client-id")
		})
	}
}

func TestExchangeHandler_MethodNotAllowed(t *testing.T) {
	client := plaid.NewMockClient()
	handler := ExchangeHandler(NewExchanger(testSecrets(), client, &failingWriter{}))

	req := httptest.NewRequest(http.MethodGet, "/api/access-token", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
	assert.Zero(t, client.ExchangeCallCount())
}

func TestExchangeHandler_CompletesAfterClientCancels(t *testing.T) {
	client := plaid.NewMockClient()
	client.ExchangePublicTokenFn = func(ctx context.Context, publicToken string, _ plaid.Credentials) (*plaid.ExchangeResponse, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return &plaid.ExchangeResponse{AccessToken: "access-" + publicToken}, nil
	}
	writer := &failingWriter{}
	handler := ExchangeHandler(NewExchanger(testSecrets(), client, writer))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/access-token",
		strings.NewReader(`{"public_token":"pt-1","financial_inst":"Chase"}`)).WithContext(ctx)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, writer.calls)
}

func TestLinkTokenHandler(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		client := plaid.NewMockClient()
		rec := httptest.NewRecorder()
		LinkTokenHandler(testSecrets(), client).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/link-token", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "link-sandbox-mock", body["link_token"])
		assert.Equal(t, 1, client.CreateLinkTokenCalls)
	})

	t.Run("missing client id", func(t *testing.T) {
		client := plaid.NewMockClient()
		rec := httptest.NewRecorder()
		LinkTokenHandler(config.NewSecrets("", "secret", testTable), client).
			ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/link-token", nil))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, common.StageConfig, rec.Header().Get(StageHeader))
		assert.Zero(t, client.CreateLinkTokenCalls)
	})

	t.Run("aggregator rejected", func(t *testing.T) {
		client := plaid.NewMockClient()
		client.CreateLinkTokenFn = func(_ context.Context, _ plaid.Credentials) (*plaid.LinkToken, error) {
			return nil, &common.RejectedError{StatusCode: 401}
		}
		rec := httptest.NewRecorder()
		LinkTokenHandler(testSecrets(), client).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/link-token", nil))

		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Equal(t, common.StageExchange, rec.Header().Get(StageHeader))
	})
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		name string
		want int
	}{
		{name: "bad request", err: fmt.Errorf("%w: x", common.ErrBadRequest), want: http.StatusBadRequest},
		{name: "configuration", err: fmt.Errorf("%w: x", common.ErrConfiguration), want: http.StatusInternalServerError},
		{name: "network", err: fmt.Errorf("%w: x", common.ErrNetwork), want: http.StatusBadGateway},
		{name: "rejected", err: &common.RejectedError{StatusCode: 400}, want: http.StatusBadGateway},
		{name: "malformed", err: fmt.Errorf("%w: x", common.ErrMalformedResponse), want: http.StatusBadGateway},
		{name: "store write", err: fmt.Errorf("%w: x", common.ErrStoreWrite), want: http.StatusInternalServerError},
		{
			name: "store write wrapping configuration",
			err:  fmt.Errorf("%w: %w", common.ErrStoreWrite, common.ErrConfiguration),
			want: http.StatusInternalServerError,
		},
		{name: "unknown", err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}

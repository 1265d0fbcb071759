package link

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/davidjwriter/money-tracker/internal/common"
	"github.com/davidjwriter/money-tracker/internal/plaid"
	"github.com/davidjwriter/money-tracker/internal/service"
)

// StageHeader names the pipeline stage that failed on an error response.
const StageHeader = "X-Link-Stage"

// ExchangeHandler serves POST requests carrying {"public_token", "financial_inst"}.
// Success is 200 with body "Ok".
func ExchangeHandler(exchanger *Exchanger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setCORS(w)

		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		req, err := ParseLinkRequest(r.Body)
		if err != nil {
			writeError(w, err)
			return
		}

		// Once started, exchange and persist run to completion even if the caller goes away.
		ctx := context.WithoutCancel(r.Context())
		if _, err := exchanger.Link(ctx, req); err != nil {
			writeError(w, err)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Ok"))
	}
}

// LinkTokenHandler serves a fresh Plaid Link token as {"link_token": "..."}.
func LinkTokenHandler(secrets service.SecretProvider, creator plaid.LinkTokenCreator) http.HandlerFunc {
	logger := slog.Default().With("component", "link")

	return func(w http.ResponseWriter, r *http.Request) {
		setCORS(w)

		clientID, ok := secrets.ClientID()
		if !ok {
			writeError(w, fmt.Errorf("%w: plaid client id is not set", common.ErrConfiguration))
			return
		}
		secret, ok := secrets.APISecret()
		if !ok {
			writeError(w, fmt.Errorf("%w: plaid secret is not set", common.ErrConfiguration))
			return
		}

		token, err := creator.CreateLinkToken(r.Context(), plaid.Credentials{ClientID: clientID, Secret: secret})
		if err != nil {
			logger.Warn("Link token creation failed", "error", err)
			writeError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]string{"link_token": token.Token}); err != nil {
			logger.Warn("Failed to write link token response", "error", err)
		}
	}
}

// StatusFor maps an error kind onto an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrStoreWrite):
		return http.StatusInternalServerError
	case errors.Is(err, common.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrConfiguration):
		return http.StatusInternalServerError
	case errors.Is(err, common.ErrNetwork),
		errors.Is(err, common.ErrAggregatorRejected),
		errors.Is(err, common.ErrMalformedResponse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// messageFor returns the human-readable body for an error. Internal detail
// stays in the logs.
func messageFor(err error) string {
	switch {
	case errors.Is(err, common.ErrStoreWrite):
		return "account was linked with the aggregator but could not be saved; contact support before retrying"
	case errors.Is(err, common.ErrBadRequest):
		return err.Error()
	case errors.Is(err, common.ErrConfiguration):
		return "service is not configured"
	case errors.Is(err, common.ErrAggregatorRejected):
		var rejected *common.RejectedError
		if errors.As(err, &rejected) {
			return fmt.Sprintf("aggregator rejected the link (status %d); restart linking", rejected.StatusCode)
		}
		return "aggregator rejected the link; restart linking"
	case errors.Is(err, common.ErrNetwork):
		return "could not reach the aggregator; restart linking"
	case errors.Is(err, common.ErrMalformedResponse):
		return "aggregator returned an unexpected response; restart linking"
	default:
		return "internal error"
	}
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set(StageHeader, common.Stage(err))
	http.Error(w, messageFor(err), StatusFor(err))
}

func setCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
}

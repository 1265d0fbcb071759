package config

import (
	"log/slog"
	"strings"

	"github.com/davidjwriter/money-tracker/internal/service"
)

// Secrets is a read-only SecretProvider resolved once at startup.
type Secrets struct {
	clientID  string
	apiSecret string
	tableName string
}

// NewSecrets builds a provider from explicit values. Blank values count as absent.
func NewSecrets(clientID, apiSecret, tableName string) *Secrets {
	return &Secrets{
		clientID:  strings.TrimSpace(clientID),
		apiSecret: strings.TrimSpace(apiSecret),
		tableName: strings.TrimSpace(tableName),
	}
}

// ClientID returns the aggregator client identifier.
func (s *Secrets) ClientID() (string, bool) {
	return s.clientID, s.clientID != ""
}

// APISecret returns the aggregator API secret.
func (s *Secrets) APISecret() (string, bool) {
	return s.apiSecret, s.apiSecret != ""
}

// TableName returns the credential table name.
func (s *Secrets) TableName() (string, bool) {
	return s.tableName, s.tableName != ""
}

// LogValue reports which values are present without exposing them.
func (s *Secrets) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("client_id_set", s.clientID != ""),
		slog.Bool("secret_set", s.apiSecret != ""),
		slog.String("table", s.tableName),
	)
}

var _ service.SecretProvider = (*Secrets)(nil)

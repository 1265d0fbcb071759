package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/davidjwriter/money-tracker/internal/common"
	"github.com/davidjwriter/money-tracker/internal/model"
)

// Validation errors.
var (
	ErrNilContext       = errors.New("context cannot be nil")
	ErrEmptyString      = errors.New("string parameter cannot be empty")
	ErrInvalidTableName = errors.New("invalid table name")
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateTableName restricts table names to plain identifiers so they can be quoted safely.
func validateTableName(name string) error {
	if !tableNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %w: %q", common.ErrConfiguration, ErrInvalidTableName, name)
	}
	return nil
}

// requireTable reports a configuration error when no table name was resolved.
func (s *Storage) requireTable() error {
	if s.table == "" {
		return fmt.Errorf("%w: credential table name is not set", common.ErrConfiguration)
	}
	return nil
}

// validateRecord enforces the stored-record invariants before any write.
func validateRecord(record model.CredentialRecord) error {
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("%w: missing id", common.ErrInvalidRecord)
	}
	if record.AccessToken == "" {
		return fmt.Errorf("%w: missing access_token", common.ErrInvalidRecord)
	}
	if record.FinancialInstitution == "" {
		return fmt.Errorf("%w: missing financial_institution", common.ErrInvalidRecord)
	}
	return nil
}

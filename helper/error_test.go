package helper

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewError(t *testing.T) {
	t.Run("Wraps the error with the operation", func(t *testing.T) {
		err := NewError("select documents", fmt.Errorf("connection refused"))

		assert.EqualError(t, err, "select documents: connection refused")
	})

	t.Run("Keeps the original error reachable", func(t *testing.T) {
		sentinel := errors.New("not found")
		err := NewError("outer", NewError("inner", sentinel))

		assert.ErrorIs(t, err, sentinel, "Expected errors.Is to see through nested wrapping")

		var wrapped *Error
		assert.ErrorAs(t, err, &wrapped)
		assert.Equal(t, "outer", wrapped.Operation)
	})

	t.Run("Nil error stays nil", func(t *testing.T) {
		assert.NoError(t, NewError("noop", nil))
	})
}

func TestNewDatabaseConfiguration(t *testing.T) {
	t.Run("Reads configuration from environment", func(t *testing.T) {
		t.Setenv("PKM_DB_HOST", "db.local")
		t.Setenv("PKM_DB_PORT", "5433")
		t.Setenv("PKM_DB_DATABASE", "pkm")
		t.Setenv("PKM_DB_USERNAME", "pkm")
		t.Setenv("PKM_DB_PASSWORD", "secret")
		t.Setenv("PKM_DB_SCHEMA", "")
		t.Setenv("PKM_DB_SSLMODE", "")

		config, err := NewDatabaseConfiguration()
		assert.NoError(t, err)
		assert.Equal(t, "db.local", config.Host)
		assert.Equal(t, "5433", config.Port)
		assert.Equal(t, "public", config.Schema, "Expected schema to default to public")
		assert.Equal(t, "disable", config.SSLMode, "Expected sslmode to default to disable")
		assert.Contains(t, config.DSN(), "dbname=pkm")
	})

	t.Run("Missing host is an error", func(t *testing.T) {
		t.Setenv("PKM_DB_HOST", "")
		t.Setenv("PKM_DB_PORT", "5432")
		t.Setenv("PKM_DB_DATABASE", "pkm")
		t.Setenv("PKM_DB_USERNAME", "pkm")

		_, err := NewDatabaseConfiguration()
		assert.Error(t, err)
	})
}

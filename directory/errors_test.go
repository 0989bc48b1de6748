package directory

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewErrorCategorizesLDAPCodes(t *testing.T) {
	tests := []struct {
		name              string
		code              uint16
		expectedCategory  ErrorCategory
		expectedRetryable bool
	}{
		{"invalid credentials", ldap.LDAPResultInvalidCredentials, ErrorCategoryAuthentication, false},
		{"insufficient access", ldap.LDAPResultInsufficientAccessRights, ErrorCategoryPermission, false},
		{"no such object", ldap.LDAPResultNoSuchObject, ErrorCategoryNotFound, false},
		{"filter error", ldap.LDAPResultFilterError, ErrorCategoryValidation, false},
		{"server busy", ldap.LDAPResultBusy, ErrorCategoryServer, true},
		{"server down", ldap.LDAPResultServerDown, ErrorCategoryServer, true},
		{"unavailable", ldap.LDAPResultUnavailable, ErrorCategoryServer, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cause := ldap.NewError(tt.code, fmt.Errorf("server said no"))
			err := NewError("search", cause)

			require.NotNil(t, err)
			assert.Equal(t, tt.expectedCategory, err.Category)
			assert.Equal(t, tt.expectedRetryable, err.Retryable)
			assert.Equal(t, tt.code, err.LDAPCode)
			assert.ErrorIs(t, err, cause)
		})
	}
}

func TestNewErrorCategorizesGenericErrors(t *testing.T) {
	tests := []struct {
		name             string
		err              error
		expectedCategory ErrorCategory
	}{
		{"connection refused", errors.New("connection refused"), ErrorCategoryConnection},
		{"timeout", errors.New("i/o timeout"), ErrorCategoryConnection},
		{"bad password", errors.New("wrong password supplied"), ErrorCategoryAuthentication},
		{"access denied", errors.New("access denied"), ErrorCategoryPermission},
		{"anything else", errors.New("boom"), ErrorCategoryUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewError("search", tt.err)
			require.NotNil(t, err)
			assert.Equal(t, tt.expectedCategory, err.Category)
		})
	}
}

func TestWrapError(t *testing.T) {
	assert.Nil(t, WrapError("search", nil))

	wrapped := WrapError("search", errors.New("boom"))
	var dirErr *Error
	require.ErrorAs(t, wrapped, &dirErr)
	assert.Equal(t, "search", dirErr.Operation)

	// Wrapping again keeps the original operation.
	rewrapped := WrapError("bind", wrapped)
	require.ErrorAs(t, rewrapped, &dirErr)
	assert.Equal(t, "search", dirErr.Operation)
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, IsRetryableError(nil))
	assert.True(t, IsRetryableError(errors.New("connection reset by peer")))
	assert.False(t, IsRetryableError(errors.New("boom")))
	assert.True(t, IsRetryableError(NewConnectionError("pool exhausted", true, nil)))
	assert.False(t, IsRetryableError(NewConnectionError("bad config", false, nil)))
}

func TestIsUnavailableError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"server down", NewError("search", ldap.NewError(ldap.LDAPResultServerDown, errors.New("down"))), true},
		{"unwilling to perform", NewError("search", ldap.NewError(ldap.LDAPResultUnwillingToPerform, errors.New("no"))), true},
		{"connection refused", NewError("search", errors.New("connection refused")), true},
		{"not found", NewError("search", ldap.NewError(ldap.LDAPResultNoSuchObject, errors.New("gone"))), false},
		{"invalid credentials", NewError("bind", ldap.NewError(ldap.LDAPResultInvalidCredentials, errors.New("bad"))), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsUnavailableError(tt.err))
		})
	}
}

func TestErrorMessage(t *testing.T) {
	err := &Error{
		Operation: "search",
		LDAPCode:  ldap.LDAPResultNoSuchObject,
		Message:   "No Such Object",
		DN:        "CN=missing,DC=contoso,DC=local",
	}
	msg := err.Error()
	assert.Contains(t, msg, "search")
	assert.Contains(t, msg, "code 32")
	assert.Contains(t, msg, "CN=missing,DC=contoso,DC=local")
}

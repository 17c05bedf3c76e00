package vault

import (
	"errors"
	"fmt"

	"github.com/obscura-labs/obscura/common"
)

// Error is a vault operation failure with a stable numeric code. Codes are
// part of the external interface and must not be renumbered.
type Error struct {
	Code uint32
	Name string
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Name, e.Code, e.Msg)
}

const errorCodeOffset = 6000

func newError(index uint32, name, msg string) *Error {
	return &Error{Code: errorCodeOffset + index, Name: name, Msg: msg}
}

var (
	// ErrNotDelegated is returned when an operation requires a delegated vault.
	ErrNotDelegated = newError(0, "NotDelegated", "the account is not currently delegated to a fast-execution validator")
	// ErrInsufficientBalance is returned when the amount exceeds the vault balance.
	ErrInsufficientBalance = newError(1, "InsufficientBalance", "insufficient balance for this operation")
	// ErrUnauthorized is returned when the caller is not the vault owner.
	ErrUnauthorized = newError(2, "Unauthorized", "caller is not authorized to perform this action")
	// ErrAccountDelegated is returned when an operation requires authority on the base ledger.
	ErrAccountDelegated = newError(3, "AccountDelegated", "the account is currently delegated, undelegate first")
	// ErrInvalidValidator is declared for validator validation. Not raised by any operation.
	ErrInvalidValidator = newError(4, "InvalidValidator", "invalid validator public key")
	// ErrPermissionExists is declared for duplicate grant detection. Not raised by any
	// operation: duplicates fail at allocation with ErrAccountInUse.
	ErrPermissionExists = newError(5, "PermissionExists", "permission already exists for this public key")
	// ErrNotPrivate is declared for private-mode validation. Not raised by any operation.
	ErrNotPrivate = newError(6, "NotPrivate", "vault is not in private mode")
)

// Errors raised by the execution runtime rather than by vault preconditions.
var (
	// ErrVaultNotFound is returned when no record exists at the vault address.
	ErrVaultNotFound = errors.New("vault not found")
	// ErrPermissionNotFound is returned when no grant exists at an address.
	ErrPermissionNotFound = errors.New("permission not found")
	// ErrAccountInUse is returned when allocating a record at an address that is already in use.
	ErrAccountInUse = errors.New("account address already in use")
	// ErrInsufficientFunds is returned by the native transfer primitive.
	ErrInsufficientFunds = errors.New("insufficient native funds")
	// ErrArithmeticOverflow is returned when a checked balance or nonce update would wrap.
	ErrArithmeticOverflow = common.ErrArithmeticOverflow
)

// ErrorByCode returns the vault error with the given code, if any.
func ErrorByCode(code uint32) (*Error, bool) {
	for _, e := range []*Error{
		ErrNotDelegated,
		ErrInsufficientBalance,
		ErrUnauthorized,
		ErrAccountDelegated,
		ErrInvalidValidator,
		ErrPermissionExists,
		ErrNotPrivate,
	} {
		if e.Code == code {
			return e, true
		}
	}
	return nil, false
}

package vault

import (
	"github.com/obscura-labs/obscura/common"
)

// Well-known identities used when no override is configured.
const (
	DefaultDelegationProgram     = "DELeGGvXpWV2fqJUhqcF5ZSYMS4JTLjteaAMARRSaeSh"
	DefaultAccessControlProgram  = "ACLseoPoyC3cBqoUtkbjZ4aDrkurZW86v19pXz2XQnp1"
	DefaultConfidentialValidator = "FnE6VJT5QNZdedZPnCoLsARgBwoE6DeJNjBs2H1gySXA"
)

// TrustAnchors are the fixed identities the controller trusts.
type TrustAnchors struct {
	// DelegationProgram is the identity of the delegation service that takes
	// ownership of delegated vaults.
	DelegationProgram common.PublicKey
	// AccessControlProgram is the identity of the reader that consumes
	// permission records.
	AccessControlProgram common.PublicKey
	// ConfidentialValidator is the validator whose execution is
	// visibility-restricted. Delegating to it marks a vault private.
	ConfidentialValidator common.PublicKey
}

// DefaultTrustAnchors returns the well-known production identities.
func DefaultTrustAnchors() TrustAnchors {
	return TrustAnchors{
		DelegationProgram:     common.MustParsePublicKey(DefaultDelegationProgram),
		AccessControlProgram:  common.MustParsePublicKey(DefaultAccessControlProgram),
		ConfidentialValidator: common.MustParsePublicKey(DefaultConfidentialValidator),
	}
}

// IsConfidential reports whether `validator` is the confidential-execution validator.
func (a TrustAnchors) IsConfidential(validator common.PublicKey) bool {
	return !validator.IsZero() && validator.Equal(a.ConfidentialValidator)
}

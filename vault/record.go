package vault

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/oasisprotocol/oasis-core/go/common/cbor"

	"github.com/obscura-labs/obscura/common"
)

// DiscriminatorSize is the size of the account-type tag prefixed to every
// encoded record.
const DiscriminatorSize = 8

var (
	vaultDiscriminator      = discriminator("VaultState")
	permissionDiscriminator = discriminator("PermissionState")
)

func discriminator(name string) [DiscriminatorSize]byte {
	var d [DiscriminatorSize]byte
	h := sha256.Sum256([]byte("account:" + name))
	copy(d[:], h[:DiscriminatorSize])
	return d
}

// State is the delegation state of a vault, derived from its record.
type State uint8

const (
	// StateLocal means the base ledger holds authority over the vault.
	StateLocal State = iota
	// StateDelegatedFast means a fast-execution validator holds authority.
	StateDelegatedFast
	// StateDelegatedPrivate refines StateDelegatedFast: the holder is the
	// confidential-execution validator.
	StateDelegatedPrivate
)

func (s State) String() string {
	switch s {
	case StateLocal:
		return "local"
	case StateDelegatedFast:
		return "delegated_fast"
	case StateDelegatedPrivate:
		return "delegated_private"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// IsDelegated is true for both delegated states.
func (s State) IsDelegated() bool {
	return s == StateDelegatedFast || s == StateDelegatedPrivate
}

// VaultRecord is the persisted state of one vault.
type VaultRecord struct {
	Owner             common.PublicKey `json:"owner"`
	VaultID           uint64           `json:"vault_id"`
	Balance           uint64           `json:"balance"`
	IsDelegated       bool             `json:"is_delegated"`
	DelegateValidator common.PublicKey `json:"delegate_validator"`
	CreatedAt         int64            `json:"created_at"`
	LastActivity      int64            `json:"last_activity"`
	Nonce             uint64           `json:"nonce"`
	IsPrivate         bool             `json:"is_private"`
}

// NewVaultRecord returns a fresh Local record owned by `owner`.
func NewVaultRecord(owner common.PublicKey, vaultID uint64, now int64) *VaultRecord {
	return &VaultRecord{
		Owner:             owner,
		VaultID:           vaultID,
		DelegateValidator: common.ZeroPublicKey,
		CreatedAt:         now,
		LastActivity:      now,
	}
}

// Address is the deterministic address of the record.
func (r *VaultRecord) Address() common.Address {
	return common.VaultAddress(r.VaultID)
}

// State derives the delegation state.
func (r *VaultRecord) State() State {
	switch {
	case !r.IsDelegated:
		return StateLocal
	case r.IsPrivate:
		return StateDelegatedPrivate
	default:
		return StateDelegatedFast
	}
}

// IsOwner reports whether `caller` controls the vault.
func (r *VaultRecord) IsOwner(caller common.PublicKey) bool {
	return r.Owner.Equal(caller)
}

// Clone returns a deep copy of the record.
func (r *VaultRecord) Clone() *VaultRecord {
	c := *r
	return &c
}

// Equal compares two records field by field.
func (r *VaultRecord) Equal(other *VaultRecord) bool {
	return *r == *other
}

// setDelegation hands authority to `validator`, marking the vault private if
// the validator is the confidential one.
func (r *VaultRecord) setDelegation(validator common.PublicKey, anchors TrustAnchors) {
	r.IsDelegated = true
	r.DelegateValidator = validator
	r.IsPrivate = anchors.IsConfidential(validator)
}

// clearDelegation returns authority to the base ledger.
func (r *VaultRecord) clearDelegation() {
	r.IsDelegated = false
	r.DelegateValidator = common.ZeroPublicKey
	r.IsPrivate = false
}

// CheckInvariants verifies the delegation flag invariants of the record.
func (r *VaultRecord) CheckInvariants(anchors TrustAnchors) error {
	if r.IsPrivate && !r.IsDelegated {
		return fmt.Errorf("vault %d: private but not delegated", r.VaultID)
	}
	if r.IsDelegated == r.DelegateValidator.IsZero() {
		return fmt.Errorf("vault %d: delegate validator set=%t but delegated=%t", r.VaultID, !r.DelegateValidator.IsZero(), r.IsDelegated)
	}
	if r.IsPrivate != anchors.IsConfidential(r.DelegateValidator) {
		return fmt.Errorf("vault %d: private=%t disagrees with validator %s", r.VaultID, r.IsPrivate, r.DelegateValidator)
	}
	return nil
}

type vaultRecordBody VaultRecord

// MarshalBinary encodes the record as discriminator || CBOR body.
func (r *VaultRecord) MarshalBinary() ([]byte, error) {
	return append(vaultDiscriminator[:], cbor.Marshal((*vaultRecordBody)(r))...), nil
}

// UnmarshalBinary decodes a record produced by MarshalBinary.
func (r *VaultRecord) UnmarshalBinary(data []byte) error {
	body, err := stripDiscriminator(data, vaultDiscriminator, "VaultState")
	if err != nil {
		return err
	}
	return cbor.Unmarshal(body, (*vaultRecordBody)(r))
}

// PermissionRecord grants `Permitted` read visibility over a private vault.
type PermissionRecord struct {
	Vault     common.Address   `json:"vault"`
	Permitted common.PublicKey `json:"permitted"`
	GrantedBy common.PublicKey `json:"granted_by"`
	GrantedAt int64            `json:"granted_at"`
}

// Address is the deterministic address of the grant.
func (p *PermissionRecord) Address() common.Address {
	return common.PermissionAddress(p.Vault, p.Permitted)
}

type permissionRecordBody PermissionRecord

// MarshalBinary encodes the record as discriminator || CBOR body.
func (p *PermissionRecord) MarshalBinary() ([]byte, error) {
	return append(permissionDiscriminator[:], cbor.Marshal((*permissionRecordBody)(p))...), nil
}

// UnmarshalBinary decodes a record produced by MarshalBinary.
func (p *PermissionRecord) UnmarshalBinary(data []byte) error {
	body, err := stripDiscriminator(data, permissionDiscriminator, "PermissionState")
	if err != nil {
		return err
	}
	return cbor.Unmarshal(body, (*permissionRecordBody)(p))
}

func stripDiscriminator(data []byte, expected [DiscriminatorSize]byte, name string) ([]byte, error) {
	if len(data) < DiscriminatorSize {
		return nil, fmt.Errorf("%s: account data too short (%d bytes)", name, len(data))
	}
	if !bytes.Equal(data[:DiscriminatorSize], expected[:]) {
		return nil, fmt.Errorf("%s: account discriminator mismatch %x", name, data[:DiscriminatorSize])
	}
	return data[DiscriminatorSize:], nil
}

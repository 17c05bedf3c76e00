package common

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/oasisprotocol/oasis-core/go/common/crypto/address"
)

var (
	// AddressBech32HRP is the human readable part of the text form of addresses.
	AddressBech32HRP = address.NewBech32HRP("obscura")

	// VaultAddressContext is the namespace tag for vault record addresses.
	VaultAddressContext = address.NewContext("obscura_vault", 0)
	// PermissionAddressContext is the namespace tag for permission record addresses.
	PermissionAddressContext = address.NewContext("obscura_permission", 0)
	// IdentityAddressContext is the namespace tag for native accounts owned by a public key.
	IdentityAddressContext = address.NewContext("obscura_identity", 0)
)

// Address is the deterministic address of a record or native account.
type Address address.Address

// VaultAddress derives the address of the vault with the given id.
func VaultAddress(vaultID uint64) Address {
	var seed [8]byte
	binary.LittleEndian.PutUint64(seed[:], vaultID)
	return Address(address.NewAddress(VaultAddressContext, seed[:]))
}

// PermissionAddress derives the address of the grant of `permitted` on `vault`.
// The (vault, permitted) pair is unique per address.
func PermissionAddress(vault Address, permitted PublicKey) Address {
	data := make([]byte, 0, len(vault)+PublicKeySize)
	data = append(data, vault[:]...)
	data = append(data, permitted[:]...)
	return Address(address.NewAddress(PermissionAddressContext, data))
}

// IdentityAddress derives the native account address controlled by `pk`.
func IdentityAddress(pk PublicKey) Address {
	return Address(address.NewAddress(IdentityAddressContext, pk[:]))
}

// VaultSeeds returns the seeds the vault address is derived from, in the
// form expected by the delegation service.
func VaultSeeds(vaultID uint64) [][]byte {
	var seed [8]byte
	binary.LittleEndian.PutUint64(seed[:], vaultID)
	return [][]byte{[]byte(VaultAddressContext.Identifier), seed[:]}
}

func (a Address) String() string {
	text, err := a.MarshalText()
	if err != nil {
		return fmt.Sprintf("%x", a[:])
	}
	return string(text)
}

func (a Address) MarshalText() ([]byte, error) {
	return address.Address(a).MarshalBech32(AddressBech32HRP)
}

func (a *Address) UnmarshalText(text []byte) error {
	return (*address.Address)(a).UnmarshalBech32(AddressBech32HRP, text)
}

func (a Address) MarshalJSON() ([]byte, error) {
	text, err := a.MarshalText()
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(text))
}

func (a *Address) UnmarshalJSON(text []byte) error {
	var s string
	if err := json.Unmarshal(text, &s); err != nil {
		return fmt.Errorf("address must be a string: %w", err)
	}
	return a.UnmarshalText([]byte(s))
}

// MarshalBinary returns the raw address bytes.
func (a Address) MarshalBinary() ([]byte, error) {
	return address.Address(a).MarshalBinary()
}

// UnmarshalBinary decodes raw address bytes.
func (a *Address) UnmarshalBinary(data []byte) error {
	return (*address.Address)(a).UnmarshalBinary(data)
}

// Equal compares two addresses.
func (a Address) Equal(other Address) bool {
	return address.Address(a).Equal(address.Address(other))
}

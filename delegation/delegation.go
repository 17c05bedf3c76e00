// Package delegation holds the adapters that connect the vault controller to
// a fast-execution layer.
package delegation

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/obscura-labs/obscura/common"
	"github.com/obscura-labs/obscura/vault"
)

var (
	// ErrNotDelegated is returned when committing an account the layer holds
	// no authority over.
	ErrNotDelegated = errors.New("account is not delegated")
	// ErrBadSeeds is returned when the seeds don't derive the delegated account.
	ErrBadSeeds = errors.New("seeds do not derive the delegated account")
	// ErrBadValidator is returned for the zero validator.
	ErrBadValidator = errors.New("invalid validator")
)

// CheckRequest validates a delegation request: the validator is set, the
// seeds derive the account address, and the snapshot is a vault record
// consistent with the request.
func CheckRequest(req *vault.DelegateRequest) error {
	if req.Validator.IsZero() {
		return ErrBadValidator
	}
	if len(req.Seeds) != 2 ||
		!bytes.Equal(req.Seeds[0], []byte(common.VaultAddressContext.Identifier)) ||
		len(req.Seeds[1]) != 8 {
		return ErrBadSeeds
	}
	vaultID := binary.LittleEndian.Uint64(req.Seeds[1])
	if !common.VaultAddress(vaultID).Equal(req.Account.Address) {
		return ErrBadSeeds
	}

	rec, err := DecodeSnapshot(req.Account)
	if err != nil {
		return err
	}
	if !rec.Owner.Equal(req.Owner) || !rec.DelegateValidator.Equal(req.Validator) {
		return fmt.Errorf("snapshot of vault %d disagrees with the request", rec.VaultID)
	}
	return nil
}

// DecodeSnapshot decodes the vault record carried by a snapshot and checks
// it lives at the snapshot address.
func DecodeSnapshot(s vault.Snapshot) (*vault.VaultRecord, error) {
	var rec vault.VaultRecord
	if err := rec.UnmarshalBinary(s.Data); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	if !rec.Address().Equal(s.Address) {
		return nil, fmt.Errorf("snapshot of vault %d at foreign address %s", rec.VaultID, s.Address)
	}
	return &rec, nil
}

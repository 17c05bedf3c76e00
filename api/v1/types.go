package v1

import (
	"github.com/obscura-labs/obscura/common"
	"github.com/obscura-labs/obscura/vault"
)

// Vault is the JSON view of a vault record.
type Vault struct {
	Address           common.Address   `json:"address"`
	VaultID           uint64           `json:"vault_id"`
	Owner             common.PublicKey `json:"owner"`
	Balance           common.Amount    `json:"balance"`
	BalanceDecimal    string           `json:"balance_decimal"`
	State             string           `json:"state"`
	IsDelegated       bool             `json:"is_delegated"`
	DelegateValidator common.PublicKey `json:"delegate_validator"`
	IsPrivate         bool             `json:"is_private"`
	Nonce             uint64           `json:"nonce"`
	CreatedAt         int64            `json:"created_at"`
	LastActivity      int64            `json:"last_activity"`
}

func newVault(rec *vault.VaultRecord) *Vault {
	return &Vault{
		Address:           rec.Address(),
		VaultID:           rec.VaultID,
		Owner:             rec.Owner,
		Balance:           common.Amount(rec.Balance),
		BalanceDecimal:    common.Amount(rec.Balance).Decimal(),
		State:             rec.State().String(),
		IsDelegated:       rec.IsDelegated,
		DelegateValidator: rec.DelegateValidator,
		IsPrivate:         rec.IsPrivate,
		Nonce:             rec.Nonce,
		CreatedAt:         rec.CreatedAt,
		LastActivity:      rec.LastActivity,
	}
}

// VaultReceipt acknowledges an operation on a vault the caller may not read.
type VaultReceipt struct {
	Address common.Address `json:"address"`
	VaultID uint64         `json:"vault_id"`
}

func newVaultReceipt(rec *vault.VaultRecord) *VaultReceipt {
	return &VaultReceipt{
		Address: rec.Address(),
		VaultID: rec.VaultID,
	}
}

// Permission is the JSON view of a read grant.
type Permission struct {
	Address   common.Address   `json:"address"`
	Vault     common.Address   `json:"vault"`
	Permitted common.PublicKey `json:"permitted"`
	GrantedBy common.PublicKey `json:"granted_by"`
	GrantedAt int64            `json:"granted_at"`
}

func newPermission(p *vault.PermissionRecord) *Permission {
	return &Permission{
		Address:   p.Address(),
		Vault:     p.Vault,
		Permitted: p.Permitted,
		GrantedBy: p.GrantedBy,
		GrantedAt: p.GrantedAt,
	}
}

// PermissionList is a page of grants on one vault.
type PermissionList struct {
	Permissions []*Permission `json:"permissions"`
	TotalCount  uint64        `json:"total_count"`
}

// Account is the native balance of an identity.
type Account struct {
	Address        common.Address   `json:"address"`
	Owner          common.PublicKey `json:"owner"`
	Balance        common.Amount    `json:"balance"`
	BalanceDecimal string           `json:"balance_decimal"`
}

func newAccount(owner common.PublicKey, balance uint64) *Account {
	return &Account{
		Address:        common.IdentityAddress(owner),
		Owner:          owner,
		Balance:        common.Amount(balance),
		BalanceDecimal: common.Amount(balance).Decimal(),
	}
}

// Status describes the running service.
type Status struct {
	Store                 string           `json:"store"`
	DelegationProgram     common.PublicKey `json:"delegation_program"`
	AccessControlProgram  common.PublicKey `json:"access_control_program"`
	ConfidentialValidator common.PublicKey `json:"confidential_validator"`
	FaucetEnabled         bool             `json:"faucet_enabled"`
}

// CreateVaultRequest is the body of POST /v1/vaults.
type CreateVaultRequest struct {
	VaultID *uint64 `json:"vault_id"`
}

// DelegateRequest is the body of POST /v1/vaults/{vault_id}/delegate.
type DelegateRequest struct {
	Validator common.PublicKey `json:"validator"`
}

// TransferRequest is the body of POST /v1/vaults/{vault_id}/transfer.
type TransferRequest struct {
	Amount    common.Amount    `json:"amount"`
	Recipient common.PublicKey `json:"recipient"`
}

// AmountRequest is the body of deposits and withdrawals.
type AmountRequest struct {
	Amount common.Amount `json:"amount"`
}

// PermissionRequest is the body of POST /v1/vaults/{vault_id}/permissions.
type PermissionRequest struct {
	Permitted common.PublicKey `json:"permitted"`
}

// FaucetRequest is the body of POST /v1/faucet.
type FaucetRequest struct {
	Recipient common.PublicKey `json:"recipient"`
	Amount    common.Amount    `json:"amount"`
}

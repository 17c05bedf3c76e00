package postgres

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/obscura-labs/obscura/common"
	"github.com/obscura-labs/obscura/metrics"
	"github.com/obscura-labs/obscura/storage"
	"github.com/obscura-labs/obscura/vault"
)

// VaultStore is a vault.Store backed by PostgreSQL. Records are kept both
// as queryable columns and in their binary account encoding; the encoding is
// what gets read back.
type VaultStore struct {
	client  *Client
	metrics metrics.DatabaseMetrics
}

var _ vault.Store = (*VaultStore)(nil)

// NewVaultStore creates a vault store on top of `client`. The schema must
// already be migrated.
func NewVaultStore(client *Client) *VaultStore {
	return &VaultStore{
		client:  client,
		metrics: metrics.NewDefaultDatabaseMetrics("obscura"),
	}
}

func (s *VaultStore) observe(operation string, fn func() error) error {
	return s.metrics.Instrument(s.client.Name(), operation, fn)
}

// Begin implements vault.Store.
func (s *VaultStore) Begin(ctx context.Context) (vault.Tx, error) {
	var pgTx storage.Tx
	err := s.observe("begin", func() (err error) {
		pgTx, err = s.client.Begin(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &vaultTx{store: s, tx: pgTx}, nil
}

// Vault implements vault.Store.
func (s *VaultStore) Vault(ctx context.Context, addr common.Address) (*vault.VaultRecord, error) {
	var rec *vault.VaultRecord
	err := s.observe("vault", func() (err error) {
		rec, err = scanVault(s.client.QueryRow(ctx, selectVault, addr[:]))
		return err
	})
	return rec, err
}

// Permission implements vault.Store.
func (s *VaultStore) Permission(ctx context.Context, addr common.Address) (*vault.PermissionRecord, error) {
	var rec *vault.PermissionRecord
	err := s.observe("permission", func() (err error) {
		rec, err = scanPermission(s.client.QueryRow(ctx, selectPermission, addr[:]))
		return err
	})
	return rec, err
}

// Permissions implements vault.Store.
func (s *VaultStore) Permissions(ctx context.Context, vaultAddr common.Address) ([]*vault.PermissionRecord, error) {
	perms := []*vault.PermissionRecord{}
	err := s.observe("permissions", func() error {
		rows, err := s.client.Query(ctx, selectPermissions, vaultAddr[:])
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			perm, err := scanPermission(rows)
			if err != nil {
				return err
			}
			perms = append(perms, perm)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return perms, nil
}

// NativeBalance implements vault.Store.
func (s *VaultStore) NativeBalance(ctx context.Context, addr common.Address) (uint64, error) {
	var balance uint64
	err := s.observe("native_balance", func() (err error) {
		balance, err = scanNativeBalance(s.client.QueryRow(ctx, selectNativeBalance, addr[:]))
		return err
	})
	return balance, err
}

// Name implements vault.Store.
func (s *VaultStore) Name() string {
	return s.client.Name()
}

type vaultTx struct {
	store *VaultStore
	tx    storage.Tx
}

func (t *vaultTx) LockVault(ctx context.Context, addr common.Address) (*vault.VaultRecord, error) {
	var rec *vault.VaultRecord
	err := t.store.observe("lock_vault", func() (err error) {
		rec, err = scanVault(t.tx.QueryRow(ctx, lockVault, addr[:]))
		return err
	})
	return rec, err
}

func (t *vaultTx) InsertVault(ctx context.Context, rec *vault.VaultRecord) error {
	data, err := rec.MarshalBinary()
	if err != nil {
		return err
	}
	addr := rec.Address()
	return t.store.observe("insert_vault", func() error {
		_, err := t.tx.Exec(ctx, insertVault,
			addr[:],
			strconv.FormatUint(rec.VaultID, 10),
			rec.Owner.String(),
			strconv.FormatUint(rec.Balance, 10),
			rec.IsDelegated,
			validatorColumn(rec),
			rec.IsPrivate,
			strconv.FormatUint(rec.Nonce, 10),
			rec.CreatedAt,
			rec.LastActivity,
			data,
		)
		return translateError(err)
	})
}

func (t *vaultTx) UpdateVault(ctx context.Context, rec *vault.VaultRecord) error {
	data, err := rec.MarshalBinary()
	if err != nil {
		return err
	}
	addr := rec.Address()
	return t.store.observe("update_vault", func() error {
		tag, err := t.tx.Exec(ctx, updateVault,
			addr[:],
			strconv.FormatUint(rec.Balance, 10),
			rec.IsDelegated,
			validatorColumn(rec),
			rec.IsPrivate,
			strconv.FormatUint(rec.Nonce, 10),
			rec.LastActivity,
			data,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() != 1 {
			return vault.ErrVaultNotFound
		}
		return nil
	})
}

func (t *vaultTx) InsertPermission(ctx context.Context, rec *vault.PermissionRecord) error {
	data, err := rec.MarshalBinary()
	if err != nil {
		return err
	}
	addr := rec.Address()
	return t.store.observe("insert_permission", func() error {
		_, err := t.tx.Exec(ctx, insertPermission,
			addr[:],
			rec.Vault[:],
			rec.Permitted.String(),
			rec.GrantedBy.String(),
			rec.GrantedAt,
			data,
		)
		return translateError(err)
	})
}

// lockNative creates the account row if needed and locks it for the rest of
// the transaction. Without a row there is nothing for FOR UPDATE to hold, and
// concurrent writers would each read zero.
func (t *vaultTx) lockNative(ctx context.Context, addr common.Address) (uint64, error) {
	if _, err := t.tx.Exec(ctx, ensureNativeAccount, addr[:]); err != nil {
		return 0, err
	}
	return scanNativeBalance(t.tx.QueryRow(ctx, lockNativeBalance, addr[:]))
}

func (t *vaultTx) setNative(ctx context.Context, addr common.Address, balance uint64) error {
	_, err := t.tx.Exec(ctx, updateNativeBalance, addr[:], strconv.FormatUint(balance, 10))
	return err
}

func (t *vaultTx) TransferNative(ctx context.Context, from, to common.Address, amount uint64) error {
	return t.store.observe("transfer_native", func() error {
		if from.Equal(to) {
			balance, err := t.lockNative(ctx, from)
			if err != nil {
				return err
			}
			if balance < amount {
				return vault.ErrInsufficientFunds
			}
			return nil
		}

		// Rows are locked in address order so opposing transfers cannot deadlock.
		first, second := from, to
		if bytes.Compare(to[:], from[:]) < 0 {
			first, second = to, from
		}
		balances := make(map[common.Address]uint64, 2)
		for _, addr := range []common.Address{first, second} {
			balance, err := t.lockNative(ctx, addr)
			if err != nil {
				return err
			}
			balances[addr] = balance
		}

		fromBalance := balances[from]
		if fromBalance < amount {
			return vault.ErrInsufficientFunds
		}
		toBalance, err := common.CheckedAdd(balances[to], amount)
		if err != nil {
			return err
		}
		if err = t.setNative(ctx, from, fromBalance-amount); err != nil {
			return err
		}
		return t.setNative(ctx, to, toBalance)
	})
}

func (t *vaultTx) MintNative(ctx context.Context, to common.Address, amount uint64) error {
	return t.store.observe("mint_native", func() error {
		balance, err := t.lockNative(ctx, to)
		if err != nil {
			return err
		}
		if balance, err = common.CheckedAdd(balance, amount); err != nil {
			return err
		}
		return t.setNative(ctx, to, balance)
	})
}

func (t *vaultTx) Commit(ctx context.Context) error {
	return t.store.observe("commit", func() error {
		return t.tx.Commit(ctx)
	})
}

func (t *vaultTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

// validatorColumn is NULL for vaults that are not delegated.
func validatorColumn(rec *vault.VaultRecord) *string {
	if !rec.IsDelegated {
		return nil
	}
	v := rec.DelegateValidator.String()
	return &v
}

func scanVault(row storage.QueryResult) (*vault.VaultRecord, error) {
	var data []byte
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, vault.ErrVaultNotFound
		}
		return nil, err
	}
	var rec vault.VaultRecord
	if err := rec.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("decoding vault record: %w", err)
	}
	return &rec, nil
}

func scanPermission(row storage.QueryResult) (*vault.PermissionRecord, error) {
	var data []byte
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, vault.ErrPermissionNotFound
		}
		return nil, err
	}
	var rec vault.PermissionRecord
	if err := rec.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("decoding permission record: %w", err)
	}
	return &rec, nil
}

// scanNativeBalance reads a balance; accounts without a row hold zero.
func scanNativeBalance(row storage.QueryResult) (uint64, error) {
	var text string
	if err := row.Scan(&text); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	balance, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed native balance '%s': %w", text, err)
	}
	return balance, nil
}

// translateError maps constraint violations to vault errors.
func translateError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return fmt.Errorf("%w: %s", vault.ErrAccountInUse, pgErr.ConstraintName)
	}
	return err
}

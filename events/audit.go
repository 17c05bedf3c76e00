package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/obscura-labs/obscura/common"
	"github.com/obscura-labs/obscura/storage"
	"github.com/obscura-labs/obscura/vault"
)

const insertEvent = `
	INSERT INTO events (id, kind, vault, vault_id, actor, counterparty, amount, balance, nonce, private, ts, body)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

// AuditSink appends events to the `events` table. Unlike the log, the audit
// trail keeps the recipients of private transfers.
type AuditSink struct {
	target storage.TargetStorage
}

func NewAuditSink(target storage.TargetStorage) *AuditSink {
	return &AuditSink{target: target}
}

func (s *AuditSink) Emit(ctx context.Context, ev *vault.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	var vaultAddr []byte
	var vaultID *string
	if ev.ConcernsVault() {
		vaultAddr = ev.Vault[:]
		id := strconv.FormatUint(ev.VaultID, 10)
		vaultID = &id
	}
	var counterparty *string
	if !ev.Counterparty.IsZero() {
		c := ev.Counterparty.String()
		counterparty = &c
	}

	batch := &storage.QueryBatch{}
	batch.Queue(insertEvent,
		uuid.New(),
		string(ev.Kind),
		vaultAddr,
		vaultID,
		ev.Actor.String(),
		counterparty,
		common.Amount(ev.Amount).String(),
		common.Amount(ev.Balance).String(),
		common.Amount(ev.Nonce).String(),
		ev.Private,
		ev.Timestamp,
		body,
	)
	if err = s.target.SendBatch(ctx, batch); err != nil {
		return fmt.Errorf("recording %s event: %w", ev.Kind, err)
	}
	return nil
}

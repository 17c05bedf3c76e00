// Package remote connects the vault controller to a fast-execution layer
// over HTTP, and serves any vault.DelegationService over the same protocol.
package remote

import (
	"github.com/obscura-labs/obscura/common"
	"github.com/obscura-labs/obscura/vault"
)

const (
	delegatePath            = "/delegate"
	commitPath              = "/commit"
	commitAndUndelegatePath = "/commit_and_undelegate"
)

// RequestIDHeader carries the id of the API request that caused a call.
const RequestIDHeader = "X-Request-Id"

type snapshotBody struct {
	Address common.Address `json:"address"`
	Data    []byte         `json:"data"`
}

type delegateBody struct {
	Owner     common.PublicKey `json:"owner"`
	Seeds     [][]byte         `json:"seeds"`
	Validator common.PublicKey `json:"validator"`
	Account   snapshotBody     `json:"account"`
}

type errorBody struct {
	Msg string `json:"msg"`
}

func toSnapshotBody(s vault.Snapshot) snapshotBody {
	return snapshotBody{Address: s.Address, Data: s.Data}
}

func (b snapshotBody) snapshot() vault.Snapshot {
	return vault.Snapshot{Address: b.Address, Data: b.Data}
}

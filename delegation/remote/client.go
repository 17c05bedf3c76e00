package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/obscura-labs/obscura/common"
	"github.com/obscura-labs/obscura/log"
	"github.com/obscura-labs/obscura/vault"
)

const moduleName = "delegation_remote"

// Client is a vault.DelegationService talking to a remote layer.
type Client struct {
	endpoint string
	client   *http.Client
	logger   *log.Logger
}

var _ vault.DelegationService = (*Client)(nil)

// NewClient creates a client for the layer served at `endpoint`, e.g.
// "http://localhost:8090/delegation".
func NewClient(endpoint string, timeout time.Duration, logger *log.Logger) *Client {
	return &Client{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.WithModule(moduleName),
	}
}

// Delegate implements vault.DelegationService.
func (c *Client) Delegate(ctx context.Context, req *vault.DelegateRequest) error {
	return c.post(ctx, delegatePath, &delegateBody{
		Owner:     req.Owner,
		Seeds:     req.Seeds,
		Validator: req.Validator,
		Account:   toSnapshotBody(req.Account),
	})
}

// Commit implements vault.DelegationService.
func (c *Client) Commit(ctx context.Context, snapshot vault.Snapshot) error {
	body := toSnapshotBody(snapshot)
	return c.post(ctx, commitPath, &body)
}

// CommitAndUndelegate implements vault.DelegationService.
func (c *Client) CommitAndUndelegate(ctx context.Context, snapshot vault.Snapshot) error {
	body := toSnapshotBody(snapshot)
	return c.post(ctx, commitAndUndelegatePath, &body)
}

func (c *Client) post(ctx context.Context, path string, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("content-type", "application/json")
	if requestID, ok := ctx.Value(common.RequestIDContextKey).(uuid.UUID); ok {
		req.Header.Set(RequestIDHeader, requestID.String())
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("delegation call failed", "path", path, "err", err)
		return fmt.Errorf("%s: %w", path, err)
	}
	defer common.CloseOrLog(resp.Body, c.logger)

	if resp.StatusCode/100 == 2 {
		return nil
	}
	var errResp errorBody
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err = json.Unmarshal(raw, &errResp); err != nil || errResp.Msg == "" {
		errResp.Msg = strings.TrimSpace(string(raw))
	}
	c.logger.Warn("delegation call rejected", "path", path, "status", resp.StatusCode, "msg", errResp.Msg)
	return &RemoteError{Path: path, StatusCode: resp.StatusCode, Msg: errResp.Msg}
}

// RemoteError is a call the remote layer answered with a failure status.
type RemoteError struct {
	Path       string
	StatusCode int
	Msg        string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: remote layer returned %d: %s", e.Path, e.StatusCode, e.Msg)
}

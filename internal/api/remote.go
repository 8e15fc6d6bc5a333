package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"squad-tracker/internal/config"
	"squad-tracker/internal/constants"
	"squad-tracker/internal/domain"

	"github.com/valyala/fasthttp"
)

// RemoteClient talks to the shared battle-stats store. The store is an opaque
// key-value endpoint addressed by access key; it gives no transactional
// guarantees, which is why the caller merges rather than assumes ordering.
type RemoteClient struct {
	baseURL   string
	accessKey string
	client    *fasthttp.Client
}

func NewRemoteClient(cfg *config.Config) *RemoteClient {
	return &RemoteClient{
		baseURL:   cfg.RemoteBaseURL,
		accessKey: cfg.AccessKey,
		client: &fasthttp.Client{
			MaxConnsPerHost:     8,
			ReadTimeout:         constants.RemoteTimeout,
			WriteTimeout:        constants.RemoteTimeout,
			MaxIdleConnDuration: 1 * time.Minute,
		},
	}
}

// SnapshotResponse is the full-snapshot payload keyed by access key.
type SnapshotResponse struct {
	Success     bool               `json:"success"`
	Message     string             `json:"message"`
	BattleStats domain.BattleStats `json:"BattleStats"`
	PlayerInfo  domain.PlayersInfo `json:"PlayerInfo"`
}

// PeerDeltaResponse carries only the battles contributed by other squad
// members.
type PeerDeltaResponse struct {
	BattleStats domain.BattleStats `json:"BattleStats"`
}

type statusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type snapshotBody struct {
	BattleStats domain.BattleStats `json:"BattleStats"`
	PlayerInfo  domain.PlayersInfo `json:"PlayerInfo"`
}

type importBody struct {
	BattleStats domain.BattleStats `json:"BattleStats"`
}

// LoadSnapshot fetches the full authoritative snapshot.
func (c *RemoteClient) LoadSnapshot(ctx context.Context) (*SnapshotResponse, error) {
	return doRequest[SnapshotResponse](ctx, c, request{
		method: fasthttp.MethodGet,
		url:    c.baseURL + c.accessKey,
	})
}

// SaveSnapshot pushes the local aggregate root under the given player id.
func (c *RemoteClient) SaveSnapshot(ctx context.Context, playerID domain.PlayerID, snap domain.Snapshot) error {
	body, err := json.Marshal(snapshotBody{
		BattleStats: snap.BattleStats,
		PlayerInfo:  snap.PlayersInfo,
	})
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	_, err = doRequest[statusResponse](ctx, c, request{
		method:   fasthttp.MethodPost,
		url:      c.baseURL + c.accessKey,
		playerID: playerID,
		body:     body,
	})
	return err
}

// LoadPeerDelta fetches the battles other squad members have contributed.
func (c *RemoteClient) LoadPeerDelta(ctx context.Context, playerID domain.PlayerID) (*PeerDeltaResponse, error) {
	return doRequest[PeerDeltaResponse](ctx, c, request{
		method:   fasthttp.MethodGet,
		url:      c.baseURL + "pid/" + c.accessKey,
		playerID: playerID,
	})
}

// Clear wipes the remote state for this access key.
func (c *RemoteClient) Clear(ctx context.Context) error {
	resp, err := doRequest[statusResponse](ctx, c, request{
		method: fasthttp.MethodGet,
		url:    c.baseURL + "clear/" + c.accessKey,
	})
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("remote clear rejected: %s", resp.Message)
	}
	return nil
}

// Import uploads externally provided battle records for server-side merging.
func (c *RemoteClient) Import(ctx context.Context, battles domain.BattleStats) error {
	body, err := json.Marshal(importBody{BattleStats: battles})
	if err != nil {
		return fmt.Errorf("encode import: %w", err)
	}
	resp, err := doRequest[statusResponse](ctx, c, request{
		method: fasthttp.MethodPost,
		url:    c.baseURL + "import/" + c.accessKey,
		body:   body,
	})
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("remote import rejected: %s", resp.Message)
	}
	return nil
}

// DeleteBattle removes a single battle record from the remote store.
func (c *RemoteClient) DeleteBattle(ctx context.Context, arenaID string) error {
	_, err := doRequest[statusResponse](ctx, c, request{
		method: fasthttp.MethodDelete,
		url:    c.baseURL + c.accessKey + "/" + arenaID,
	})
	return err
}

type request struct {
	method   string
	url      string
	playerID domain.PlayerID
	body     []byte
}

func doRequest[T any](ctx context.Context, client *RemoteClient, r request) (*T, error) {
	if client.accessKey == "" {
		return nil, ErrNoAccessKey
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(r.url)
	req.Header.SetMethod(r.method)
	req.Header.SetContentType("application/json")
	if r.playerID != 0 {
		req.Header.Set("X-Player-ID", strconv.FormatInt(int64(r.playerID), 10))
	}
	if r.body != nil {
		req.SetBody(r.body)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(constants.RemoteTimeout)
	}
	if err := client.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("remote request: %w", err)
	}

	status := resp.StatusCode()
	switch {
	case status == fasthttp.StatusOK || status == fasthttp.StatusAccepted:
	case status >= 400 && status < 500:
		return nil, &ClientError{Status: status}
	default:
		return nil, &ServerError{Status: status}
	}

	var result T
	if len(resp.Body()) > 0 {
		if err := json.Unmarshal(resp.Body(), &result); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
	}
	return &result, nil
}

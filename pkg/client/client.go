package client

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/depinlabs/sensorledger/internal/identity"
	"github.com/depinlabs/sensorledger/internal/sensorproof"
)

// ErrNoKey is returned by mutating calls on a client built without a key.
var ErrNoKey = errors.New("client has no signing key; use WithKey or WithKeyFile")

// Sensor mirrors the registration record returned by the ledger.
type Sensor struct {
	ID                  string    `json:"id"`
	Authority           string    `json:"authority"`
	DeviceID            string    `json:"device_id"`
	ProofCount          uint64    `json:"proof_count"`
	TotalProofsVerified uint64    `json:"total_proofs_verified"`
	LastProofTimestamp  int64     `json:"last_proof_timestamp"`
	IsActive            bool      `json:"is_active"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// SensorStats is the counter snapshot from GET /sensors/:id/stats.
type SensorStats struct {
	TotalProofs        uint64 `json:"total_proofs"`
	LastProofTimestamp int64  `json:"last_proof_timestamp"`
	IsActive           bool   `json:"is_active"`
}

// Proof mirrors a verified proof record.
type Proof struct {
	ID         string `json:"id"`
	SensorID   string `json:"sensor_id"`
	SensorType string `json:"sensor_type"`
	Timestamp  int64  `json:"timestamp"`
	Data       []byte `json:"data"`
	Signature  []byte `json:"signature"`
	Verifier   string `json:"verifier"`
	VerifiedAt int64  `json:"verified_at"`
}

// Batch mirrors a batch commitment record.
type Batch struct {
	ID             string `json:"id"`
	SensorID       string `json:"sensor_id"`
	MerkleRoot     []byte `json:"merkle_root"`
	ProofCount     uint32 `json:"proof_count"`
	StartTimestamp int64  `json:"start_timestamp"`
	EndTimestamp   int64  `json:"end_timestamp"`
	SubmittedAt    int64  `json:"submitted_at"`
	Submitter      string `json:"submitter"`
}

// AuditStatus summarises the ledger's audit trail.
type AuditStatus struct {
	Entries int    `json:"entries"`
	Head    string `json:"head"`
}

// Client talks to a ledgerd instance.
type Client struct {
	baseURL    string
	httpClient *http.Client
	key        ed25519.PrivateKey

	// token state, guarded by mu
	mu          sync.Mutex
	bearerToken string
	tokenExpiry time.Time
}

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		c.httpClient = hc
		return nil
	}
}

// New creates a Client for the ledger at baseURL.
//
//	c, err := client.New("http://localhost:8080", client.WithKeyFile(keyPath))
func New(baseURL string, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustNew is like New but panics on error. Useful in tests and program init.
func MustNew(baseURL string, opts ...Option) *Client {
	c, err := New(baseURL, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// ensureToken returns a bearer token proving the client's key, minting a
// fresh one shortly before the cached token expires.
func (c *Client) ensureToken() (string, error) {
	if c.key == nil {
		return "", ErrNoKey
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	const refreshBuffer = 60 * time.Second
	if c.bearerToken != "" && time.Now().Before(c.tokenExpiry.Add(-refreshBuffer)) {
		return c.bearerToken, nil
	}

	token, err := identity.IssueToken(c.key, 0)
	if err != nil {
		return "", fmt.Errorf("mint identity token: %w", err)
	}
	c.bearerToken = token
	c.tokenExpiry = time.Now().Add(identity.DefaultTokenTTL)
	return token, nil
}

// do performs a JSON request. A non-nil out receives the decoded body.
func (c *Client) do(ctx context.Context, method, path string, authed bool, reqBody, out any) error {
	var body io.Reader
	if reqBody != nil {
		buf, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		token, err := c.ensureToken()
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %d: %s", method, path, resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// RegisterSensor registers deviceID under the client's key.
func (c *Client) RegisterSensor(ctx context.Context, deviceID string) (*Sensor, error) {
	var resp struct {
		Sensor *Sensor `json:"sensor"`
	}
	err := c.do(ctx, http.MethodPost, "/api/v1/sensors", true,
		map[string]string{"device_id": deviceID}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Sensor, nil
}

// GetSensor fetches a registration by its ledger ID.
func (c *Client) GetSensor(ctx context.Context, id string) (*Sensor, error) {
	var resp struct {
		Sensor *Sensor `json:"sensor"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/sensors/"+id, false, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Sensor, nil
}

// FindSensorByDevice looks a registration up by device identifier.
func (c *Client) FindSensorByDevice(ctx context.Context, deviceID string) (*Sensor, error) {
	var resp struct {
		Sensors []*Sensor `json:"sensors"`
	}
	path := "/api/v1/sensors?device_id=" + url.QueryEscape(deviceID)
	if err := c.do(ctx, http.MethodGet, path, false, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Sensors) == 0 {
		return nil, fmt.Errorf("device %q not registered", deviceID)
	}
	return resp.Sensors[0], nil
}

// ListSensors pages through registrations.
func (c *Client) ListSensors(ctx context.Context, limit, offset int) ([]*Sensor, error) {
	var resp struct {
		Sensors []*Sensor `json:"sensors"`
	}
	path := fmt.Sprintf("/api/v1/sensors?limit=%d&offset=%d", limit, offset)
	if err := c.do(ctx, http.MethodGet, path, false, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Sensors, nil
}

// Stats fetches the counter snapshot for a sensor.
func (c *Client) Stats(ctx context.Context, id string) (*SensorStats, error) {
	var stats SensorStats
	if err := c.do(ctx, http.MethodGet, "/api/v1/sensors/"+id+"/stats", false, nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Activate re-enables proof submission. Only the registration authority may
// call it.
func (c *Client) Activate(ctx context.Context, id string) (*Sensor, error) {
	return c.setActive(ctx, id, "activate")
}

// Deactivate suspends proof submission.
func (c *Client) Deactivate(ctx context.Context, id string) (*Sensor, error) {
	return c.setActive(ctx, id, "deactivate")
}

func (c *Client) setActive(ctx context.Context, id, verb string) (*Sensor, error) {
	var resp struct {
		Sensor *Sensor `json:"sensor"`
	}
	err := c.do(ctx, http.MethodPost, "/api/v1/sensors/"+id+"/"+verb, true, nil, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Sensor, nil
}

// SubmitProof signs the canonical proof message for sensor's device with the
// client's key and submits it. The returned Sensor carries the updated
// counters.
func (c *Client) SubmitProof(ctx context.Context, sensor *Sensor, sensorType string, timestamp int64, data []byte) (*Proof, *Sensor, error) {
	if c.key == nil {
		return nil, nil, ErrNoKey
	}

	msg := sensorproof.EncodeMessage(sensorType, timestamp, data, sensor.DeviceID)
	body := map[string]any{
		"sensor_type": sensorType,
		"timestamp":   timestamp,
		"data":        data,
		"signature":   ed25519.Sign(c.key, msg),
	}

	var resp struct {
		Proof  *Proof  `json:"proof"`
		Sensor *Sensor `json:"sensor"`
	}
	err := c.do(ctx, http.MethodPost, "/api/v1/sensors/"+sensor.ID+"/proofs", true, body, &resp)
	if err != nil {
		return nil, nil, err
	}
	return resp.Proof, resp.Sensor, nil
}

// SubmitBatch commits a Merkle root (64 hex chars) covering proofCount
// readings taken between start and end.
func (c *Client) SubmitBatch(ctx context.Context, sensorID, merkleRootHex string, proofCount uint32, start, end int64) (*Batch, *Sensor, error) {
	body := map[string]any{
		"merkle_root":     merkleRootHex,
		"proof_count":     proofCount,
		"start_timestamp": start,
		"end_timestamp":   end,
	}

	var resp struct {
		Batch  *Batch  `json:"batch"`
		Sensor *Sensor `json:"sensor"`
	}
	err := c.do(ctx, http.MethodPost, "/api/v1/sensors/"+sensorID+"/batches", true, body, &resp)
	if err != nil {
		return nil, nil, err
	}
	return resp.Batch, resp.Sensor, nil
}

// VerifyInclusion checks one proof hash against a batch commitment. It is a
// public read; false with a nil error means the ledger evaluated the proof
// and rejected it.
func (c *Client) VerifyInclusion(ctx context.Context, batchID, proofHashHex string, pathHex []string, index uint32) (bool, error) {
	body := map[string]any{
		"proof_hash":  proofHashHex,
		"merkle_path": pathHex,
		"index":       index,
	}

	var resp struct {
		Valid bool `json:"valid"`
	}
	err := c.do(ctx, http.MethodPost, "/api/v1/batches/"+batchID+"/verify", false, body, &resp)
	if err != nil {
		return false, err
	}
	return resp.Valid, nil
}

// GetBatch fetches a batch commitment by ID.
func (c *Client) GetBatch(ctx context.Context, id string) (*Batch, error) {
	var resp struct {
		Batch *Batch `json:"batch"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/batches/"+id, false, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Batch, nil
}

// ListProofs pages through a sensor's verified proofs.
func (c *Client) ListProofs(ctx context.Context, sensorID string, limit, offset int) ([]*Proof, error) {
	var resp struct {
		Proofs []*Proof `json:"proofs"`
	}
	path := "/api/v1/sensors/" + sensorID + "/proofs?limit=" + strconv.Itoa(limit) + "&offset=" + strconv.Itoa(offset)
	if err := c.do(ctx, http.MethodGet, path, false, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Proofs, nil
}

// ListBatches pages through a sensor's batch commitments.
func (c *Client) ListBatches(ctx context.Context, sensorID string, limit, offset int) ([]*Batch, error) {
	var resp struct {
		Batches []*Batch `json:"batches"`
	}
	path := "/api/v1/sensors/" + sensorID + "/batches?limit=" + strconv.Itoa(limit) + "&offset=" + strconv.Itoa(offset)
	if err := c.do(ctx, http.MethodGet, path, false, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Batches, nil
}

// Audit fetches the audit trail summary.
func (c *Client) Audit(ctx context.Context) (*AuditStatus, error) {
	var status AuditStatus
	if err := c.do(ctx, http.MethodGet, "/api/v1/audit", false, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

package handler_test

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/depinlabs/sensorledger/internal/audit"
	"github.com/depinlabs/sensorledger/internal/clock"
	"github.com/depinlabs/sensorledger/internal/identity"
	"github.com/depinlabs/sensorledger/internal/ledger/handler"
	"github.com/depinlabs/sensorledger/internal/ledger/service"
	"github.com/depinlabs/sensorledger/internal/ledger/store"
	"github.com/depinlabs/sensorledger/internal/sensorproof"
)

const testNow = int64(1_700_000_000)

// testAPI is a full router over the memory store with one device key pair.
type testAPI struct {
	router *gin.Engine
	priv   ed25519.PrivateKey
	token  string
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	token, err := identity.IssueToken(priv, 0)
	if err != nil {
		t.Fatal(err)
	}

	logger := zap.NewNop()
	trail := audit.New()
	svc := service.New(store.NewMemory(), clock.At(testNow), trail, logger)

	router := gin.New()
	api := router.Group("/api/v1")
	handler.NewSensorHandler(svc, logger).Register(api)
	handler.NewProofHandler(svc, logger).Register(api)
	handler.NewBatchHandler(svc, logger).Register(api)
	handler.NewAuditHandler(trail, logger).Register(api)

	return &testAPI{router: router, priv: priv, token: token}
}

// do sends a JSON request, authenticated with tok when non-empty.
func (a *testAPI) do(t *testing.T, method, path, tok string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

// register creates a sensor and returns its UUID string.
func (a *testAPI) register(t *testing.T, deviceID string) string {
	t.Helper()
	w := a.do(t, http.MethodPost, "/api/v1/sensors", a.token, gin.H{"device_id": deviceID})
	if w.Code != http.StatusCreated {
		t.Fatalf("register: status %d body %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	sensor := body["sensor"].(map[string]any)
	return sensor["id"].(string)
}

// proofBody builds a correctly signed submission for the given device.
func (a *testAPI) proofBody(sensorType string, ts int64, data []byte, deviceID string) gin.H {
	msg := sensorproof.EncodeMessage(sensorType, ts, data, deviceID)
	return gin.H{
		"sensor_type": sensorType,
		"timestamp":   ts,
		"data":        data,
		"signature":   ed25519.Sign(a.priv, msg),
	}
}

func TestCreateSensor(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodPost, "/api/v1/sensors", api.token, gin.H{"device_id": "dev-1"})
	if w.Code != http.StatusCreated {
		t.Fatalf("status %d body %s", w.Code, w.Body.String())
	}
	sensor := decodeBody(t, w)["sensor"].(map[string]any)
	if sensor["device_id"] != "dev-1" {
		t.Errorf("device_id: got %v", sensor["device_id"])
	}
	if sensor["is_active"] != true {
		t.Error("new sensor should be active")
	}

	// Same device again is a conflict.
	w = api.do(t, http.MethodPost, "/api/v1/sensors", api.token, gin.H{"device_id": "dev-1"})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate device: status %d, want 409", w.Code)
	}
}

func TestCreateSensor_requiresToken(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodPost, "/api/v1/sensors", "", gin.H{"device_id": "dev-1"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("missing token: status %d, want 401", w.Code)
	}

	w = api.do(t, http.MethodPost, "/api/v1/sensors", "not-a-jwt", gin.H{"device_id": "dev-1"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("garbage token: status %d, want 401", w.Code)
	}
}

func TestGetSensor_notFound(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodGet, "/api/v1/sensors/2c7f0000-0000-4000-8000-000000000000", "", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown sensor: status %d, want 404", w.Code)
	}

	w = api.do(t, http.MethodGet, "/api/v1/sensors/not-a-uuid", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("malformed id: status %d, want 400", w.Code)
	}
}

func TestListSensors_byDevice(t *testing.T) {
	api := newTestAPI(t)
	id := api.register(t, "dev-1")

	w := api.do(t, http.MethodGet, "/api/v1/sensors?device_id=dev-1", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d body %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	sensors := body["sensors"].([]any)
	if len(sensors) != 1 || sensors[0].(map[string]any)["id"] != id {
		t.Errorf("lookup by device: got %v", body)
	}

	w = api.do(t, http.MethodGet, "/api/v1/sensors?device_id=nope", "", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown device: status %d, want 404", w.Code)
	}
}

func TestSubmitProof(t *testing.T) {
	api := newTestAPI(t)
	id := api.register(t, "dev-1")

	w := api.do(t, http.MethodPost, "/api/v1/sensors/"+id+"/proofs", api.token,
		api.proofBody("temperature", testNow, []byte("22.5"), "dev-1"))
	if w.Code != http.StatusCreated {
		t.Fatalf("status %d body %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	sensor := body["sensor"].(map[string]any)
	if sensor["proof_count"].(float64) != 1 {
		t.Errorf("proof_count: got %v, want 1", sensor["proof_count"])
	}
	proof := body["proof"].(map[string]any)
	if proof["verified_at"].(float64) != float64(testNow) {
		t.Errorf("verified_at: got %v", proof["verified_at"])
	}
}

func TestSubmitProof_preconditionsAre422(t *testing.T) {
	api := newTestAPI(t)
	id := api.register(t, "dev-1")

	// Timestamp ahead of the server clock.
	w := api.do(t, http.MethodPost, "/api/v1/sensors/"+id+"/proofs", api.token,
		api.proofBody("temperature", testNow+1, []byte("22.5"), "dev-1"))
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("future timestamp: status %d, want 422", w.Code)
	}

	// Signature over a different message.
	body := api.proofBody("temperature", testNow, []byte("22.5"), "dev-1")
	body["data"] = []byte("23.0")
	w = api.do(t, http.MethodPost, "/api/v1/sensors/"+id+"/proofs", api.token, body)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad signature: status %d, want 422", w.Code)
	}

	// Deactivated registration.
	if w := api.do(t, http.MethodPost, "/api/v1/sensors/"+id+"/deactivate", api.token, nil); w.Code != http.StatusOK {
		t.Fatalf("deactivate: status %d", w.Code)
	}
	w = api.do(t, http.MethodPost, "/api/v1/sensors/"+id+"/proofs", api.token,
		api.proofBody("temperature", testNow, []byte("22.5"), "dev-1"))
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("inactive sensor: status %d, want 422", w.Code)
	}
}

func TestActivation_authority(t *testing.T) {
	api := newTestAPI(t)
	id := api.register(t, "dev-1")

	// A different key's token is rejected even though it is valid.
	_, otherPriv, _ := ed25519.GenerateKey(rand.Reader)
	otherToken, err := identity.IssueToken(otherPriv, 0)
	if err != nil {
		t.Fatal(err)
	}
	w := api.do(t, http.MethodPost, "/api/v1/sensors/"+id+"/deactivate", otherToken, nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("foreign authority: status %d, want 403", w.Code)
	}

	w = api.do(t, http.MethodGet, "/api/v1/sensors/"+id+"/stats", "", nil)
	if w.Code != http.StatusOK {
		t.Fatal(w.Code)
	}
	if decodeBody(t, w)["is_active"] != true {
		t.Error("failed deactivation must not flip is_active")
	}

	// The authority itself may toggle, idempotently.
	for i := 0; i < 2; i++ {
		w = api.do(t, http.MethodPost, "/api/v1/sensors/"+id+"/deactivate", api.token, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("deactivate attempt %d: status %d", i+1, w.Code)
		}
	}
	w = api.do(t, http.MethodPost, "/api/v1/sensors/"+id+"/activate", api.token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("activate: status %d", w.Code)
	}
}

func TestBatchLifecycle(t *testing.T) {
	api := newTestAPI(t)
	id := api.register(t, "dev-1")

	leaf := sensorproof.HashLeaf([]byte("reading-0"))
	sibling := sensorproof.HashLeaf([]byte("reading-1"))
	root := sensorproof.ComputeRoot(leaf, []sensorproof.Hash{sibling}, 0)

	w := api.do(t, http.MethodPost, "/api/v1/sensors/"+id+"/batches", api.token, gin.H{
		"merkle_root":     hex.EncodeToString(root[:]),
		"proof_count":     2,
		"start_timestamp": testNow - 60,
		"end_timestamp":   testNow,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("submit batch: status %d body %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	batchID := body["batch"].(map[string]any)["id"].(string)
	sensor := body["sensor"].(map[string]any)
	if sensor["proof_count"].(float64) != 2 {
		t.Errorf("proof_count after batch: got %v, want 2", sensor["proof_count"])
	}

	verifyURL := "/api/v1/batches/" + batchID + "/verify"

	// Matching inclusion proof, no token needed.
	w = api.do(t, http.MethodPost, verifyURL, "", gin.H{
		"proof_hash":  hex.EncodeToString(leaf[:]),
		"merkle_path": []string{hex.EncodeToString(sibling[:])},
		"index":       0,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("verify: status %d body %s", w.Code, w.Body.String())
	}
	if decodeBody(t, w)["valid"] != true {
		t.Errorf("matching proof: got %s", w.Body.String())
	}

	// Wrong index still answers 200, with valid=false.
	w = api.do(t, http.MethodPost, verifyURL, "", gin.H{
		"proof_hash":  hex.EncodeToString(leaf[:]),
		"merkle_path": []string{hex.EncodeToString(sibling[:])},
		"index":       1,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("verify mismatch: status %d", w.Code)
	}
	if decodeBody(t, w)["valid"] != false {
		t.Errorf("mismatched proof: got %s", w.Body.String())
	}
}

func TestBatch_rejections(t *testing.T) {
	api := newTestAPI(t)
	id := api.register(t, "dev-1")
	root := sensorproof.HashLeaf([]byte("root"))

	cases := []struct {
		name string
		body gin.H
		want int
	}{
		{"zero proof count", gin.H{
			"merkle_root": hex.EncodeToString(root[:]), "proof_count": 0,
			"start_timestamp": testNow - 60, "end_timestamp": testNow,
		}, http.StatusUnprocessableEntity},
		{"inverted range", gin.H{
			"merkle_root": hex.EncodeToString(root[:]), "proof_count": 2,
			"start_timestamp": testNow, "end_timestamp": testNow - 1,
		}, http.StatusUnprocessableEntity},
		{"short root", gin.H{
			"merkle_root": "abcd", "proof_count": 2,
			"start_timestamp": testNow - 60, "end_timestamp": testNow,
		}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := api.do(t, http.MethodPost, fmt.Sprintf("/api/v1/sensors/%s/batches", id), api.token, tc.body)
			if w.Code != tc.want {
				t.Errorf("status %d, want %d (body %s)", w.Code, tc.want, w.Body.String())
			}
		})
	}
}

func TestListProofsAndBatches_emptyIsArray(t *testing.T) {
	api := newTestAPI(t)
	id := api.register(t, "dev-1")

	for _, path := range []string{"/proofs", "/batches"} {
		w := api.do(t, http.MethodGet, "/api/v1/sensors/"+id+path, "", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: status %d", path, w.Code)
		}
		body := decodeBody(t, w)
		if body["count"].(float64) != 0 {
			t.Errorf("%s: count %v, want 0", path, body["count"])
		}
	}
}

func TestAuditEndpoints(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodGet, "/api/v1/audit", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("audit overview: status %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["entries"].(float64) < 1 {
		t.Errorf("audit trail should hold at least the genesis entry: %v", body)
	}

	w = api.do(t, http.MethodGet, "/api/v1/audit/verify", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("audit verify: status %d", w.Code)
	}
	if decodeBody(t, w)["valid"] != true {
		t.Errorf("fresh trail must verify: %s", w.Body.String())
	}
}

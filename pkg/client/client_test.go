package client_test

import (
	"context"
	"encoding/hex"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/depinlabs/sensorledger/internal/audit"
	"github.com/depinlabs/sensorledger/internal/clock"
	"github.com/depinlabs/sensorledger/internal/ledger/handler"
	"github.com/depinlabs/sensorledger/internal/ledger/service"
	"github.com/depinlabs/sensorledger/internal/ledger/store"
	"github.com/depinlabs/sensorledger/internal/sensorproof"
	"github.com/depinlabs/sensorledger/pkg/client"
)

const testNow = int64(1_700_000_000)

// startLedger runs a full in-memory ledger over httptest.
func startLedger(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zap.NewNop()
	trail := audit.New()
	svc := service.New(store.NewMemory(), clock.At(testNow), trail, logger)

	router := gin.New()
	api := router.Group("/api/v1")
	handler.NewSensorHandler(svc, logger).Register(api)
	handler.NewProofHandler(svc, logger).Register(api)
	handler.NewBatchHandler(svc, logger).Register(api)
	handler.NewAuditHandler(trail, logger).Register(api)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func TestDeviceLifecycle(t *testing.T) {
	srv := startLedger(t)
	ctx := context.Background()

	key, err := client.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	c, err := client.New(srv.URL, client.WithKey(key))
	if err != nil {
		t.Fatal(err)
	}

	sensor, err := c.RegisterSensor(ctx, "greenhouse-7")
	if err != nil {
		t.Fatalf("RegisterSensor: %v", err)
	}
	if sensor.Authority != c.Identity() {
		t.Errorf("authority %q, want client identity %q", sensor.Authority, c.Identity())
	}

	proof, updated, err := c.SubmitProof(ctx, sensor, "temperature", testNow, []byte("22.5"))
	if err != nil {
		t.Fatalf("SubmitProof: %v", err)
	}
	if proof.VerifiedAt != testNow {
		t.Errorf("verified_at %d, want %d", proof.VerifiedAt, testNow)
	}
	if updated.ProofCount != 1 {
		t.Errorf("proof_count %d, want 1", updated.ProofCount)
	}

	stats, err := c.Stats(ctx, sensor.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalProofs != 1 || !stats.IsActive {
		t.Errorf("stats: %+v", stats)
	}

	if _, err := c.Deactivate(ctx, sensor.ID); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	if _, _, err := c.SubmitProof(ctx, sensor, "temperature", testNow, []byte("22.5")); err == nil {
		t.Error("submission to a deactivated sensor should fail")
	}
	if _, err := c.Activate(ctx, sensor.ID); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	found, err := c.FindSensorByDevice(ctx, "greenhouse-7")
	if err != nil {
		t.Fatal(err)
	}
	if found.ID != sensor.ID {
		t.Errorf("FindSensorByDevice: got %s, want %s", found.ID, sensor.ID)
	}
}

func TestBatchAndInclusion(t *testing.T) {
	srv := startLedger(t)
	ctx := context.Background()

	key, _ := client.GenerateKey()
	c := client.MustNew(srv.URL, client.WithKey(key))

	sensor, err := c.RegisterSensor(ctx, "turbine-3")
	if err != nil {
		t.Fatal(err)
	}

	leaf := sensorproof.HashLeaf([]byte("rpm:1420"))
	sibling := sensorproof.HashLeaf([]byte("rpm:1431"))
	root := sensorproof.ComputeRoot(leaf, []sensorproof.Hash{sibling}, 0)

	batch, updated, err := c.SubmitBatch(ctx, sensor.ID,
		hex.EncodeToString(root[:]), 2, testNow-60, testNow)
	if err != nil {
		t.Fatalf("SubmitBatch: %v", err)
	}
	if updated.ProofCount != 2 {
		t.Errorf("proof_count after batch: %d, want 2", updated.ProofCount)
	}

	valid, err := c.VerifyInclusion(ctx, batch.ID,
		hex.EncodeToString(leaf[:]), []string{hex.EncodeToString(sibling[:])}, 0)
	if err != nil {
		t.Fatalf("VerifyInclusion: %v", err)
	}
	if !valid {
		t.Error("matching inclusion proof reported invalid")
	}

	valid, err = c.VerifyInclusion(ctx, batch.ID,
		hex.EncodeToString(leaf[:]), []string{hex.EncodeToString(sibling[:])}, 1)
	if err != nil {
		t.Fatalf("VerifyInclusion mismatched: %v", err)
	}
	if valid {
		t.Error("mismatched inclusion proof reported valid")
	}
}

func TestReadOnlyClientCannotMutate(t *testing.T) {
	srv := startLedger(t)

	c := client.MustNew(srv.URL)
	if _, err := c.RegisterSensor(context.Background(), "dev-1"); err == nil {
		t.Error("keyless client must not register sensors")
	}
}

func TestKeyFileRoundTrip(t *testing.T) {
	key, err := client.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "device.key")
	if err := client.SaveKeyFile(path, key); err != nil {
		t.Fatal(err)
	}

	c, err := client.New("http://localhost:8080", client.WithKeyFile(path))
	if err != nil {
		t.Fatal(err)
	}
	want := client.MustNew("http://localhost:8080", client.WithKey(key))
	if c.Identity() != want.Identity() {
		t.Errorf("identity after reload: %q, want %q", c.Identity(), want.Identity())
	}
}

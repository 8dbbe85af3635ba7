// Package client is the sensorledger Go SDK.
//
// It covers the full device lifecycle against a ledgerd instance: key
// generation, sensor registration, signed proof submission, batch Merkle
// commitments, and inclusion verification.
//
// # Registering a device
//
// A device identity is an Ed25519 key pair. Generate one, keep the private
// key on the device, and register:
//
//	key, _ := client.GenerateKey()
//	c, _ := client.New("http://localhost:8080", client.WithKey(key))
//	sensor, err := c.RegisterSensor(ctx, "greenhouse-7")
//
// The caller's public key becomes the registration authority; only that key
// may activate or deactivate the sensor later.
//
// # Submitting readings
//
// SubmitProof signs the canonical proof message locally with the client's
// key and submits it for verification:
//
//	proof, sensor, err := c.SubmitProof(ctx, sensor, "temperature",
//	    time.Now().Unix(), []byte("22.5"))
//
// # Batch commitments and inclusion proofs
//
// High-frequency devices aggregate readings off-ledger into a Merkle tree
// and commit only the root:
//
//	batch, _, err := c.SubmitBatch(ctx, sensor.ID, rootHex, 1024, start, end)
//
// Anyone may later check one reading against the commitment, no key needed:
//
//	ok, err := c.VerifyInclusion(ctx, batch.ID, leafHex, pathHex, index)
//
// # Read-only use
//
// All read endpoints are public. A client without a key can query sensors,
// proofs, batches, and the audit trail, but any mutating call returns an
// error before reaching the network.
package client

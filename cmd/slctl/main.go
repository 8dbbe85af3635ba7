// slctl is the operator and device CLI for the sensor attestation ledger.
package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/depinlabs/sensorledger/pkg/client"
)

// version is overridden by goreleaser via -ldflags "-X main.version=...".
var version = "dev"

var (
	ledgerURL string
	keyPath   string
	cfgFile   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "slctl",
	Short: "Sensor ledger CLI",
	Long: `slctl is the command-line interface for the sensor attestation ledger.

It manages device keys and registrations, submits signed sensor proofs and
batch Merkle commitments, and verifies inclusion proofs against the ledger.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".sensorledger"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if ledgerURL == "" {
			ledgerURL = viper.GetString("ledger_url")
		}
		if ledgerURL == "" {
			ledgerURL = "http://localhost:8080"
		}
		if keyPath == "" {
			keyPath = viper.GetString("key_path")
		}
		if keyPath == "" {
			home, _ := os.UserHomeDir()
			keyPath = filepath.Join(home, ".sensorledger", "device.key")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.sensorledger/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&ledgerURL, "ledger", "", "ledger base URL (default http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&keyPath, "key", "", "device key file (default ~/.sensorledger/device.key)")

	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(activateCmd)
	rootCmd.AddCommand(deactivateCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(versionCmd)
}

// newClient builds an SDK client; withKey controls whether the key file is
// required.
func newClient(withKey bool) (*client.Client, error) {
	opts := []client.Option{}
	if withKey {
		opts = append(opts, client.WithKeyFile(keyPath))
	}
	return client.New(ledgerURL, opts...)
}

// ── keygen ───────────────────────────────────────────────────────────────────

var keygenForce bool

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a new Ed25519 device key",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(keyPath); err == nil && !keygenForce {
			return fmt.Errorf("key file %s already exists (use --force to overwrite)", keyPath)
		}

		priv, err := client.GenerateKey()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(keyPath), 0o700); err != nil {
			return err
		}
		if err := client.SaveKeyFile(keyPath, priv); err != nil {
			return err
		}

		c := client.MustNew(ledgerURL, client.WithKey(priv))
		fmt.Printf("key written to %s\n", keyPath)
		fmt.Printf("identity: %s\n", c.Identity())
		return nil
	},
}

func init() {
	keygenCmd.Flags().BoolVar(&keygenForce, "force", false, "Overwrite an existing key file")
}

// ── register ─────────────────────────────────────────────────────────────────

var registerCmd = &cobra.Command{
	Use:   "register <device-id>",
	Short: "Register a device under this key's authority",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(true)
		if err != nil {
			return err
		}
		sensor, err := c.RegisterSensor(context.Background(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("registered %s\n", sensor.DeviceID)
		fmt.Printf("  sensor id: %s\n", sensor.ID)
		fmt.Printf("  authority: %s\n", sensor.Authority)
		return nil
	},
}

// ── list ─────────────────────────────────────────────────────────────────────

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List sensor registrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(false)
		if err != nil {
			return err
		}
		sensors, err := c.ListSensors(context.Background(), 50, 0)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DEVICE\tSENSOR ID\tPROOFS\tLAST PROOF\tACTIVE")
		for _, s := range sensors {
			last := "-"
			if s.LastProofTimestamp > 0 {
				last = time.Unix(s.LastProofTimestamp, 0).UTC().Format(time.RFC3339)
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%t\n",
				s.DeviceID, s.ID, s.ProofCount, last, s.IsActive)
		}
		return w.Flush()
	},
}

// ── stats ────────────────────────────────────────────────────────────────────

var statsCmd = &cobra.Command{
	Use:   "stats <sensor-id>",
	Short: "Show a sensor's verification counters",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(false)
		if err != nil {
			return err
		}
		stats, err := c.Stats(context.Background(), args[0])
		if err != nil {
			return err
		}
		return json.NewEncoder(os.Stdout).Encode(stats)
	},
}

// ── activate / deactivate ────────────────────────────────────────────────────

var activateCmd = &cobra.Command{
	Use:   "activate <sensor-id>",
	Short: "Re-enable proof submission for a sensor",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setActive(args[0], true) },
}

var deactivateCmd = &cobra.Command{
	Use:   "deactivate <sensor-id>",
	Short: "Suspend proof submission for a sensor",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setActive(args[0], false) },
}

func setActive(sensorID string, active bool) error {
	c, err := newClient(true)
	if err != nil {
		return err
	}
	var sensor *client.Sensor
	if active {
		sensor, err = c.Activate(context.Background(), sensorID)
	} else {
		sensor, err = c.Deactivate(context.Background(), sensorID)
	}
	if err != nil {
		return err
	}
	fmt.Printf("%s is_active=%t\n", sensor.DeviceID, sensor.IsActive)
	return nil
}

// ── submit ───────────────────────────────────────────────────────────────────

var (
	submitType string
	submitAt   int64
)

var submitCmd = &cobra.Command{
	Use:   "submit <device-id> <data>",
	Short: "Sign and submit one sensor proof",
	Long: `Submit signs the canonical proof message with the local device key and
submits it for verification:

  slctl submit greenhouse-7 '22.5' --type temperature`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(true)
		if err != nil {
			return err
		}
		ctx := context.Background()

		sensor, err := c.FindSensorByDevice(ctx, args[0])
		if err != nil {
			return err
		}

		ts := submitAt
		if ts == 0 {
			ts = time.Now().Unix()
		}
		proof, updated, err := c.SubmitProof(ctx, sensor, submitType, ts, []byte(args[1]))
		if err != nil {
			return err
		}
		fmt.Printf("proof %s verified at %s\n",
			proof.ID, time.Unix(proof.VerifiedAt, 0).UTC().Format(time.RFC3339))
		fmt.Printf("  total proofs: %d\n", updated.ProofCount)
		return nil
	},
}

func init() {
	submitCmd.Flags().StringVar(&submitType, "type", "generic", "Sensor type (e.g. temperature)")
	submitCmd.Flags().Int64Var(&submitAt, "timestamp", 0, "Claimed unix timestamp (default now)")
}

// ── batch ────────────────────────────────────────────────────────────────────

var (
	batchCount uint32
	batchStart int64
	batchEnd   int64
)

var batchCmd = &cobra.Command{
	Use:   "batch <sensor-id> <merkle-root-hex>",
	Short: "Commit a Merkle root over an off-ledger proof set",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if raw, err := hex.DecodeString(args[1]); err != nil || len(raw) != 32 {
			return fmt.Errorf("merkle root must be 32 bytes of hex")
		}

		c, err := newClient(true)
		if err != nil {
			return err
		}
		batch, sensor, err := c.SubmitBatch(context.Background(),
			args[0], args[1], batchCount, batchStart, batchEnd)
		if err != nil {
			return err
		}
		fmt.Printf("batch %s committed (%d proofs)\n", batch.ID, batch.ProofCount)
		fmt.Printf("  total proofs: %d\n", sensor.ProofCount)
		return nil
	},
}

func init() {
	batchCmd.Flags().Uint32Var(&batchCount, "count", 0, "Number of proofs in the batch (required)")
	batchCmd.Flags().Int64Var(&batchStart, "start", 0, "Batch start unix timestamp (required)")
	batchCmd.Flags().Int64Var(&batchEnd, "end", 0, "Batch end unix timestamp (required)")
	_ = batchCmd.MarkFlagRequired("count")
	_ = batchCmd.MarkFlagRequired("start")
	_ = batchCmd.MarkFlagRequired("end")
}

// ── verify ───────────────────────────────────────────────────────────────────

var (
	verifyPath  []string
	verifyIndex uint32
)

var verifyCmd = &cobra.Command{
	Use:   "verify <batch-id> <proof-hash-hex>",
	Short: "Check an inclusion proof against a batch commitment",
	Long: `Verify recomputes the Merkle root from a proof hash, its sibling path,
and its leaf index, and reports whether it matches the committed root:

  slctl verify 2c7f... a1b2... --path c3d4...,e5f6... --index 3

Verification is public and needs no device key.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(false)
		if err != nil {
			return err
		}
		valid, err := c.VerifyInclusion(context.Background(),
			args[0], args[1], verifyPath, verifyIndex)
		if err != nil {
			return err
		}
		if !valid {
			fmt.Println("INVALID: proof does not match the committed root")
			os.Exit(1)
		}
		fmt.Println("valid")
		return nil
	},
}

func init() {
	verifyCmd.Flags().StringSliceVar(&verifyPath, "path", nil, "Comma-separated sibling hashes, leaf to root")
	verifyCmd.Flags().Uint32Var(&verifyIndex, "index", 0, "Leaf index in the batch tree")
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the slctl version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("slctl", version)
	},
}

package main

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/term"

	"github.com/hopcore/hopcore/internal/config"
)

func keygenCmd() *cobra.Command {
	var fromPassphrase bool

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a new node identity seed",
		Long: `Generates a 32-byte hex seed suitable for node.private_key in a
hopcore config file, and prints the public key it derives.

With --from-passphrase, the seed is derived deterministically from an
interactively entered passphrase (HKDF-SHA256) instead of randomly
generated, so the same passphrase always reproduces the same identity.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var seed []byte

			if fromPassphrase {
				fmt.Print("Enter passphrase: ")
				pass, err := term.ReadPassword(int(os.Stdin.Fd()))
				fmt.Println()
				if err != nil {
					return fmt.Errorf("failed to read passphrase: %w", err)
				}

				fmt.Print("Confirm passphrase: ")
				confirm, err := term.ReadPassword(int(os.Stdin.Fd()))
				fmt.Println()
				if err != nil {
					return fmt.Errorf("failed to read confirmation: %w", err)
				}
				if string(pass) != string(confirm) {
					return fmt.Errorf("passphrases do not match")
				}

				seed = make([]byte, 32)
				reader := hkdf.New(sha256.New, pass, nil, []byte("hopcore-keygen-v1"))
				if _, err := io.ReadFull(reader, seed); err != nil {
					return fmt.Errorf("derive seed: %w", err)
				}
			} else {
				seed = make([]byte, 32)
				if _, err := io.ReadFull(rand.Reader, seed); err != nil {
					return fmt.Errorf("generate seed: %w", err)
				}
			}

			seedHex := hex.EncodeToString(seed)
			engine, err := config.ResolveEngine(config.NodeConfig{PrivateKey: seedHex})
			if err != nil {
				return fmt.Errorf("derive keypair from seed: %w", err)
			}

			fmt.Printf("private_key: %s\n", seedHex)
			fmt.Printf("public_key:  %s\n", engine.PublicKey().String())
			return nil
		},
	}

	cmd.Flags().BoolVar(&fromPassphrase, "from-passphrase", false, "derive the seed from an interactively entered passphrase")
	return cmd
}

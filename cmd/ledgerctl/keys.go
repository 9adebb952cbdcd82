package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ledgerlink/ledger-sdk/pkg/errors"
	"github.com/ledgerlink/ledger-sdk/pkg/hdkey"
	"github.com/ledgerlink/ledger-sdk/sdk/keys"
)

// newKeysCmd represents the keys command
func newKeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage keys",
		Long: `Manage signing keys.
This command provides subcommands for generating keys, creating mnemonics
and deriving keys along BIP32 paths.`,
	}
	cmd.AddCommand(newKeysGenerateCmd(), newKeysMnemonicCmd(), newKeysDeriveCmd())
	return cmd
}

func printKey(cmd *cobra.Command, key *keys.PrivateKey) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "- Type: %s\n", key.Algorithm())
	fmt.Fprintf(out, "- Private key: %s\n", key.String())
	fmt.Fprintf(out, "- Public key: %s\n", key.PublicKey().String())
}

func newKeysGenerateCmd() *cobra.Command {
	var keyType string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a random key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			alg, err := keys.ParseAlgorithm(keyType)
			if err != nil {
				return err
			}
			key, err := keys.GeneratePrivateKey(alg)
			if err != nil {
				return errors.Wrap(err, "generate key")
			}
			printKey(cmd, key)
			return nil
		},
	}
	cmd.Flags().StringVar(&keyType, "type", "ed25519", "key type: ed25519 or ecdsa")
	return cmd
}

func newKeysMnemonicCmd() *cobra.Command {
	var (
		words   int
		keyType string
	)
	cmd := &cobra.Command{
		Use:   "mnemonic",
		Short: "Create a new mnemonic and show its first key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bits, ok := map[int]int{12: 128, 15: 160, 18: 192, 21: 224, 24: 256}[words]
			if !ok {
				return errors.Errorf("unsupported word count %d", words)
			}
			alg, err := keys.ParseAlgorithm(keyType)
			if err != nil {
				return err
			}
			mnemonic, err := hdkey.NewMnemonic(bits)
			if err != nil {
				return errors.Wrap(err, "create mnemonic")
			}
			key, err := keys.FromMnemonic(alg, mnemonic, "", 0)
			if err != nil {
				return errors.Wrap(err, "derive key from mnemonic")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "- Mnemonic: %s\n", mnemonic)
			printKey(cmd, key)
			fmt.Fprintln(cmd.OutOrStdout(), "\nIMPORTANT: Write down the mnemonic and keep it in a safe place.")
			return nil
		},
	}
	cmd.Flags().IntVar(&words, "words", 24, "number of words")
	cmd.Flags().StringVar(&keyType, "type", "ed25519", "key type of the derived key: ed25519 or ecdsa")
	return cmd
}

func newKeysDeriveCmd() *cobra.Command {
	var (
		seedHex  string
		mnemonic string
		path     string
		keyType  string
	)
	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Derive a key along a BIP32 path",
		Long: `Derive a key from a hex seed or a mnemonic along a BIP32 path.

Example:
  ledgerctl keys derive --seed 000102030405060708090a0b0c0d0e0f --path "m/0'/1"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			alg, err := keys.ParseAlgorithm(keyType)
			if err != nil {
				return err
			}
			var seed []byte
			switch {
			case seedHex != "" && mnemonic != "":
				return errors.New("use either --seed or --mnemonic")
			case seedHex != "":
				seed, err = hex.DecodeString(strings.TrimPrefix(seedHex, "0x"))
				if err != nil {
					return errors.Wrap(err, "decode seed")
				}
			case mnemonic != "":
				seed, err = hdkey.SeedFromMnemonic(mnemonic, "")
				if err != nil {
					return err
				}
			default:
				return errors.New("--seed or --mnemonic is required")
			}

			curve := hdkey.Ed25519
			if alg == keys.ECDSASecp256k1 {
				curve = hdkey.Secp256k1
			}
			master, err := hdkey.NewMaster(curve, seed)
			if err != nil {
				return err
			}
			ext, err := master.DerivePath(path)
			if err != nil {
				return err
			}
			key, err := keys.FromExtendedKey(ext)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "- Path: %s\n", path)
			fmt.Fprintf(cmd.OutOrStdout(), "- Chain code: %s\n", hex.EncodeToString(ext.ChainCode()))
			printKey(cmd, key)
			return nil
		},
	}
	cmd.Flags().StringVar(&seedHex, "seed", "", "hex encoded seed (16 to 64 bytes)")
	cmd.Flags().StringVar(&mnemonic, "mnemonic", "", "BIP39 mnemonic")
	cmd.Flags().StringVar(&path, "path", "m", "derivation path, e.g. m/44'/3030'/0'/0'")
	cmd.Flags().StringVar(&keyType, "type", "ecdsa", "key type: ed25519 (hardened paths only) or ecdsa")
	return cmd
}

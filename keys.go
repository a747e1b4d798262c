package main

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/deemkeen/glyptodon/keystore"
	"github.com/deemkeen/glyptodon/util"
	"github.com/spf13/cobra"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Inspect and manage the actor signing keys",
}

var keysShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the actor public key and its fingerprint",
	RunE: func(cmd *cobra.Command, args []string) error {
		keys, err := openKeyStore()
		if err != nil {
			return err
		}

		pem, err := keys.PublicKeyPEM()
		if err != nil {
			return fmt.Errorf("no keypair yet, run serve or keys regenerate first: %w", err)
		}
		fp, err := keys.Fingerprint()
		if err != nil {
			return err
		}

		fmt.Print(pem)
		fmt.Println("Fingerprint:", fp)
		return nil
	},
}

var keysRegenerateCmd = &cobra.Command{
	Use:   "regenerate",
	Short: "Force a new keypair, invalidating the published one",
	Long: `Generates a fresh RSA keypair even when one exists. Remote servers
cache the old public key, so followers may need to unfollow and
follow again before they accept deliveries signed with the new key.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		keys, err := openKeyStore()
		if err != nil {
			return err
		}

		if err := keys.EnsureKeys(true); err != nil {
			return err
		}
		fp, err := keys.Fingerprint()
		if err != nil {
			return err
		}

		fmt.Println("New keypair generated")
		fmt.Println("Fingerprint:", fp)
		return nil
	},
}

func openKeyStore() (*keystore.KeyStore, error) {
	confStore, err := util.LoadConfig()
	if err != nil {
		return nil, err
	}
	dataDir, err := util.ResolveDataDir(confStore.Conf().DataDir)
	if err != nil {
		return nil, err
	}
	return keystore.New(dataDir, confStore, log.Default().WithPrefix("keystore")), nil
}

func init() {
	keysCmd.AddCommand(keysShowCmd, keysRegenerateCmd)
	rootCmd.AddCommand(keysCmd)
}

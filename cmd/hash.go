package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zzenonn/fyles/internal/hashcodec"
)

var encodeCmd = &cobra.Command{
	Use:   "encode [multihash]",
	Short: "Split a base-58 multihash into its on-chain fields",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		enc, err := hashcodec.Encode(args[0])
		if err != nil {
			return err
		}
		if cfg.StrictMultihash {
			if err := hashcodec.Validate(args[0]); err != nil {
				return err
			}
		}

		fmt.Printf("Full hex:      %s\n", enc.FullHex)
		printEncoded(enc)
		return nil
	},
}

var decodeCmd = &cobra.Command{
	Use:   "decode [file-hash] [metadata]",
	Short: "Rebuild a multihash and gateway URL from ledger words",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		entry, err := hashcodec.Decode(args[0], args[1], cfg.GatewayURL)
		if err != nil {
			return err
		}

		fmt.Printf("Hash: %s\n", entry.Hash)
		fmt.Printf("Type: %s\n", entry.Type)
		fmt.Printf("URL:  %s\n", entry.URL)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(encodeCmd)
	rootCmd.AddCommand(decodeCmd)
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zzenonn/fyles/internal/domain"
	"github.com/zzenonn/fyles/internal/hashcodec"
	"github.com/zzenonn/fyles/internal/repository/ipfs"
)

var uploadCmd = &cobra.Command{
	Use:   "upload [file-path]",
	Short: "Add a file to IPFS and register it on the ledger",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filePath := args[0]

		typeFlag, _ := cmd.Flags().GetString("type")
		fileType, err := domain.ParseFileType(typeFlag)
		if err != nil {
			return err
		}

		file, err := os.Open(filePath)
		if err != nil {
			return fmt.Errorf("error opening file: %w", err)
		}
		defer file.Close()

		ctx, cancel := requestContext(cmd)
		defer cancel()

		fileService, cleanup, err := newFileService(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		session, err := fileService.NewSession(ctx)
		if err != nil {
			return err
		}
		if err := fileService.Capture(session, file, fileType); err != nil {
			return err
		}

		upload, err := fileService.Submit(ctx, session)
		if err != nil {
			return fmt.Errorf("error uploading %s: %w", filePath, err)
		}

		fmt.Printf("File uploaded successfully: %s -> %s\n", filePath, upload.Multihash)
		fmt.Printf("Transaction: %s\n", upload.Transaction)
		printEncoded(upload.Encoded)
		fmt.Println()
		printEntries(session.Files())
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List files registered by the current account, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext(cmd)
		defer cancel()

		fileService, cleanup, err := newFileService(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		session, err := fileService.NewSession(ctx)
		if err != nil {
			return err
		}
		files, err := fileService.Refresh(ctx, session)
		if err != nil {
			return fmt.Errorf("error listing files: %w", err)
		}

		printEntries(files)
		return nil
	},
}

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Show the account registry calls are made from",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := requestContext(cmd)
		defer cancel()

		fileService, cleanup, err := newFileService(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		session, err := fileService.NewSession(ctx)
		if err != nil {
			return err
		}
		fmt.Println(session.Account)
		return nil
	},
}

var hashCmd = &cobra.Command{
	Use:   "hash [file-path]",
	Short: "Compute the IPFS multihash of a file without uploading it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("error reading file: %w", err)
		}

		hash, err := ipfs.NewHasher().Add(cmd.Context(), data)
		if err != nil {
			return err
		}
		enc, err := hashcodec.Encode(hash)
		if err != nil {
			return err
		}

		fmt.Println(hash)
		printEncoded(enc)
		return nil
	},
}

func printEntries(files []domain.Entry) {
	if len(files) == 0 {
		fmt.Println("No files registered")
		return
	}
	fmt.Printf("%-48s %-9s %s\n", "HASH", "TYPE", "URL")
	for _, f := range files {
		fmt.Printf("%-48s %-9s %s\n", f.Hash, f.Type, f.URL)
	}
}

func printEncoded(enc domain.EncodedHash) {
	fmt.Printf("Hash function: %s (%s)\n", enc.HashFunction, hashcodec.Describe(enc.HashFunction))
	fmt.Printf("Hash size:     %s\n", enc.HashSize)
	fmt.Printf("File hash:     %s\n", enc.FileHash)
}

func init() {
	uploadCmd.Flags().StringP("type", "t", "document", "File type: other, image, video or document")
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(accountCmd)
	rootCmd.AddCommand(hashCmd)
}

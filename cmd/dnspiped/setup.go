package main

import (
	"context"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/cloudflare/cloudflare-go"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var tokenFilePath string

var setupCmd = &cobra.Command{
	Use:           "setup",
	SilenceUsage:  true,
	SilenceErrors: true,
	Short:         "Verifies a Cloudflare API token and writes it to a token file",
	RunE: func(_ *cobra.Command, _ []string) error {
		return runSetup()
	},
}

func init() {
	setupCmd.Flags().StringVar(&tokenFilePath, "out", "/etc/dnspipe.token", "path to write the token file to")
}

func runSetup() error {
	// dirty timer hack to try to get stderr and stdout output lines to display in order
	time.Sleep(200 * time.Millisecond)
	fmt.Printf("Enter Cloudflare API Token: \n")
	bytetoken, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return fmt.Errorf("error reading from stdin: %w", err)
	}
	token := string(bytetoken)

	api, err := cloudflare.NewWithAPIToken(token)
	if err != nil {
		return fmt.Errorf("error creating api client: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result, err := api.VerifyAPIToken(ctx)
	if err != nil {
		return fmt.Errorf("unable to verify api token: %w", err)
	}
	if result.Status != "active" {
		return fmt.Errorf("expected api token status to be \"active\"; got %q", result.Status)
	}

	f, err := os.OpenFile(tokenFilePath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("unable to create %q: %w", tokenFilePath, err)
	}
	defer f.Close()
	fmt.Fprintln(f, token)
	fmt.Printf("token written to %q\n", tokenFilePath)
	return nil
}

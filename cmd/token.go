package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tomefetch/tomefetch/internal/config"
	"github.com/tomefetch/tomefetch/internal/utils"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print the auth token used by the tomefetch server",
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := ensureAuthToken()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
}

func tokenPath() string {
	return filepath.Join(config.GetAppDir(), "token")
}

// ensureAuthToken returns the persisted API token, creating one on first use.
func ensureAuthToken() (string, error) {
	data, err := os.ReadFile(tokenPath())
	if err == nil {
		if token := strings.TrimSpace(string(data)); token != "" {
			return token, nil
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("read token: %w", err)
	}

	token := uuid.New().String()
	if err := os.MkdirAll(config.GetAppDir(), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(tokenPath(), []byte(token), 0o600); err != nil {
		return "", fmt.Errorf("write token: %w", err)
	}
	utils.Debug("Generated new API token")
	return token, nil
}

package cmd

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tomefetch/tomefetch/internal/core"
)

var connectCmd = &cobra.Command{
	Use:   "connect [host:port]",
	Short: "Open the dashboard against a running tomefetch server",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := resolveHostTarget()
		if len(args) > 0 {
			target = args[0]
		}
		if target == "" {
			port := readActivePort()
			if port <= 0 {
				return fmt.Errorf("no running tomefetch server found locally; usage: tomefetch connect <host:port>")
			}
			target = fmt.Sprintf("127.0.0.1:%d", port)
		}

		insecureHTTP, _ := cmd.Flags().GetBool("insecure-http")
		baseURL, err := resolveConnectBaseURL(target, insecureHTTP)
		if err != nil {
			return err
		}
		token, err := resolveTokenForTarget(target)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Connecting to %s...\n", baseURL)
		service := core.NewRemoteDownloadService(baseURL, token)
		defer func() { _ = service.Shutdown() }()

		if _, err := service.List(); err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}

		// Remote downloads land wherever the server writes them.
		return runTUI(service, "")
	},
}

func init() {
	connectCmd.Flags().Bool("insecure-http", false, "Allow plain HTTP for non-loopback targets")
	rootCmd.AddCommand(connectCmd)
}

func resolveConnectBaseURL(target string, allowInsecureHTTP bool) (string, error) {
	if strings.Contains(target, "://") {
		u, err := url.Parse(target)
		if err != nil {
			return "", fmt.Errorf("invalid target: %v", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return "", fmt.Errorf("unsupported scheme %q (use http or https)", u.Scheme)
		}
		if u.Host == "" {
			return "", fmt.Errorf("invalid target: missing host")
		}
		if u.Scheme == "http" && !allowInsecureHTTP && !isLoopbackHost(u.Hostname()) {
			return "", fmt.Errorf("refusing insecure HTTP for non-loopback target. Use https:// or --insecure-http")
		}
		return fmt.Sprintf("%s://%s", u.Scheme, u.Host), nil
	}

	scheme := "https"
	if allowInsecureHTTP || isLoopbackHost(hostnameFromTarget(target)) {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s", scheme, target), nil
}

func hostnameFromTarget(target string) string {
	if host, _, err := net.SplitHostPort(target); err == nil {
		return host
	}
	host := target
	if idx := strings.Index(host, ":"); idx != -1 {
		host = host[:idx]
	}
	return host
}

func isLoopbackHost(host string) bool {
	if host == "" {
		return false
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback()
}

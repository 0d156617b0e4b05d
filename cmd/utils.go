package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tomefetch/tomefetch/internal/config"
	"github.com/tomefetch/tomefetch/internal/core"
	"github.com/tomefetch/tomefetch/internal/utils"
)

const shortIDLen = 8

func portFilePath() string {
	return filepath.Join(config.GetRuntimeDir(), "port")
}

func pidFilePath() string {
	return filepath.Join(config.GetRuntimeDir(), "pid")
}

// readActivePort reads the port from the port file
func readActivePort() int {
	return readIntFile(portFilePath())
}

func saveActivePort(port int) {
	writeIntFile(portFilePath(), port)
}

func removeActivePort() {
	removeRuntimeFile(portFilePath())
}

func readIntFile(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return n
}

func writeIntFile(path string, n int) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		utils.Debug("Error creating runtime dir: %v", err)
		return
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(n)), 0o644); err != nil {
		utils.Debug("Error writing %s: %v", path, err)
	}
}

func removeRuntimeFile(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		utils.Debug("Error removing %s: %v", path, err)
	}
}

// collectURLs merges positional URLs with those from the batch file.
func collectURLs(args []string, batchFile string) ([]string, error) {
	urls := make([]string, 0, len(args))
	for _, a := range args {
		if a = strings.TrimSpace(a); a != "" {
			urls = append(urls, a)
		}
	}
	if batchFile != "" {
		fromFile, err := readURLsFromFile(batchFile)
		if err != nil {
			return nil, err
		}
		urls = append(urls, fromFile...)
	}
	return urls, nil
}

// readURLsFromFile reads URLs from a file, one per line. Blank lines and
// lines starting with # are skipped.
func readURLsFromFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var urls []string
	scanner := bufio.NewScanner(file)

	// Long signed URLs overflow the default 64KB line limit.
	const maxCapacity = 1024 * 1024
	scanner.Buffer(make([]byte, 0, 64*1024), maxCapacity)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			urls = append(urls, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return urls, nil
}

// parseHeaders turns repeated "Key: Value" flags into a header map.
func parseHeaders(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	headers := make(map[string]string, len(raw))
	for _, h := range raw {
		key, value, ok := strings.Cut(h, ":")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid header %q (want Key: Value)", h)
		}
		headers[key] = strings.TrimSpace(value)
	}
	return headers, nil
}

func shortID(id string) string {
	if len(id) > shortIDLen {
		return id[:shortIDLen]
	}
	return id
}

func resolveLocalToken() (string, error) {
	if token := strings.TrimSpace(globalToken); token != "" {
		return token, nil
	}
	if token := strings.TrimSpace(os.Getenv("TOMEFETCH_TOKEN")); token != "" {
		return token, nil
	}
	return ensureAuthToken()
}

func resolveHostTarget() string {
	if host := strings.TrimSpace(globalHost); host != "" {
		return host
	}
	return strings.TrimSpace(os.Getenv("TOMEFETCH_HOST"))
}

// resolveTokenForTarget only falls back to the local token for loopback hosts.
func resolveTokenForTarget(target string) (string, error) {
	if token := strings.TrimSpace(globalToken); token != "" {
		return token, nil
	}
	if token := strings.TrimSpace(os.Getenv("TOMEFETCH_TOKEN")); token != "" {
		return token, nil
	}
	if isLoopbackHost(hostnameFromTarget(target)) {
		return ensureAuthToken()
	}
	return "", errors.New("no token provided. Use --token or set TOMEFETCH_TOKEN")
}

// resolveAPIConnection finds the server to talk to: --host or
// TOMEFETCH_HOST first, then the local port file.
func resolveAPIConnection() (string, string, error) {
	target := resolveHostTarget()
	if target == "" {
		port := readActivePort()
		if port <= 0 {
			return "", "", errors.New("tomefetch is not running locally. start it or pass --host (or set TOMEFETCH_HOST)")
		}
		token, err := resolveLocalToken()
		if err != nil {
			return "", "", err
		}
		return fmt.Sprintf("http://127.0.0.1:%d", port), token, nil
	}

	baseURL, err := resolveConnectBaseURL(target, false)
	if err != nil {
		return "", "", err
	}
	token, err := resolveTokenForTarget(target)
	if err != nil {
		return "", "", err
	}
	return baseURL, token, nil
}

// resolveDownloadID expands an ID prefix against the service's downloads.
func resolveDownloadID(service core.DownloadService, partialID string) (string, error) {
	if len(partialID) >= 32 {
		return partialID, nil
	}
	statuses, err := service.List()
	if err != nil {
		return "", fmt.Errorf("failed to list downloads: %w", err)
	}
	candidates := make([]string, 0, len(statuses))
	for _, s := range statuses {
		candidates = append(candidates, s.ID)
	}
	return resolveIDFromCandidates(partialID, candidates)
}

func resolveIDFromCandidates(partialID string, candidates []string) (string, error) {
	var matches []string
	seen := make(map[string]bool)

	for _, id := range candidates {
		if id == partialID {
			return id, nil
		}
		if strings.HasPrefix(id, partialID) && !seen[id] {
			matches = append(matches, id)
			seen[id] = true
		}
	}

	if len(matches) == 1 {
		return matches[0], nil
	}
	if len(matches) > 1 {
		return "", fmt.Errorf("ambiguous ID prefix '%s' matches %d downloads", partialID, len(matches))
	}

	return partialID, nil // No match, use as-is (will fail with "not found" later)
}

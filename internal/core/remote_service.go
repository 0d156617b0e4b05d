package core

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tomefetch/tomefetch/internal/engine/events"
	"github.com/tomefetch/tomefetch/internal/engine/types"
	"github.com/tomefetch/tomefetch/internal/utils"
)

const (
	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second
)

// AddRequest is the JSON body of POST /download.
type AddRequest struct {
	URL      string            `json:"url"`
	Path     string            `json:"path,omitempty"`
	Filename string            `json:"filename,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
}

// RemoteDownloadService implements DownloadService against a running server.
type RemoteDownloadService struct {
	BaseURL   string
	Token     string
	Client    *http.Client
	SSEClient *http.Client
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewRemoteDownloadService creates a new remote service instance.
func NewRemoteDownloadService(baseURL string, token string) *RemoteDownloadService {
	ctx, cancel := context.WithCancel(context.Background())
	return &RemoteDownloadService{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		Token:     token,
		Client:    &http.Client{Timeout: 30 * time.Second},
		SSEClient: &http.Client{},
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (s *RemoteDownloadService) doRequest(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(s.ctx, method, s.BaseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+s.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		defer func() { _ = resp.Body.Close() }()
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		msg := strings.TrimSpace(string(bodyBytes))
		if resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, msg)
		}
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, msg)
	}

	return resp, nil
}

func (s *RemoteDownloadService) getJSON(path string, out any) error {
	resp, err := s.doRequest(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	return json.NewDecoder(resp.Body).Decode(out)
}

func (s *RemoteDownloadService) post(path string) error {
	resp, err := s.doRequest(http.MethodPost, path, nil)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// List returns the status of all active and finished downloads.
func (s *RemoteDownloadService) List() ([]types.DownloadStatus, error) {
	var statuses []types.DownloadStatus
	if err := s.getJSON("/list", &statuses); err != nil {
		return nil, err
	}
	return statuses, nil
}

// History returns recorded downloads.
func (s *RemoteDownloadService) History() ([]types.DownloadEntry, error) {
	var history []types.DownloadEntry
	if err := s.getJSON("/history", &history); err != nil {
		return nil, err
	}
	return history, nil
}

// GetStatus returns a status for a single download by id.
func (s *RemoteDownloadService) GetStatus(id string) (*types.DownloadStatus, error) {
	var status types.DownloadStatus
	if err := s.getJSON("/download?id="+url.QueryEscape(id), &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Add queues a new download on the server.
func (s *RemoteDownloadService) Add(rawurl string, path string, filename string, headers map[string]string) (string, error) {
	resp, err := s.doRequest(http.MethodPost, "/download", AddRequest{
		URL:      rawurl,
		Path:     path,
		Filename: filename,
		Headers:  headers,
	})
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	var result map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result["id"], nil
}

// Pause pauses an active download.
func (s *RemoteDownloadService) Pause(id string) error {
	return s.post("/pause?id=" + url.QueryEscape(id))
}

// Resume resumes a paused download.
func (s *RemoteDownloadService) Resume(id string) error {
	return s.post("/resume?id=" + url.QueryEscape(id))
}

// Delete cancels and removes a download.
func (s *RemoteDownloadService) Delete(id string) error {
	return s.post("/delete?id=" + url.QueryEscape(id))
}

// Shutdown stops the service. The server keeps running.
func (s *RemoteDownloadService) Shutdown() error {
	s.cancel()
	return nil
}

// StreamEvents returns a channel that receives real-time download events via
// SSE. Dropped connections are retried with exponential back-off.
func (s *RemoteDownloadService) StreamEvents(ctx context.Context) (<-chan any, func(), error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan any, eventBuffer)
	go s.streamWithReconnect(ctx, ch)
	return ch, cancel, nil
}

func (s *RemoteDownloadService) streamWithReconnect(ctx context.Context, ch chan any) {
	defer close(ch)
	backoff := initialBackoff
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ctx.Done():
			return
		default:
		}

		connected, err := s.connectSSE(ctx, ch)
		if err == nil {
			return
		}
		if connected {
			backoff = initialBackoff
		}
		utils.Debug("Event stream dropped: %v (retrying in %s)", err, backoff)

		select {
		case <-s.ctx.Done():
			return
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		if backoff < maxBackoff {
			backoff *= 2
		}
	}
}

// connectSSE reads one event stream until it ends. connected reports
// whether the server accepted the stream.
func (s *RemoteDownloadService) connectSSE(ctx context.Context, ch chan any) (connected bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+"/events", nil)
	if err != nil {
		return false, err
	}

	req.Header.Set("Authorization", "Bearer "+s.Token)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.SSEClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return false, nil
		}
		return false, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("failed to connect to event stream: %s", resp.Status)
	}

	err = readSSE(resp.Body, func(name string, data []byte) {
		msg, err := events.Decode(name, data)
		if err != nil {
			return
		}
		if events.IsTerminal(msg) {
			select {
			case ch <- msg:
			case <-ctx.Done():
			}
			return
		}
		select {
		case ch <- msg:
		default:
			// Progress is superseded by the next update anyway.
		}
	})
	if ctx.Err() != nil {
		return true, nil
	}
	return true, err
}

// readSSE parses a text/event-stream body and calls emit for every complete
// event. It returns the error that ended the stream.
func readSSE(r io.Reader, emit func(name string, data []byte)) error {
	reader := bufio.NewReader(r)
	eventType := ""
	var dataLines []string

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return io.ErrUnexpectedEOF
			}
			return err
		}
		line = strings.TrimRight(line, "\r\n")

		switch {
		case line == "":
			if eventType != "" && len(dataLines) > 0 {
				emit(eventType, []byte(strings.Join(dataLines, "\n")))
			}
			eventType = ""
			dataLines = dataLines[:0]
		case strings.HasPrefix(line, ":"):
			// Comment/heartbeat
		case strings.HasPrefix(line, "event:"):
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
}

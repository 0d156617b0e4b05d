package source

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/proxy"

	"github.com/tomefetch/tomefetch/internal/engine/types"
	"github.com/tomefetch/tomefetch/internal/utils"
)

// HTTPSource streams the body of a single GET request.
type HTTPSource struct {
	URL     string
	Headers map[string]string // Custom HTTP headers (cookies, auth, etc.)
	Runtime *types.RuntimeConfig
	Client  *http.Client
}

// NewHTTPSource creates an HTTP source with a client configured from runtime.
func NewHTTPSource(rawurl string, headers map[string]string, runtime *types.RuntimeConfig) *HTTPSource {
	return &HTTPSource{
		URL:     rawurl,
		Headers: headers,
		Runtime: runtime,
		Client:  NewHTTPClient(runtime),
	}
}

// NewHTTPClient builds a client honouring the proxy and TLS settings in
// runtime. Custom headers survive redirects, except Authorization when the
// redirect leaves the original host.
func NewHTTPClient(runtime *types.RuntimeConfig) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:          types.DefaultMaxIdleConns,
		IdleConnTimeout:       types.DefaultIdleConnTimeout,
		TLSHandshakeTimeout:   types.DefaultTLSHandshakeTimeout,
		ResponseHeaderTimeout: types.DefaultResponseHeaderTimeout,
		DialContext: (&net.Dialer{
			Timeout:   types.DialTimeout,
			KeepAlive: types.KeepAliveDuration,
		}).DialContext,
		Proxy: http.ProxyFromEnvironment,
	}

	if runtime != nil && runtime.ProxyURL != "" {
		configureProxy(transport, runtime.ProxyURL)
	}

	if runtime != nil && runtime.SkipTLSVerification {
		utils.Debug("HTTP source: TLS verification disabled")
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in setting
	}

	return &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= types.MaxRedirects {
				return fmt.Errorf("stopped after %d redirects", types.MaxRedirects)
			}
			if len(via) > 0 {
				origin := via[0]
				for key, vals := range origin.Header {
					if key == "Authorization" && req.URL.Host != origin.URL.Host {
						continue
					}
					req.Header[key] = vals
				}
			}
			return nil
		},
	}
}

func configureProxy(transport *http.Transport, rawProxy string) {
	parsed, err := url.Parse(rawProxy)
	if err != nil {
		utils.Debug("HTTP source: invalid proxy URL %s: %v", rawProxy, err)
		return
	}

	if !strings.HasPrefix(parsed.Scheme, "socks5") {
		transport.Proxy = http.ProxyURL(parsed)
		return
	}

	var auth *proxy.Auth
	if parsed.User != nil {
		password, _ := parsed.User.Password()
		auth = &proxy.Auth{User: parsed.User.Username(), Password: password}
	}

	dialer, err := proxy.SOCKS5("tcp", parsed.Host, auth, proxy.Direct)
	if err != nil {
		utils.Debug("HTTP source: failed to create SOCKS5 dialer: %v", err)
		return
	}

	utils.Debug("HTTP source: using SOCKS5 proxy %s", parsed.Host)
	transport.Proxy = nil
	if cd, ok := dialer.(proxy.ContextDialer); ok {
		transport.DialContext = cd.DialContext
	} else {
		transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
			return dialer.Dial(network, addr)
		}
	}
}

// Open sends the request and returns the response body as a stream.
func (s *HTTPSource) Open(ctx context.Context) (*Stream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, val := range s.Headers {
		req.Header.Set(key, val)
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", s.Runtime.GetUserAgent())
	}

	client := s.Client
	if client == nil {
		client = NewHTTPClient(s.Runtime)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4*types.KB))
		_ = resp.Body.Close()
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	size := resp.ContentLength
	if size < 0 {
		size = 0
	}

	utils.Debug("HTTP source opened %s: status %d, size %d", s.URL, resp.StatusCode, size)

	return &Stream{
		Body:        resp.Body,
		Size:        size,
		Filename:    utils.DetermineFilename(s.URL, resp),
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

// Describe returns the request URL.
func (s *HTTPSource) Describe() string {
	return s.URL
}

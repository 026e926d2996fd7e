package teachtiles

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	webTimeout = 5 * time.Second
)

type HTTPClient interface {
	Get(string) (*http.Response, error)
}

// Shared HTTP Client
var sharedHTTPClient = &http.Client{
	Timeout: webTimeout,
	Transport: &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,
	},
}

// SingleFetchWithClient does one GET and returns the status and body
func SingleFetchWithClient(url string, c HTTPClient) (int, []byte, error) {
	resp, err := c.Get(url)
	if err != nil {
		slog.Error("Fetch Error", slog.Any("Error", err))
		return 0, nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Error("Close Error", slog.Any("Error", err))
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Error("Could not read body", slog.Any("Error", err))
		return 0, nil, err
	}

	return resp.StatusCode, body, nil
}

// SingleFetch uses the shared client so repeated status checks reuse connections
func SingleFetch(url string) (int, []byte, error) {
	return SingleFetchWithClient(url, sharedHTTPClient)
}

// FetchBridgeStatus asks a running bridge what it is hearing
func FetchBridgeStatus(base string) (*BridgeStatus, error) {
	url := strings.TrimSuffix(base, "/") + "/api/status"
	code, body, err := SingleFetch(url)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	if code != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", url, code)
	}

	var st BridgeStatus
	if err := json.Unmarshal(body, &st); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &st, nil
}

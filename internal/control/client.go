package control

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/voxkeep/voxkeep/internal/models"
)

// Client talks to a running daemon's control API
type Client struct {
	rc *resty.Client
}

// NewClient creates a Client for the daemon at addr (host:port)
func NewClient(addr string) *Client {
	rc := resty.New().
		SetBaseURL("http://" + addr).
		SetTimeout(10 * time.Second)
	return &Client{rc: rc}
}

// Ping reports whether a daemon is reachable
func (c *Client) Ping() bool {
	resp, err := c.rc.R().Get("/healthz")
	return err == nil && resp.StatusCode() == http.StatusOK
}

// Start asks the daemon to begin a new session
func (c *Client) Start() (string, error) {
	var out StartResponse
	var apiErr errorResponse
	resp, err := c.rc.R().SetResult(&out).SetError(&apiErr).Post("/v1/start")
	if err != nil {
		return "", fmt.Errorf("daemon unreachable: %w", err)
	}
	if resp.IsError() {
		return "", toDomainError(resp.StatusCode(), apiErr)
	}
	return out.SessionID, nil
}

// Stop ends the session with the given id
func (c *Client) Stop(id string) (*models.CompletedRecording, error) {
	var out StopResponse
	var apiErr errorResponse
	resp, err := c.rc.R().SetResult(&out).SetError(&apiErr).Post("/v1/stop/" + id)
	if err != nil {
		return nil, fmt.Errorf("daemon unreachable: %w", err)
	}
	if resp.IsError() {
		return nil, toDomainError(resp.StatusCode(), apiErr)
	}
	return out.Recording, nil
}

// StopCurrent ends whatever session is active; nil recording means the
// daemon was already idle.
func (c *Client) StopCurrent() (*models.CompletedRecording, error) {
	var out StopResponse
	var apiErr errorResponse
	resp, err := c.rc.R().SetResult(&out).SetError(&apiErr).Post("/v1/stop-current")
	if err != nil {
		return nil, fmt.Errorf("daemon unreachable: %w", err)
	}
	if resp.IsError() {
		return nil, toDomainError(resp.StatusCode(), apiErr)
	}
	return out.Recording, nil
}

// Pause suspends the session with the given id
func (c *Client) Pause(id string) error {
	return c.post("/v1/pause/" + id)
}

// Resume continues the session with the given id
func (c *Client) Resume(id string) error {
	return c.post("/v1/resume/" + id)
}

// Status fetches the daemon's status snapshot
func (c *Client) Status() (*models.RecordingStatus, error) {
	var out models.RecordingStatus
	var apiErr errorResponse
	resp, err := c.rc.R().SetResult(&out).SetError(&apiErr).Get("/v1/status")
	if err != nil {
		return nil, fmt.Errorf("daemon unreachable: %w", err)
	}
	if resp.IsError() {
		return nil, toDomainError(resp.StatusCode(), apiErr)
	}
	return &out, nil
}

func (c *Client) post(path string) error {
	var apiErr errorResponse
	resp, err := c.rc.R().SetError(&apiErr).Post(path)
	if err != nil {
		return fmt.Errorf("daemon unreachable: %w", err)
	}
	if resp.IsError() {
		return toDomainError(resp.StatusCode(), apiErr)
	}
	return nil
}

// toDomainError recovers the sentinel error from the HTTP status code so
// callers can use errors.Is on both sides of the wire.
func toDomainError(code int, apiErr errorResponse) error {
	var sentinel error
	switch code {
	case http.StatusConflict:
		sentinel = models.ErrAlreadyRecording
	case http.StatusNotFound:
		sentinel = models.ErrInvalidSession
	case http.StatusForbidden:
		sentinel = models.ErrPermissionDenied
	case http.StatusServiceUnavailable:
		sentinel = models.ErrStartFailed
	default:
		sentinel = models.ErrStorageFailure
	}
	if apiErr.Error != "" {
		return fmt.Errorf("%w: %s", sentinel, apiErr.Error)
	}
	return sentinel
}

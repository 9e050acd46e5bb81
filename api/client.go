package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"runtime"

	"github.com/edgarlab/secrnn/envconfig"
	"github.com/edgarlab/secrnn/version"
)

// Client dials the monitor server.
type Client struct {
	base *url.URL
	http *http.Client
}

// ClientFromEnvironment creates a new Client using SECRNN_HOST from the
// environment, or the default local address.
func ClientFromEnvironment() (*Client, error) {
	return &Client{
		base: envconfig.Host(),
		http: http.DefaultClient,
	}, nil
}

func NewClient(base *url.URL, http *http.Client) *Client {
	return &Client{
		base: base,
		http: http,
	}
}

func (c *Client) do(ctx context.Context, method, path string, reqData, respData any) error {
	var reqBody io.Reader
	var data []byte
	var err error

	switch reqData := reqData.(type) {
	case io.Reader:
		reqBody = reqData
	case nil:
		// noop
	default:
		data, err = json.Marshal(reqData)
		if err != nil {
			return err
		}

		reqBody = bytes.NewReader(data)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.base.JoinPath(path).String(), reqBody)
	if err != nil {
		return err
	}

	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json")
	request.Header.Set("User-Agent", fmt.Sprintf("secrnn/%s (%s %s) Go/%s", version.Version, runtime.GOARCH, runtime.GOOS, runtime.Version()))

	response, err := c.http.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	respBody, err := io.ReadAll(response.Body)
	if err != nil {
		return err
	}

	if err := checkError(response, respBody); err != nil {
		return err
	}

	if len(respBody) > 0 && respData != nil {
		return json.Unmarshal(respBody, respData)
	}

	return nil
}

func checkError(resp *http.Response, body []byte) error {
	if resp.StatusCode < http.StatusBadRequest {
		return nil
	}

	apiError := StatusError{StatusCode: resp.StatusCode, Status: resp.Status}

	if err := json.Unmarshal(body, &apiError); err != nil {
		// Use the full body as the message if decoding fails.
		apiError.ErrorMessage = string(body)
	}

	return apiError
}

// List returns the runs below the server's runs root.
func (c *Client) List(ctx context.Context) (*ListResponse, error) {
	var lr ListResponse
	if err := c.do(ctx, http.MethodGet, "/api/runs", nil, &lr); err != nil {
		return nil, err
	}

	return &lr, nil
}

// Show returns checkpoints, eval results and the launch manifest of a run.
func (c *Client) Show(ctx context.Context, name string) (*RunDetail, error) {
	var rd RunDetail
	if err := c.do(ctx, http.MethodGet, "/api/runs/"+url.PathEscape(name), nil, &rd); err != nil {
		return nil, err
	}

	return &rd, nil
}

// Version returns the server version.
func (c *Client) Version(ctx context.Context) (string, error) {
	var version struct {
		Version string `json:"version"`
	}

	if err := c.do(ctx, http.MethodGet, "/api/version", nil, &version); err != nil {
		return "", err
	}

	return version.Version, nil
}

// Heartbeat checks if the server is up and responsive; if yes, it returns
// nil, otherwise an error.
func (c *Client) Heartbeat(ctx context.Context) error {
	return c.do(ctx, http.MethodHead, "/", nil, nil)
}

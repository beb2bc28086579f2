// Package yadisk is the archive backend on top of the Yandex Disk REST API.
//
// Only the operations the upload sweep needs are exposed: making sure a
// directory path exists, and uploading a file once and returning its
// public link.
package yadisk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://cloud-api.yandex.net/v1/disk"

	defaultAPITimeout      = 30 * time.Second
	defaultTransferTimeout = 30 * time.Minute
	maxErrorBodyBytes      = 4096

	resourcesPath = "/resources"
	uploadPath    = "/resources/upload"
	publishPath   = "/resources/publish"

	resourceTypeFile = "file"
)

var (
	errUnexpectedStatus = errors.New("yandex disk unexpected status")
	errNoPublicURL      = errors.New("yandex disk returned no public url")
	errNoUploadHref     = errors.New("yandex disk returned no upload href")
)

// Config configures the Client.
type Config struct {
	Token           string
	BaseURL         string
	APITimeout      time.Duration
	TransferTimeout time.Duration
}

// Client talks to Yandex Disk with an OAuth token.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	transfer   *http.Client
}

type resource struct {
	Path      string `json:"path"`
	Type      string `json:"type"`
	PublicURL string `json:"public_url"`
}

type link struct {
	Href   string `json:"href"`
	Method string `json:"method"`
}

func New(cfg Config) *Client {
	apiTimeout := cfg.APITimeout
	if apiTimeout <= 0 {
		apiTimeout = defaultAPITimeout
	}

	transferTimeout := cfg.TransferTimeout
	if transferTimeout <= 0 {
		transferTimeout = defaultTransferTimeout
	}

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		token:      cfg.Token,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: apiTimeout},
		transfer:   &http.Client{Timeout: transferTimeout},
	}
}

// EnsurePath creates every missing directory of p, outermost first.
func (c *Client) EnsurePath(ctx context.Context, p string) error {
	if _, ok, err := c.stat(ctx, p); err != nil {
		return err
	} else if ok {
		return nil
	}

	current := ""

	for _, dir := range strings.Split(p, "/") {
		if dir == "" {
			continue
		}

		current += "/" + dir

		_, ok, err := c.stat(ctx, current)
		if err != nil {
			return err
		}

		if ok {
			continue
		}

		if err := c.mkdir(ctx, current); err != nil {
			return err
		}
	}

	return nil
}

// Upload stores localPath as remoteDir/fileName unless a file of that name
// is already there, publishes it and returns its public link.
func (c *Client) Upload(ctx context.Context, localPath, remoteDir, fileName string) (string, error) {
	remote := path.Join("/", remoteDir, fileName)

	res, ok, err := c.stat(ctx, remote)
	if err != nil {
		return "", err
	}

	if !ok || res.Type != resourceTypeFile {
		if err := c.put(ctx, localPath, remote); err != nil {
			return "", err
		}
	}

	if err := c.publish(ctx, remote); err != nil {
		return "", err
	}

	res, ok, err = c.stat(ctx, remote)
	if err != nil {
		return "", err
	}

	if !ok || res.PublicURL == "" {
		return "", fmt.Errorf("%s: %w", remote, errNoPublicURL)
	}

	return res.PublicURL, nil
}

func (c *Client) stat(ctx context.Context, p string) (resource, bool, error) {
	var res resource

	q := url.Values{"path": {p}, "fields": {"path,type,public_url"}}

	status, err := c.call(ctx, http.MethodGet, resourcesPath, q, &res, http.StatusOK, http.StatusNotFound)
	if err != nil {
		return res, false, fmt.Errorf("stat %s: %w", p, err)
	}

	return res, status == http.StatusOK, nil
}

func (c *Client) mkdir(ctx context.Context, p string) error {
	// 409 means the directory appeared in the meantime.
	if _, err := c.call(ctx, http.MethodPut, resourcesPath, url.Values{"path": {p}}, nil, http.StatusCreated, http.StatusConflict); err != nil {
		return fmt.Errorf("mkdir %s: %w", p, err)
	}

	return nil
}

func (c *Client) publish(ctx context.Context, p string) error {
	if _, err := c.call(ctx, http.MethodPut, publishPath, url.Values{"path": {p}}, nil, http.StatusOK); err != nil {
		return fmt.Errorf("publish %s: %w", p, err)
	}

	return nil
}

func (c *Client) put(ctx context.Context, localPath, remote string) error {
	var target link

	q := url.Values{"path": {remote}, "overwrite": {"false"}}

	status, err := c.call(ctx, http.MethodGet, uploadPath, q, &target, http.StatusOK, http.StatusConflict)
	if err != nil {
		return fmt.Errorf("request upload link for %s: %w", remote, err)
	}

	if status == http.StatusConflict {
		return nil
	}

	if target.Href == "" {
		return fmt.Errorf("%s: %w", remote, errNoUploadHref)
	}

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}

	defer func() {
		_ = f.Close()
	}()

	method := target.Method
	if method == "" {
		method = http.MethodPut
	}

	req, err := http.NewRequestWithContext(ctx, method, target.Href, f)
	if err != nil {
		return fmt.Errorf("create upload request: %w", err)
	}

	if info, err := f.Stat(); err == nil {
		req.ContentLength = info.Size()
	}

	resp, err := c.transfer.Do(req)
	if err != nil {
		return fmt.Errorf("upload %s: %w", localPath, err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("upload %s: %w: %d %s", localPath, errUnexpectedStatus, resp.StatusCode, readErrorBody(resp.Body))
	}

	return nil
}

// call performs an API request and decodes a successful JSON body into out.
// It returns the status code when it is one of accept.
func (c *Client) call(ctx context.Context, method, endpoint string, q url.Values, out interface{}, accept ...int) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("create yandex disk request: %w", err)
	}

	req.Header.Set("Authorization", "OAuth "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("yandex disk request: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	for _, code := range accept {
		if resp.StatusCode != code {
			continue
		}

		if out != nil && code >= http.StatusOK && code < http.StatusMultipleChoices {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return code, fmt.Errorf("decode yandex disk response: %w", err)
			}
		}

		return code, nil
	}

	return resp.StatusCode, fmt.Errorf("%w: %d %s", errUnexpectedStatus, resp.StatusCode, readErrorBody(resp.Body))
}

func readErrorBody(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodyBytes))
	if err != nil {
		return ""
	}

	return strings.TrimSpace(string(body))
}

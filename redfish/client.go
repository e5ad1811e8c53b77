/*
 * Copyright 2026 The bmcsense Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package redfish implements the remote-session collaborator: a small
// Redfish REST client with session-token authentication and retrying
// transport. Per-request failures are masked to ErrNoContent at this
// boundary so callers can degrade to empty sensor groups instead of
// aborting a run.
package redfish

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/benchkit/bmcsense/config"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// DefaultPrefix is the fixed Redfish API path prefix.
const DefaultPrefix = "/redfish/v1"

var (
	// ErrNoContent marks a single-request failure that callers should
	// treat as "no data": transport errors after retries, malformed
	// bodies, non-2xx statuses and error payloads.
	ErrNoContent = errors.New("no content from redfish endpoint")

	// ErrInvalidCredentials marks an authentication failure during login.
	ErrInvalidCredentials = errors.New("invalid redfish credentials")
)

// Client is a session-authenticated Redfish API client. It is not safe for
// concurrent use; the collector issues at most one request at a time.
type Client struct {
	base    *url.URL
	prefix  string
	user    string
	pass    string
	http    *retryablehttp.Client
	token   string
	session string
	log     *zap.Logger
}

// NewClient builds a client for the given BMC target. A bare host or IP is
// accepted and prefixed with the configured scheme.
func NewClient(target, user, pass string, timeout time.Duration) *Client {
	fqdn, err := url.ParseRequestURI(target)
	if err != nil || fqdn.Host == "" {
		fqdn = &url.URL{
			Scheme: config.GetConfig().Scheme,
			Host:   target,
		}
	}

	tr := &http.Transport{
		Dial: (&net.Dialer{
			Timeout: 3 * time.Second,
		}).Dial,
		MaxIdleConns:          1,
		MaxConnsPerHost:       1,
		MaxIdleConnsPerHost:   1,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: !config.GetConfig().SSLVerify,
			Renegotiation:      tls.RenegotiateOnceAsClient,
		},
		TLSHandshakeTimeout: 10 * time.Second,
	}

	retryClient := retryablehttp.NewClient()
	retryClient.CheckRetry = retryablehttp.ErrorPropagatedRetryPolicy
	retryClient.HTTPClient.Transport = tr
	retryClient.HTTPClient.Timeout = timeout
	retryClient.Logger = nil
	retryClient.RetryWaitMin = 2 * time.Second
	retryClient.RetryWaitMax = 2 * time.Second
	retryClient.RetryMax = 2

	c := &Client{
		base:   fqdn,
		prefix: DefaultPrefix,
		user:   user,
		pass:   pass,
		http:   retryClient,
		log:    zap.L(),
	}

	retryClient.RequestLogHook = func(l retryablehttp.Logger, r *http.Request, i int) {
		if i > 0 {
			c.log.Error("api call "+r.URL.String()+" failed, retry #"+strconv.Itoa(i),
				zap.String("host", fqdn.Host))
		}
	}

	return c
}

// Host returns the BMC host the client talks to.
func (c *Client) Host() string { return c.base.Host }

// Login opens a Redfish session and stores its token. Calling Login on an
// already authenticated client is a no-op.
func (c *Client) Login(ctx context.Context) error {
	if c.token != "" {
		return nil
	}

	body, err := json.Marshal(map[string]string{
		"UserName": c.user,
		"Password": c.pass,
	})
	if err != nil {
		return err
	}

	uri := c.base.String() + c.prefix + "/SessionService/Sessions"
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, uri, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("redfish login to %s failed: %w", c.base.Host, err)
	}
	defer emptyAndClose(resp)

	switch {
	case resp.StatusCode == http.StatusCreated || resp.StatusCode == http.StatusOK:
		c.token = resp.Header.Get("X-Auth-Token")
		c.session = resp.Header.Get("Location")
		if c.token == "" {
			return fmt.Errorf("redfish login to %s returned no session token", c.base.Host)
		}
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("login to %s: %w", c.base.Host, ErrInvalidCredentials)
	default:
		return fmt.Errorf("redfish login to %s: HTTP status %d", c.base.Host, resp.StatusCode)
	}
}

// LoggedIn reports whether the client holds a session token.
func (c *Client) LoggedIn() bool { return c.token != "" }

// Logout deletes the session. It is idempotent and skipped when Login never
// succeeded.
func (c *Client) Logout(ctx context.Context) error {
	if c.token == "" {
		return nil
	}

	uri := c.session
	if uri == "" {
		uri = c.base.String() + c.prefix + "/SessionService/Sessions"
	} else if u, err := url.Parse(uri); err == nil && u.Host == "" {
		uri = c.base.String() + uri
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodDelete, uri, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Auth-Token", c.token)

	c.token = ""
	c.session = ""

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("redfish logout from %s failed: %w", c.base.Host, err)
	}
	defer emptyAndClose(resp)

	return nil
}

// Get fetches a resource below the API prefix and returns the raw body.
// Every per-request failure mode is logged and reported as ErrNoContent; a
// body carrying an "error" payload (e.g. Base.1.4.ResourceMissingAtURI) is
// treated the same way.
func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	uri := c.base.String() + c.prefix + path
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("X-Auth-Token", c.token)
	} else {
		req.SetBasicAuth(c.user, c.pass)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error("api call "+uri+" failed", zap.Error(err), traceID(ctx))
		return nil, ErrNoContent
	}
	defer emptyAndClose(resp)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		c.log.Error("api call "+uri+" returned HTTP status "+strconv.Itoa(resp.StatusCode), traceID(ctx))
		return nil, ErrNoContent
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.log.Error("error reading response body from "+uri, zap.Error(err), traceID(ctx))
		return nil, ErrNoContent
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		c.log.Error("malformed response body from "+uri, zap.Error(err), traceID(ctx))
		return nil, ErrNoContent
	}
	if msg, ok := probe["error"]; ok {
		c.log.Error("parsing redfish url "+uri+" failed", zap.ByteString("error", msg), traceID(ctx))
		return nil, ErrNoContent
	}

	return body, nil
}

func traceID(ctx context.Context) zap.Field {
	return zap.Any("trace_id", ctx.Value("traceID"))
}

// emptyAndClose drains the response body so keep-alive connections are
// reused correctly.
func emptyAndClose(resp *http.Response) {
	if resp != nil && resp.Body != nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
}

/*
Copyright (c) 2024 Fsas Technologies Inc., or its subsidiaries. All Rights Reserved.

Licensed under the Mozilla Public License Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://mozilla.org/MPL/2.0/


Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package redfish wraps the gofish client behind the small transport and
// resource location surface the commands need: raw GET/PATCH, PUT
// guarded by an If-Match concurrency token, and selector based lookup of
// vendor resources across schema generations.
package redfish

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/stmcginnis/gofish"
	gfredfish "github.com/stmcginnis/gofish/redfish"
)

const (
	HTTP_HEADER_IF_MATCH = "If-Match"
	HTTP_HEADER_ETAG     = "ETag"
	HTTP_HEADER_LOCATION = "Location"
)

// Config carries everything needed to reach the manager's Redfish API.
// Session switches from per request basic auth to a token session; the
// backup endpoints require a session key and reject basic auth.
type Config struct {
	Endpoint string
	Username string
	Password string
	Insecure bool
	Session  bool
}

// Client is a logged in connection to one manager.
type Client struct {
	api     *gofish.APIClient
	service *gofish.Service
	locks   *syncPool

	gen10 *bool // lazily detected
}

// Connect opens a session against the manager described by cfg.
func Connect(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("no manager endpoint configured, login first")
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("manager credentials have not been set, login first")
	}

	api, err := gofish.Connect(gofish.ClientConfig{
		Endpoint:  cfg.Endpoint,
		Username:  cfg.Username,
		Password:  cfg.Password,
		BasicAuth: !cfg.Session,
		Insecure:  cfg.Insecure,
	})
	if err != nil {
		return nil, fmt.Errorf("error connecting to redfish API: %w", err)
	}

	log.Debug().Str("endpoint", cfg.Endpoint).Msg("connected to manager")
	return &Client{api: api, service: api.Service, locks: newSyncPool()}, nil
}

// Logout drops the session. Safe on a nil client.
func (c *Client) Logout() {
	if c != nil && c.api != nil {
		c.api.Logout()
	}
}

// Service exposes the underlying gofish service root.
func (c *Client) Service() *gofish.Service {
	return c.service
}

// System returns the first computer system of the manager.
func (c *Client) System() (*gfredfish.ComputerSystem, error) {
	systems, err := c.service.Systems()
	if err != nil {
		return nil, fmt.Errorf("error while reading /Systems: %w", err)
	}
	if len(systems) == 0 {
		return nil, fmt.Errorf("no computer system found on the target")
	}
	return systems[0], nil
}

// IsGen10 reports whether the manager exposes the newer schema
// generation. Detection inspects the vendor OEM key of the service root
// and is cached for the connection lifetime.
func (c *Client) IsGen10() bool {
	if c.gen10 != nil {
		return *c.gen10
	}

	gen10 := true
	if body, err := c.GetJSON("/redfish/v1/"); err == nil {
		if oem, ok := body["Oem"].(map[string]interface{}); ok {
			if _, hp := oem["Hp"]; hp {
				gen10 = false
			}
		}
	}

	c.gen10 = &gen10
	return gen10
}

// GetJSON fetches path and decodes the response body into a generic map.
func (c *Client) GetJSON(path string) (map[string]interface{}, error) {
	body, _, err := c.GetWithETag(path)
	return body, err
}

// GetWithETag fetches path and additionally returns the entity tag of
// the response, used as concurrency token for a later full rewrite.
func (c *Client) GetWithETag(path string) (map[string]interface{}, string, error) {
	res, err := c.service.GetClient().Get(path)
	if err != nil {
		return nil, "", fmt.Errorf("reading %s failed: %w", path, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, "", statusError(res)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, "", fmt.Errorf("decoding %s failed: %w", path, err)
	}

	return body, res.Header.Get(HTTP_HEADER_ETAG), nil
}

// Patch submits a partial update to path.
func (c *Client) Patch(path string, payload interface{}) error {
	c.locks.Lock(path)
	defer c.locks.Unlock(path)

	res, err := c.service.GetClient().Patch(path, payload)
	if err != nil {
		return fmt.Errorf("changing %s failed: %w", path, err)
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusBadRequest {
		return statusError(res)
	}

	log.Debug().Str("path", path).Int("status", res.StatusCode).Msg("patch applied")
	return nil
}

// PatchWithETag submits a partial update guarded by the If-Match
// concurrency token of the prior read.
func (c *Client) PatchWithETag(path string, payload interface{}, etag string) error {
	c.locks.Lock(path)
	defer c.locks.Unlock(path)

	res, err := c.service.GetClient().PatchWithHeaders(path, payload,
		map[string]string{HTTP_HEADER_IF_MATCH: etag})
	if err != nil {
		return fmt.Errorf("changing %s failed: %w", path, err)
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusBadRequest {
		return statusError(res)
	}

	log.Debug().Str("path", path).Int("status", res.StatusCode).Msg("patch applied")
	return nil
}

// PutWithETag rewrites the resource at path whole. The etag read
// together with the prior state travels as If-Match, so the write is
// rejected when the resource changed in between.
func (c *Client) PutWithETag(path string, payload interface{}, etag string) error {
	c.locks.Lock(path)
	defer c.locks.Unlock(path)

	res, err := c.service.GetClient().PutWithHeaders(path, payload,
		map[string]string{HTTP_HEADER_IF_MATCH: etag})
	if err != nil {
		return fmt.Errorf("rewriting %s failed: %w", path, err)
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusBadRequest {
		return statusError(res)
	}

	log.Debug().Str("path", path).Int("status", res.StatusCode).Msg("put applied")
	return nil
}

// Delete removes the resource at path.
func (c *Client) Delete(path string) error {
	res, err := c.service.GetClient().Delete(path)
	if err != nil {
		return fmt.Errorf("deleting %s failed: %w", path, err)
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusBadRequest {
		return statusError(res)
	}

	log.Debug().Str("path", path).Int("status", res.StatusCode).Msg("delete applied")
	return nil
}

// Post submits payload to path and returns the raw response. Callers
// own closing the body.
func (c *Client) Post(path string, payload interface{}) (*http.Response, error) {
	return c.service.GetClient().Post(path, payload)
}

// PostMultipart submits multipart form content to path.
func (c *Client) PostMultipart(path string, payload map[string]io.Reader) (*http.Response, error) {
	return c.service.GetClient().PostMultipart(path, payload)
}

// PostMultipartWithHeaders submits multipart form content with extra
// request headers, used by the backup endpoints that authenticate via a
// session cookie instead of the API token.
func (c *Client) PostMultipartWithHeaders(path string, payload map[string]io.Reader, headers map[string]string) (*http.Response, error) {
	return c.service.GetClient().PostMultipartWithHeaders(path, payload, headers)
}

// PostForm submits url-encoded form values to path and returns the raw
// response. The backup file endpoint lives outside the API tree and
// only speaks forms.
func (c *Client) PostForm(path string, values url.Values) (*http.Response, error) {
	payload := strings.NewReader(values.Encode())
	return c.api.RunRawRequestWithHeaders(http.MethodPost, path, payload,
		"application/x-www-form-urlencoded", nil)
}

// SessionToken returns the token of the current session, empty when the
// connection authenticates per request.
func (c *Client) SessionToken() string {
	if c == nil || c.api == nil {
		return ""
	}
	session, err := c.api.GetSession()
	if err != nil || session == nil {
		return ""
	}
	return session.Token
}

func statusError(res *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	return &StatusError{Code: res.StatusCode, Body: string(raw)}
}

// Remarshal decodes a generic JSON value into a typed target through an
// encode/decode round trip.
func Remarshal(src interface{}, target interface{}) error {
	raw, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, target)
}

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

package redfish

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benchkit/bmcsense/config"
	"github.com/stretchr/testify/assert"
)

const (
	testToken   = "token-abc123"
	sessionPath = DefaultPrefix + "/SessionService/Sessions"
)

func init() {
	config.NewConfig(&config.Config{
		Scheme:  "https",
		Timeout: 5 * time.Second,
	})
}

func newTestServer(t *testing.T, deletes *int32) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == sessionPath:
			var body map[string]string
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			if body["UserName"] != "admin" || body["Password"] != "hunter2" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Header().Set("X-Auth-Token", testToken)
			w.Header().Set("Location", sessionPath+"/1")
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"Id": "1"}`))
		case r.Method == http.MethodDelete && r.URL.Path == sessionPath+"/1":
			atomic.AddInt32(deletes, 1)
			w.WriteHeader(http.StatusNoContent)
		case r.URL.Path == DefaultPrefix+"/Chassis/1/Thermal":
			if r.Header.Get("X-Auth-Token") != testToken {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Write([]byte(`{"Id": "Thermal", "Fans": [{"Name": "Fan 1", "Reading": 47, "ReadingUnits": "Percent"}]}`))
		case r.URL.Path == DefaultPrefix+"/Chassis/enclosurechassis/Thermal":
			// the shape iLO reports for a missing resource, HTTP 200
			w.Write([]byte(`{"error": {"code": "iLO.0.10.ExtendedInfo", "@Message.ExtendedInfo": [{"MessageId": "Base.1.4.ResourceMissingAtURI"}]}}`))
		case r.URL.Path == DefaultPrefix+"/Chassis/1/Garbage":
			w.Write([]byte("not json at all"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestLoginGetLogout(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	var deletes int32
	server := newTestServer(t, &deletes)
	defer server.Close()

	c := NewClient(server.URL, "admin", "hunter2", 5*time.Second)
	assert.False(c.LoggedIn())

	assert.NoError(c.Login(ctx))
	assert.True(c.LoggedIn())
	// login is idempotent once a session exists
	assert.NoError(c.Login(ctx))

	body, err := c.Get(ctx, "/Chassis/1/Thermal")
	assert.NoError(err)
	assert.Contains(string(body), "Fan 1")

	assert.NoError(c.Logout(ctx))
	assert.False(c.LoggedIn())
	// logout is released exactly once
	assert.NoError(c.Logout(ctx))
	assert.Equal(int32(1), atomic.LoadInt32(&deletes))
}

func TestLoginInvalidCredentials(t *testing.T) {
	assert := assert.New(t)

	var deletes int32
	server := newTestServer(t, &deletes)
	defer server.Close()

	c := NewClient(server.URL, "admin", "wrong", 5*time.Second)
	err := c.Login(context.Background())
	assert.ErrorIs(err, ErrInvalidCredentials)
	assert.False(c.LoggedIn())
}

func TestGetMasksPerRequestFailures(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	var deletes int32
	server := newTestServer(t, &deletes)
	defer server.Close()

	c := NewClient(server.URL, "admin", "hunter2", 5*time.Second)
	assert.NoError(c.Login(ctx))

	tests := []struct {
		name string
		path string
	}{
		{name: "error payload in 200 response", path: "/Chassis/enclosurechassis/Thermal"},
		{name: "malformed body", path: "/Chassis/1/Garbage"},
		{name: "missing resource", path: "/Chassis/1/DoesNotExist"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			body, err := c.Get(ctx, test.path)
			assert.ErrorIs(err, ErrNoContent)
			assert.Nil(body)
		})
	}
}

func TestGetTransportFailure(t *testing.T) {
	assert := assert.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from now on

	c := NewClient(server.URL, "admin", "hunter2", 1*time.Second)
	c.http.RetryMax = 0
	c.http.RetryWaitMin = 0
	c.http.RetryWaitMax = 0

	body, err := c.Get(context.Background(), "/Chassis/1/Thermal")
	assert.ErrorIs(err, ErrNoContent)
	assert.Nil(body)
}

func TestBareHostGetsScheme(t *testing.T) {
	assert := assert.New(t)

	c := NewClient("10.66.32.11", "admin", "hunter2", 5*time.Second)
	assert.Equal("10.66.32.11", c.Host())
	assert.Equal("https", c.base.Scheme)

	c = NewClient("http://10.66.32.11", "admin", "hunter2", 5*time.Second)
	assert.Equal("http", c.base.Scheme)
}

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

package redfish

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubManager is a tiny fake of a Redfish service tree. Responses are
// keyed by path, write requests are recorded for inspection.
type stubManager struct {
	mu        sync.Mutex
	responses map[string]map[string]interface{}
	requests  []recordedRequest
}

type recordedRequest struct {
	Method  string
	Path    string
	IfMatch string
	Body    map[string]interface{}
}

func newStubManager(gen10 bool) *stubManager {
	oemKey := "Hpe"
	if !gen10 {
		oemKey = "Hp"
	}

	return &stubManager{
		responses: map[string]map[string]interface{}{
			"/redfish/v1/": {
				"@odata.id": "/redfish/v1/",
				"Id":        "RootService",
				"Systems":   map[string]interface{}{"@odata.id": "/redfish/v1/Systems"},
				"Managers":  map[string]interface{}{"@odata.id": "/redfish/v1/Managers"},
				"Oem":       map[string]interface{}{oemKey: map[string]interface{}{}},
			},
			"/redfish/v1/Systems": {
				"@odata.id": "/redfish/v1/Systems",
				"Members": []interface{}{
					map[string]interface{}{"@odata.id": "/redfish/v1/Systems/1"},
				},
				"Members@odata.count": 1,
			},
			"/redfish/v1/Systems/1": {
				"@odata.id":  "/redfish/v1/Systems/1",
				"Id":         "1",
				"Name":       "Computer System",
				"PowerState": "On",
				"Bios":       map[string]interface{}{"@odata.id": "/redfish/v1/Systems/1/Bios/"},
			},
			"/redfish/v1/Systems/1/Bios/": {
				"@odata.id": "/redfish/v1/Systems/1/Bios/",
				"Id":        "Bios",
				"Name":      "BIOS Current Settings",
			},
			"/redfish/v1/Managers": {
				"@odata.id": "/redfish/v1/Managers",
				"Members": []interface{}{
					map[string]interface{}{"@odata.id": "/redfish/v1/Managers/1"},
				},
				"Members@odata.count": 1,
			},
			"/redfish/v1/Managers/1": {
				"@odata.id": "/redfish/v1/Managers/1",
				"Id":        "1",
			},
		},
	}
}

func (s *stubManager) set(path string, body map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[path] = body
}

func (s *stubManager) recorded() []recordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]recordedRequest(nil), s.requests...)
}

func (s *stubManager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.Method != http.MethodGet {
		rec := recordedRequest{
			Method:  r.Method,
			Path:    r.URL.Path,
			IfMatch: r.Header.Get(HTTP_HEADER_IF_MATCH),
		}
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &rec.Body)
		s.requests = append(s.requests, rec)
	}

	body, ok := s.responses[r.URL.Path]
	if !ok && r.Method == http.MethodGet {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	w.Header().Set(HTTP_HEADER_ETAG, `W/"12345"`)
	w.Header().Set("Content-Type", "application/json")
	if body == nil {
		body = map[string]interface{}{}
	}
	_ = json.NewEncoder(w).Encode(body)
}

func newTestClient(t *testing.T, stub *stubManager) *Client {
	t.Helper()

	server := httptest.NewServer(stub)
	t.Cleanup(server.Close)

	client, err := Connect(Config{
		Endpoint: server.URL,
		Username: "admin",
		Password: "secret",
		Insecure: true,
	})
	require.NoError(t, err)
	t.Cleanup(client.Logout)

	return client
}

func TestConnectValidation(t *testing.T) {
	_, err := Connect(Config{Username: "admin", Password: "x"})
	assert.Error(t, err)

	_, err = Connect(Config{Endpoint: "https://10.0.0.5"})
	assert.Error(t, err)
}

func TestGetWithETag(t *testing.T) {
	stub := newStubManager(true)
	stub.set("/redfish/v1/Systems/1/Bios/", map[string]interface{}{
		"Name": "Current BIOS Settings",
	})
	client := newTestClient(t, stub)

	body, etag, err := client.GetWithETag("/redfish/v1/Systems/1/Bios/")
	require.NoError(t, err)
	assert.Equal(t, "Current BIOS Settings", body["Name"])
	assert.Equal(t, `W/"12345"`, etag)
}

func TestGetStatusError(t *testing.T) {
	client := newTestClient(t, newStubManager(true))

	_, err := client.GetJSON("/redfish/v1/NoSuchThing")
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.Code)
}

func TestPatchWithETagSendsIfMatch(t *testing.T) {
	stub := newStubManager(true)
	stub.set("/redfish/v1/Systems/1/Bios/Settings", map[string]interface{}{})
	client := newTestClient(t, stub)

	err := client.PatchWithETag("/redfish/v1/Systems/1/Bios/Settings",
		map[string]interface{}{"Attributes": map[string]interface{}{"BootMode": "Uefi"}},
		`W/"abc"`)
	require.NoError(t, err)

	reqs := stub.recorded()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPatch, reqs[0].Method)
	assert.Equal(t, `W/"abc"`, reqs[0].IfMatch)
	assert.Contains(t, reqs[0].Body, "Attributes")
}

func TestPutWithETagSendsIfMatch(t *testing.T) {
	stub := newStubManager(true)
	stub.set("/redfish/v1/Systems/1/Bios/iScsi/Settings", map[string]interface{}{})
	client := newTestClient(t, stub)

	err := client.PutWithETag("/redfish/v1/Systems/1/Bios/iScsi/Settings",
		map[string]interface{}{"iSCSISources": []interface{}{}}, `W/"tok"`)
	require.NoError(t, err)

	reqs := stub.recorded()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPut, reqs[0].Method)
	assert.Equal(t, `W/"tok"`, reqs[0].IfMatch)
}

func TestIsGen10Detection(t *testing.T) {
	gen10 := newTestClient(t, newStubManager(true))
	assert.True(t, gen10.IsGen10())

	gen9 := newTestClient(t, newStubManager(false))
	assert.False(t, gen9.IsGen10())
	// cached second call
	assert.False(t, gen9.IsGen10())
}

func TestBiosTree(t *testing.T) {
	client := newTestClient(t, newStubManager(true))

	tree, err := client.BiosTree()
	require.NoError(t, err)

	// the BIOS path ends in a slash, derived paths keep that convention
	assert.Equal(t, "/redfish/v1/Systems/1/Bios/Settings/", tree.Settings)
	assert.Equal(t, "/redfish/v1/Systems/1/Bios/iScsi/", tree.Iscsi)
	assert.Equal(t, "/redfish/v1/Systems/1/Bios/iScsi/Settings/", tree.IscsiSettings)
	assert.Equal(t, "/redfish/v1/Systems/1/Bios/Boot/", tree.Boot)
	assert.Equal(t, "/redfish/v1/Systems/1/Bios/Mappings/", tree.Mappings)
	assert.Equal(t, "/redfish/v1/Systems/1/Bios/iScsi/BaseConfigs/", tree.BaseConfigs)
}

func TestLocatePrefersCurrentResource(t *testing.T) {
	stub := newStubManager(true)
	stub.set("/redfish/v1/Systems/1/Bios/iScsi/", map[string]interface{}{
		"Name":            "Current iSCSI Software Initiator",
		"iSCSINicSources": []interface{}{"NicBoot1"},
	})
	client := newTestClient(t, stub)

	res, err := client.Locate(SelectorSoftwareInitiator)
	require.NoError(t, err)
	assert.Equal(t, "/redfish/v1/Systems/1/Bios/iScsi/", res.Path)
	assert.Contains(t, res.Body, "iSCSINicSources")
}

func TestLocateUnknownSelector(t *testing.T) {
	client := newTestClient(t, newStubManager(true))

	_, err := client.Locate("HpeNoSuchType.")
	assert.ErrorIs(t, err, ErrResourceUnavailable)
}

func TestLocateUnansweredPath(t *testing.T) {
	stub := newStubManager(true)
	// no HttpsCert resource registered
	client := newTestClient(t, stub)

	_, err := client.Locate(SelectorHttpsCert)
	assert.ErrorIs(t, err, ErrResourceUnavailable)
}

func TestPciDevicesGen10Members(t *testing.T) {
	stub := newStubManager(true)
	stub.set("/redfish/v1/Systems/1/PCIDevices", map[string]interface{}{
		"Members": []interface{}{
			map[string]interface{}{"@odata.id": "/redfish/v1/Systems/1/PCIDevices/1"},
			map[string]interface{}{"@odata.id": "/redfish/v1/Systems/1/PCIDevices/2"},
		},
	})
	stub.set("/redfish/v1/Systems/1/PCIDevices/1", map[string]interface{}{"Name": "NIC A"})
	stub.set("/redfish/v1/Systems/1/PCIDevices/2", map[string]interface{}{"Name": "NIC B"})
	client := newTestClient(t, stub)

	devices, err := client.PciDevices()
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, "NIC A", devices[0]["Name"])
}

func TestPciDevicesGen9Items(t *testing.T) {
	stub := newStubManager(false)
	stub.set("/redfish/v1/Systems/1/PCIDevices", map[string]interface{}{
		"Items": []interface{}{
			map[string]interface{}{"Name": "Inline NIC"},
		},
	})
	client := newTestClient(t, stub)

	devices, err := client.PciDevices()
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "Inline NIC", devices[0]["Name"])
}

func TestBiosSnapshotUnwrapsAttributes(t *testing.T) {
	stub := newStubManager(true)
	stub.set("/redfish/v1/Systems/1/Bios/Boot/", map[string]interface{}{
		"Attributes": map[string]interface{}{"NicBoot1": "Disabled"},
	})
	client := newTestClient(t, stub)

	snapshot, err := client.BiosSnapshot("/redfish/v1/Systems/1/Bios/Boot/")
	require.NoError(t, err)
	assert.Equal(t, "Disabled", snapshot["NicBoot1"])
}

func TestJoinPath(t *testing.T) {
	assert.Equal(t, "/rest/v1/systems/1/bios/Boot/", JoinPath("/rest/v1/systems/1/bios/", "Boot"))
	assert.Equal(t, "/redfish/v1/Systems/1/Bios/Boot", JoinPath("/redfish/v1/Systems/1/Bios", "Boot"))
}

func TestRemarshal(t *testing.T) {
	src := map[string]interface{}{"UEFIDevicePath": "path-1", "DeviceInstance": float64(2)}

	var out struct {
		UEFIDevicePath string `json:"UEFIDevicePath"`
		DeviceInstance int    `json:"DeviceInstance"`
	}
	require.NoError(t, Remarshal(src, &out))
	assert.Equal(t, "path-1", out.UEFIDevicePath)
	assert.Equal(t, 2, out.DeviceInstance)
}

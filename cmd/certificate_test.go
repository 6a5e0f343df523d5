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

package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnrollmentPathFromLink(t *testing.T) {
	stub := newBmcStub()
	stub.set("/redfish/v1/Managers/1/SecurityService", map[string]interface{}{
		"Name": "Security Service",
		"Links": map[string]interface{}{
			"AutomaticCertificateEnrollment": map[string]interface{}{
				"@odata.id": "/redfish/v1/Managers/1/SecurityService/ACE",
			},
		},
	})
	client := newStubClient(t, stub)

	path, err := enrollmentPath(client)
	require.NoError(t, err)
	assert.Equal(t, "/redfish/v1/Managers/1/SecurityService/ACE", path)
}

func TestEnrollmentPathFallback(t *testing.T) {
	stub := newBmcStub()
	// security service without an enrollment link
	stub.set("/redfish/v1/Managers/1/SecurityService", map[string]interface{}{
		"Name": "Security Service",
	})
	client := newStubClient(t, stub)

	path, err := enrollmentPath(client)
	require.NoError(t, err)
	// the derived path gets a proper separator between the segments
	assert.Equal(t, "/redfish/v1/Managers/1/SecurityService/AutomaticCertificateEnrollment", path)
}

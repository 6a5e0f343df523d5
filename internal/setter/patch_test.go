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

package setter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePatch(t *testing.T) {
	tests := []struct {
		name  string
		token string
		bios  bool
		want  map[string]interface{}
	}{
		{
			name:  "single level",
			token: "AssetTag=rack12",
			want:  map[string]interface{}{"AssetTag": "rack12"},
		},
		{
			name:  "multi level",
			token: "a/b/c=5",
			want: map[string]interface{}{
				"a": map[string]interface{}{
					"b": map[string]interface{}{"c": "5"},
				},
			},
		},
		{
			name:  "boolean coercion",
			token: "ServiceEnabled=True",
			want:  map[string]interface{}{"ServiceEnabled": true},
		},
		{
			name:  "boolean false case insensitive",
			token: "ServiceEnabled=FALSE",
			want:  map[string]interface{}{"ServiceEnabled": false},
		},
		{
			name:  "quoted value",
			token: `AdminName="John Doe"`,
			want:  map[string]interface{}{"AdminName": "John Doe"},
		},
		{
			name:  "whole token quoted",
			token: `"AdminName=John Doe"`,
			want:  map[string]interface{}{"AdminName": "John Doe"},
		},
		{
			name:  "list literal",
			token: "BootOrder=[Pxe,Hdd,Cd]",
			want:  map[string]interface{}{"BootOrder": []string{"Pxe", "Hdd", "Cd"}},
		},
		{
			name:  "empty value",
			token: "AssetTag=",
			want:  map[string]interface{}{"AssetTag": ""},
		},
		{
			name:  "bios path gets attribute container",
			token: "BootMode=Uefi",
			bios:  true,
			want: map[string]interface{}{
				"Attributes": map[string]interface{}{"BootMode": "Uefi"},
			},
		},
		{
			name:  "bios path already containing container is kept",
			token: "Attributes/BootMode=Uefi",
			bios:  true,
			want: map[string]interface{}{
				"Attributes": map[string]interface{}{"BootMode": "Uefi"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Parse(tt.token, tt.bios)
			require.NoError(t, err)
			assert.Equal(t, tt.want, a.Patch())
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, token := range []string{"NoEqualsSign", "=value", "   =value", ""} {
		_, err := Parse(token, false)
		assert.ErrorIs(t, err, ErrInvalidParameter, "token %q", token)
	}
}

func TestParsePatchDeterministic(t *testing.T) {
	a1, err := Parse("Oem/Hpe/Thing=1", false)
	require.NoError(t, err)
	a2, err := Parse("Oem/Hpe/Thing=1", false)
	require.NoError(t, err)

	assert.Equal(t, a1.Patch(), a2.Patch())
}

func TestParseListNoCommaEscape(t *testing.T) {
	// Commas inside list elements cannot be escaped; the split is plain.
	a, err := Parse(`Targets=[a\,b,c]`, false)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"Targets": []string{`a\`, "b", "c"}}, a.Patch())
}

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

package iscsi

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssociationUnmarshal(t *testing.T) {
	// The association list mixes plain strings with one-key objects.
	raw := `{
		"CorrelatableID": "PciRoot(0x0)/Pci(0x2,0x2)/Pci(0x0,0x0)",
		"Associations": [{"PreBootNetwork": "PreBootNetwork1"}, "NicBoot1", "EmbNicConfig"]
	}`

	var m Mapping
	require.NoError(t, json.Unmarshal([]byte(raw), &m))

	require.Len(t, m.Associations, 3)
	assert.True(t, m.Associations[0].IsObject())
	assert.Equal(t, "PreBootNetwork1", m.Associations[0].PreBootNetwork)
	assert.False(t, m.Associations[1].IsObject())
	assert.Equal(t, "NicBoot1", m.Associations[1].Name)

	assert.Equal(t, "PreBootNetwork1", m.PrimaryKey())
	assert.Equal(t, "NicBoot1", m.BootSourceKey())
}

func TestAssociationMarshalRoundTrip(t *testing.T) {
	in := []Association{{PreBootNetwork: "PreBoot1"}, {Name: "NicBoot1"}}

	raw, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"PreBootNetwork":"PreBoot1"},"NicBoot1"]`, string(raw))
}

func TestAssociationUnmarshalRejectsOther(t *testing.T) {
	var a Association
	assert.Error(t, json.Unmarshal([]byte(`42`), &a))
}

func TestMappingKeysPlainForm(t *testing.T) {
	m := Mapping{Associations: []Association{{Name: "NicBoot2"}}}

	// Without a leading object both keys resolve to element 0.
	assert.Equal(t, "NicBoot2", m.PrimaryKey())
	assert.Equal(t, "NicBoot2", m.BootSourceKey())
}

func TestMappingKeysDegenerate(t *testing.T) {
	assert.Empty(t, Mapping{}.PrimaryKey())
	assert.Empty(t, Mapping{}.BootSourceKey())

	// object-only association list has no comparable boot source key
	m := Mapping{Associations: []Association{{PreBootNetwork: "PreBoot1"}}}
	assert.Equal(t, "PreBoot1", m.PrimaryKey())
	assert.Empty(t, m.BootSourceKey())
}

func TestRecordInstance(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  int
	}{
		{"json float", float64(3), 3},
		{"int", 4, 4},
		{"json.Number", json.Number("5"), 5},
		{"numeric string", "6", 6},
		{"garbage string", "abc", 0},
		{"nil value", nil, 0},
		{"bool value", true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Record{Gen9Keys.AttemptInstance: tt.value}
			assert.Equal(t, tt.want, r.Instance(Gen9Keys))
		})
	}

	assert.Equal(t, 0, Record{}.Instance(Gen9Keys))
}

func TestKeysForGeneration(t *testing.T) {
	assert.Equal(t, "iSCSISources", KeysForGeneration(true).Source)
	assert.Equal(t, "iSCSIBootSources", KeysForGeneration(false).Source)
	// the NIC source property kept its name across generations
	assert.Equal(t, KeysForGeneration(true).NicSource, KeysForGeneration(false).NicSource)
}

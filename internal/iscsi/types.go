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
	"fmt"
)

// Keys holds the vendor property names of the iSCSI boot source entries,
// which differ between schema generations.
type Keys struct {
	Source          string
	AttemptInstance string
	AttemptName     string
	NicSource       string
}

var (
	Gen10Keys = Keys{
		Source:          "iSCSISources",
		AttemptInstance: "iSCSIAttemptInstance",
		AttemptName:     "iSCSIAttemptName",
		NicSource:       "iSCSINicSource",
	}

	Gen9Keys = Keys{
		Source:          "iSCSIBootSources",
		AttemptInstance: "iSCSIBootAttemptInstance",
		AttemptName:     "iSCSIBootAttemptName",
		NicSource:       "iSCSINicSource",
	}
)

// KeysForGeneration returns property names matching given schema generation.
func KeysForGeneration(gen10 bool) Keys {
	if gen10 {
		return Gen10Keys
	}
	return Gen9Keys
}

// Record is a single boot source entry exactly as returned by the
// settings resource. Entries carry many target properties besides the
// attempt bookkeeping ones, so unknown properties must survive a
// read-modify-write cycle untouched.
type Record map[string]interface{}

// Instance returns the attempt instance number of the record or 0 when
// the slot is not configured.
func (r Record) Instance(keys Keys) int {
	v, ok := r[keys.AttemptInstance]
	if !ok || v == nil {
		return 0
	}

	switch val := v.(type) {
	case float64:
		return int(val)
	case int:
		return val
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return 0
		}
		return int(n)
	case string:
		var n int
		if _, err := fmt.Sscanf(val, "%d", &n); err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// NicSource returns the NIC source identifier of the record, empty for
// an unconfigured slot.
func (r Record) NicSource(keys Keys) string {
	if v, ok := r[keys.NicSource].(string); ok {
		return v
	}
	return ""
}

// Association is one element of a BIOS PCI settings mapping association
// list. The element is either a plain identifier string or a one-key
// object of form {"PreBootNetwork": "<identifier>"}.
type Association struct {
	Name           string
	PreBootNetwork string
}

func (a *Association) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		a.Name = s
		a.PreBootNetwork = ""
		return nil
	}

	var obj map[string]string
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("association entry is neither string nor object: %w", err)
	}

	a.Name = ""
	a.PreBootNetwork = obj["PreBootNetwork"]
	return nil
}

func (a Association) MarshalJSON() ([]byte, error) {
	if a.IsObject() {
		return json.Marshal(map[string]string{"PreBootNetwork": a.PreBootNetwork})
	}
	return json.Marshal(a.Name)
}

// IsObject reports whether the element came in the {"PreBootNetwork": x} form.
func (a Association) IsObject() bool {
	return a.PreBootNetwork != ""
}

// Mapping is one BIOS PCI settings mapping entry (or one of its
// subinstances after flattening).
type Mapping struct {
	CorrelatableID string        `json:"CorrelatableID"`
	Associations   []Association `json:"Associations"`
	Subinstances   []Mapping     `json:"Subinstances,omitempty"`
}

// PrimaryKey resolves the association key used for BIOS-disabled lookups:
// the PreBootNetwork value when element 0 is an object, the element
// itself otherwise.
func (m Mapping) PrimaryKey() string {
	if len(m.Associations) == 0 {
		return ""
	}
	if m.Associations[0].IsObject() {
		return m.Associations[0].PreBootNetwork
	}
	return m.Associations[0].Name
}

// BootSourceKey resolves the association value compared against a boot
// source's NIC source property. When element 0 is an object the
// comparable identifier lives at element 1.
func (m Mapping) BootSourceKey() string {
	if len(m.Associations) == 0 {
		return ""
	}
	idx := 0
	if m.Associations[0].IsObject() {
		idx = 1
	}
	if idx >= len(m.Associations) {
		return ""
	}
	return m.Associations[idx].Name
}

// Device is a discovered PCI function from the server device inventory.
type Device struct {
	UEFIDevicePath    string `json:"UEFIDevicePath"`
	DeviceType        string `json:"DeviceType"`
	DeviceInstance    int    `json:"DeviceInstance"`
	DeviceSubInstance int    `json:"DeviceSubInstance"`
	Name              string `json:"Name"`
	StructuredName    string `json:"StructuredName"`
}

// Label builds the operator facing display string of the device.
func (d Device) Label() string {
	name := d.Name
	if name == "" {
		name = d.StructuredName
	}
	return fmt.Sprintf("%s %d Port %d : %s", d.DeviceType, d.DeviceInstance, d.DeviceSubInstance, name)
}

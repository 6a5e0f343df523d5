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
	"errors"
	"regexp"
)

// ErrNicSourceUnavailable is returned when the iSCSI initiator resource
// exposes no NIC sources at all.
var ErrNicSourceUnavailable = errors.New("no iSCSI NIC sources available")

// Patterns of association keys marking a slot based NIC eligible for
// iSCSI boot. Matching is anchored at the start only.
var (
	flexLomPattern  = regexp.MustCompile(`^FlexLom[0-9]+Enable`)
	pciSlotPattern  = regexp.MustCompile(`^PciSlot[0-9]+Enable`)
	slotNicPattern  = regexp.MustCompile(`^Slot[0-9]+NicBoot[0-9]+`)
	embeddedToggles = []string{"EmbNicEnable", "EmbNicConfig"}
)

const disabledValue = "Disabled"

// CollectCandidates walks the BIOS PCI settings mappings and flattens
// the subinstances of every entry describing an embedded or slot NIC
// into the working candidate set, in mapping order.
func CollectCandidates(mappings []Mapping) []Mapping {
	var candidates []Mapping

	for _, mapping := range mappings {
		if len(mapping.Associations) == 0 {
			continue
		}

		if containsEmbeddedToggle(mapping.Associations) {
			candidates = append(candidates, mapping.Subinstances...)
		}

		first := mapping.Associations[0]
		if first.IsObject() {
			continue
		}

		if flexLomPattern.MatchString(first.Name) ||
			pciSlotPattern.MatchString(first.Name) ||
			slotNicPattern.MatchString(first.Name) {
			candidates = append(candidates, mapping.Subinstances...)
		}
	}

	return candidates
}

func containsEmbeddedToggle(associations []Association) bool {
	for _, a := range associations {
		if a.IsObject() {
			continue
		}
		for _, toggle := range embeddedToggles {
			if a.Name == toggle {
				return true
			}
		}
	}
	return false
}

// Partition splits candidates into those still available for iSCSI boot
// and those whose primary association key is switched to "Disabled" in
// the current BIOS settings snapshot. A key absent from the snapshot
// leaves the candidate available. Both results preserve input order and
// the input slice is left untouched.
func Partition(candidates []Mapping, bios map[string]interface{}) (available, disabled []Mapping) {
	for _, candidate := range candidates {
		key := candidate.PrimaryKey()

		if value, ok := bios[key]; ok && key != "" && value == disabledValue {
			disabled = append(disabled, candidate)
		} else {
			available = append(available, candidate)
		}
	}

	return available, disabled
}

// Correlate joins candidates to discovered PCI devices over
// CorrelatableID == UEFIDevicePath and returns the candidates with a
// physical counterpart, in candidate order. This order defines the
// 1-based selection index the operator passes to the add operation.
func Correlate(candidates []Mapping, devices []Device) []Mapping {
	var out []Mapping
	for _, candidate := range candidates {
		for _, device := range devices {
			if candidate.CorrelatableID == device.UEFIDevicePath {
				out = append(out, candidate)
				break
			}
		}
	}
	return out
}

// DeviceFor resolves the PCI device correlated with the candidate.
func DeviceFor(candidate Mapping, devices []Device) (Device, bool) {
	for _, device := range devices {
		if candidate.CorrelatableID == device.UEFIDevicePath {
			return device, true
		}
	}
	return Device{}, false
}

// AttemptForSource finds the boot source record whose NIC source matches
// the candidate's boot source key.
func AttemptForSource(records []Record, keys Keys, candidate Mapping) (Record, bool) {
	want := candidate.BootSourceKey()
	if want == "" {
		return nil, false
	}
	for _, record := range records {
		if record.NicSource(keys) == want {
			return record, true
		}
	}
	return nil, false
}

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
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// Selectors of the vendor resource types the commands work with.
const (
	SelectorSoftwareInitiator = "HpeiSCSISoftwareInitiator."
	SelectorBootSettings      = "HpeServerBootSettings."
	SelectorBiosMappings      = "HpeBiosMapping."
	SelectorBaseConfigs       = "HpeBaseConfigs."
	SelectorPciDevices        = "HpeServerPciDeviceCollection."
	SelectorSecurityService   = "HpeSecurityService."
	SelectorHttpsCert         = "HpeHttpsCert."
	SelectorBackupService     = "HpeiLOBackupRestoreService."
)

// Resource is the canonical path and current body of a located type.
type Resource struct {
	Path string
	Body map[string]interface{}
}

// BiosTree holds the resolved paths of the BIOS rooted resources used
// by the iSCSI configuration flow.
type BiosTree struct {
	Settings      string
	Iscsi         string
	IscsiSettings string
	Boot          string
	Mappings      string
	BaseConfigs   string
}

// Locate resolves a selector to the current canonical resource. When
// several candidates answer, a body whose Name mentions "current" wins,
// matching the settings/current split of the vendor schema.
func (c *Client) Locate(selector string) (*Resource, error) {
	candidates, err := c.candidatePaths(selector)
	if err != nil {
		return nil, err
	}

	var fallback *Resource
	for _, path := range candidates {
		body, getErr := c.GetJSON(path)
		if getErr != nil {
			log.Debug().Str("selector", selector).Str("path", path).Msg("candidate path did not answer")
			continue
		}

		res := &Resource{Path: path, Body: body}
		if name, ok := body["Name"].(string); ok && strings.Contains(strings.ToLower(name), "current") {
			return res, nil
		}
		if fallback == nil {
			fallback = res
		}
	}

	if fallback != nil {
		return fallback, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrResourceUnavailable, selector)
}

// BiosTree derives the iSCSI, boot and mapping paths from the system's
// BIOS resource. The older schema generation nests them as plain path
// suffixes under the BIOS path, preserving its trailing slash form; the
// newer one exposes the same layout under the BIOS current resource.
func (c *Client) BiosTree() (BiosTree, error) {
	biosPath, err := c.biosPath()
	if err != nil {
		return BiosTree{}, err
	}

	tree := BiosTree{
		Settings:    JoinPath(biosPath, "Settings"),
		Iscsi:       JoinPath(biosPath, "iScsi"),
		Boot:        JoinPath(biosPath, "Boot"),
		Mappings:    JoinPath(biosPath, "Mappings"),
		BaseConfigs: JoinPath(JoinPath(biosPath, "iScsi"), "BaseConfigs"),
	}
	tree.IscsiSettings = JoinPath(tree.Iscsi, "Settings")
	return tree, nil
}

func (c *Client) biosPath() (string, error) {
	system, err := c.System()
	if err != nil {
		return "", err
	}

	bios, err := system.Bios()
	if err != nil || bios == nil {
		return "", fmt.Errorf("%w: BIOS resource", ErrResourceUnavailable)
	}
	return bios.ODataID, nil
}

func (c *Client) managerPath() (string, error) {
	managers, err := c.service.Managers()
	if err != nil || len(managers) == 0 {
		return "", fmt.Errorf("%w: manager resource", ErrResourceUnavailable)
	}
	return managers[0].ODataID, nil
}

func (c *Client) candidatePaths(selector string) ([]string, error) {
	switch selector {
	case SelectorSoftwareInitiator, SelectorBootSettings, SelectorBiosMappings, SelectorBaseConfigs:
		tree, err := c.BiosTree()
		if err != nil {
			return nil, err
		}
		switch selector {
		case SelectorSoftwareInitiator:
			return []string{tree.Iscsi}, nil
		case SelectorBootSettings:
			return []string{tree.Boot}, nil
		case SelectorBiosMappings:
			return []string{tree.Mappings}, nil
		default:
			return []string{tree.BaseConfigs}, nil
		}

	case SelectorPciDevices:
		system, err := c.System()
		if err != nil {
			return nil, err
		}
		return []string{JoinPath(system.ODataID, "PCIDevices")}, nil

	case SelectorSecurityService, SelectorHttpsCert, SelectorBackupService:
		manager, err := c.managerPath()
		if err != nil {
			return nil, err
		}
		switch selector {
		case SelectorSecurityService:
			return []string{JoinPath(manager, "SecurityService")}, nil
		case SelectorHttpsCert:
			return []string{JoinPath(JoinPath(manager, "SecurityService"), "HttpsCert")}, nil
		default:
			return []string{JoinPath(manager, "BackupRestoreService")}, nil
		}
	}

	return nil, fmt.Errorf("%w: unknown selector %s", ErrResourceUnavailable, selector)
}

// PciDevices enumerates the discovered PCI functions. The newer schema
// generation links them as collection members fetched one by one, the
// older one inlines them as Items.
func (c *Client) PciDevices() ([]map[string]interface{}, error) {
	collection, err := c.Locate(SelectorPciDevices)
	if err != nil {
		return nil, err
	}

	if members, ok := collection.Body["Members"].([]interface{}); ok && c.IsGen10() {
		devices := make([]map[string]interface{}, 0, len(members))
		for _, member := range members {
			link, ok := member.(map[string]interface{})
			if !ok {
				continue
			}
			ref, ok := link["@odata.id"].(string)
			if !ok {
				continue
			}
			body, err := c.GetJSON(ref)
			if err != nil {
				return nil, err
			}
			devices = append(devices, body)
		}
		return devices, nil
	}

	if items, ok := collection.Body["Items"].([]interface{}); ok {
		devices := make([]map[string]interface{}, 0, len(items))
		for _, item := range items {
			if body, ok := item.(map[string]interface{}); ok {
				devices = append(devices, body)
			}
		}
		return devices, nil
	}

	return nil, fmt.Errorf("%w: PCI device inventory", ErrResourceUnavailable)
}

// BiosSnapshot returns the current BIOS setting name to value mapping
// read from the boot settings resource. The newer generation nests the
// settings under an Attributes container.
func (c *Client) BiosSnapshot(bootPath string) (map[string]interface{}, error) {
	body, err := c.GetJSON(bootPath)
	if err != nil {
		return nil, err
	}

	if attributes, ok := body["Attributes"].(map[string]interface{}); ok {
		return attributes, nil
	}
	return body, nil
}

// JoinPath appends a segment to a resource path, keeping the trailing
// slash convention of the base: a base ending in "/" yields a result
// ending in "/" as well.
func JoinPath(base, segment string) string {
	if strings.HasSuffix(base, "/") {
		return base + segment + "/"
	}
	return base + "/" + segment
}

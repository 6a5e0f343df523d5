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
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"ilo-redfish-cli/internal/iscsi"
	"ilo-redfish-cli/internal/redfish"
)

var iscsiConfigCmd = &cobra.Command{
	Use:   "iscsiconfig",
	Short: "Display and configure the iSCSI boot attempts of the server",
	Long: "Run without arguments to show the NIC sources available for iSCSI\n" +
		"configuration.\n\n" +
		"Display the current configuration:   ilorcli iscsiconfig --list\n" +
		"Save it to a file:                   ilorcli iscsiconfig --list -f out.json\n" +
		"Add an attempt on the first NIC:     ilorcli iscsiconfig --add 1\n" +
		"Delete attempt instance 1:           ilorcli iscsiconfig --delete 1\n" +
		"Apply a saved configuration:         ilorcli iscsiconfig --modify out.json",
	Args: cobra.NoArgs,
	RunE: runIscsiConfig,
}

var (
	iscsiList     bool
	iscsiAdd      int
	iscsiDelete   int
	iscsiModify   string
	iscsiFilename string
	iscsiReboot   string
)

func init() {
	iscsiConfigCmd.Flags().BoolVar(&iscsiList, "list", false, "list the currently configured iSCSI boot attempts")
	iscsiConfigCmd.Flags().IntVar(&iscsiAdd, "add", 0, "add a boot attempt on the NIC with the given 1-based index")
	iscsiConfigCmd.Flags().IntVar(&iscsiDelete, "delete", 0, "delete the boot attempt with the given attempt instance")
	iscsiConfigCmd.Flags().StringVar(&iscsiModify, "modify", "", "apply boot attempt modifications from the given file")
	iscsiConfigCmd.Flags().StringVarP(&iscsiFilename, "filename", "f", "", "write results to the given file instead of the console")
	iscsiConfigCmd.Flags().StringVar(&iscsiReboot, "reboot", "", "perform the given reset type after the operation, e.g. ForceRestart")

	rootCmd.AddCommand(iscsiConfigCmd)
}

// iscsiSession bundles the connection with the resolved BIOS paths and
// the generation dependent property names.
type iscsiSession struct {
	client *redfish.Client
	tree   redfish.BiosTree
	keys   iscsi.Keys
}

func runIscsiConfig(cmd *cobra.Command, args []string) error {
	client, err := connect()
	if err != nil {
		return err
	}
	defer client.Logout()

	tree, err := client.BiosTree()
	if err != nil {
		return err
	}

	s := &iscsiSession{
		client: client,
		tree:   tree,
		keys:   iscsi.KeysForGeneration(client.IsGen10()),
	}

	out := cmd.OutOrStdout()
	switch {
	case iscsiList:
		err = s.list(out)
	case iscsiModify != "":
		err = s.modify(iscsiModify)
	case iscsiAdd != 0:
		err = s.add(iscsiAdd)
	case iscsiDelete != 0:
		err = s.delete(iscsiDelete)
	default:
		err = s.showSources(out)
	}
	if err != nil {
		return err
	}

	return maybeReboot(client, iscsiReboot)
}

// candidates collects the NIC candidate set from the BIOS PCI settings
// mappings and verifies the initiator resource exposes NIC sources.
func (s *iscsiSession) candidates() ([]iscsi.Mapping, error) {
	body, err := s.client.GetJSON(s.tree.Mappings)
	if err != nil {
		return nil, err
	}

	var mappings []iscsi.Mapping
	if err := redfish.Remarshal(body["BiosPciSettingsMappings"], &mappings); err != nil {
		return nil, fmt.Errorf("decoding BIOS PCI settings mappings failed: %w", err)
	}

	initiator, err := s.client.GetJSON(s.tree.Iscsi)
	if err != nil {
		return nil, iscsi.ErrNicSourceUnavailable
	}
	if _, ok := initiator["iSCSINicSources"]; !ok {
		return nil, iscsi.ErrNicSourceUnavailable
	}

	return iscsi.CollectCandidates(mappings), nil
}

func (s *iscsiSession) devices() ([]iscsi.Device, error) {
	raw, err := s.client.PciDevices()
	if err != nil {
		return nil, err
	}

	var devices []iscsi.Device
	if err := redfish.Remarshal(raw, &devices); err != nil {
		return nil, fmt.Errorf("decoding PCI device inventory failed: %w", err)
	}
	return devices, nil
}

func (s *iscsiSession) partitioned() (available, disabled []iscsi.Mapping, err error) {
	candidates, err := s.candidates()
	if err != nil {
		return nil, nil, err
	}

	snapshot, err := s.client.BiosSnapshot(s.tree.Boot)
	if err != nil {
		return nil, nil, err
	}

	available, disabled = iscsi.Partition(candidates, snapshot)
	return available, disabled, nil
}

// bootSources fetches the current boot source records together with the
// concurrency token of the settings resource.
func (s *iscsiSession) bootSources() (body map[string]interface{}, records []iscsi.Record, etag string, err error) {
	body, etag, err = s.client.GetWithETag(s.tree.IscsiSettings)
	if err != nil {
		return nil, nil, "", err
	}

	if err := redfish.Remarshal(body[s.keys.Source], &records); err != nil {
		return nil, nil, "", fmt.Errorf("decoding iSCSI boot sources failed: %w", err)
	}
	if records == nil {
		return nil, nil, "", fmt.Errorf("no entries found for iSCSI boot sources")
	}
	return body, records, etag, nil
}

// add configures a new boot attempt on the NIC selected by its 1-based
// index in the correlated candidate list.
func (s *iscsiSession) add(index int) error {
	available, _, err := s.partitioned()
	if err != nil {
		return err
	}

	devices, err := s.devices()
	if err != nil {
		return err
	}

	final := iscsi.Correlate(available, devices)
	if index < 1 || index > len(final) {
		return fmt.Errorf("invalid NIC index %d, pick one of 1..%d shown by 'iscsiconfig'", index, len(final))
	}

	_, records, _, err := s.bootSources()
	if err != nil {
		return err
	}

	if _, err := iscsi.ApplyAdd(records, s.keys, final[index-1]); err != nil {
		return fmt.Errorf("failed to add NIC: %w", err)
	}

	return s.client.Patch(s.tree.IscsiSettings, map[string]interface{}{s.keys.Source: records})
}

// delete clears a boot attempt by replacing its record with the base
// configuration default, guarded by the settings resource concurrency
// token read together with the records.
func (s *iscsiSession) delete(instance int) error {
	defaults, err := s.baseConfigDefaults()
	if err != nil {
		return err
	}

	body, records, etag, err := s.bootSources()
	if err != nil {
		return err
	}

	rewritten, err := iscsi.ApplyDelete(records, s.keys, defaults, instance)
	if err != nil {
		return err
	}

	body[s.keys.Source] = rewritten
	return s.client.PutWithETag(s.tree.IscsiSettings, body, etag)
}

// baseConfigDefaults reads the factory default boot source records from
// the base configuration resource.
func (s *iscsiSession) baseConfigDefaults() ([]iscsi.Record, error) {
	res, err := s.client.Locate(redfish.SelectorBaseConfigs)
	if err != nil {
		return nil, fmt.Errorf("could not access base configurations: %w", err)
	}

	entries, ok := res.Body["BaseConfigs"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("could not access base configurations")
	}

	for _, entry := range entries {
		config, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		defaults, ok := config["default"].(map[string]interface{})
		if !ok {
			continue
		}
		if raw, ok := defaults[s.keys.Source]; ok {
			var records []iscsi.Record
			if err := redfish.Remarshal(raw, &records); err != nil {
				return nil, err
			}
			return records, nil
		}
	}

	return nil, fmt.Errorf("base configurations carry no default for %s", s.keys.Source)
}

// list prints the configured attempts grouped by device and port, in
// the structured form also accepted back by --modify.
//
// A configured record whose NIC has since been BIOS-disabled or lost
// its physical counterpart produces no entry here, so a --modify built
// from the output carries fewer source entries than the settings
// resource holds. Known limitation of the file format.
func (s *iscsiSession) list(out io.Writer) error {
	available, _, err := s.partitioned()
	if err != nil {
		return err
	}

	devices, err := s.devices()
	if err != nil {
		return err
	}

	_, records, _, err := s.bootSources()
	if err != nil {
		return err
	}

	structured := make([]map[string]interface{}, 0, len(records))
	for _, record := range records {
		source := record.NicSource(s.keys)
		if source == "" {
			structured = append(structured, map[string]interface{}{"Not Added": map[string]interface{}{}})
			continue
		}

		for _, candidate := range available {
			if candidate.BootSourceKey() != source {
				continue
			}
			device, ok := iscsi.DeviceFor(candidate, devices)
			if !ok {
				continue
			}
			attempt := fmt.Sprintf("Attempt %d", record.Instance(s.keys))
			structured = append(structured, map[string]interface{}{
				device.Label(): map[string]interface{}{attempt: record},
			})
		}
	}

	if iscsiFilename == "" {
		fmt.Fprintln(out, "Current iSCSI Attempts:")
	}
	return writeResult(out, structured, iscsiFilename)
}

// showSources prints the initiator name and the NIC candidates, first
// the ones available for new attempts, then the BIOS disabled ones.
func (s *iscsiSession) showSources(out io.Writer) error {
	initiator, err := s.client.GetJSON(s.tree.Iscsi)
	if err != nil {
		return iscsi.ErrNicSourceUnavailable
	}

	available, disabled, err := s.partitioned()
	if err != nil {
		return err
	}

	devices, err := s.devices()
	if err != nil {
		return err
	}

	if name, ok := initiator["iSCSIInitiatorName"].(string); ok {
		fmt.Fprintf(out, "Iscsi Initiator Name: %s\n\n", name)
	}

	fmt.Fprintln(out, "Available iSCSI Boot Network Interfaces:")
	count := 1
	for _, candidate := range iscsi.Correlate(available, devices) {
		device, _ := iscsi.DeviceFor(candidate, devices)
		fmt.Fprintf(out, "[%d] %s\n", count, device.Label())
		count++
	}

	correlatedDisabled := iscsi.Correlate(disabled, devices)
	if len(correlatedDisabled) > 0 {
		fmt.Fprintln(out, "\nDisabled iSCSI Boot Network Interfaces:")
		for _, candidate := range correlatedDisabled {
			device, _ := iscsi.DeviceFor(candidate, devices)
			fmt.Fprintf(out, "[Disabled] %s\n", device.Label())
		}
	}

	return nil
}

// modify applies a structured attempt list saved by --list -f back to
// the settings resource.
func (s *iscsiSession) modify(filename string) error {
	raw, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("could not read modification file: %w", err)
	}

	var structured []map[string]map[string]iscsi.Record
	if err := json.Unmarshal(raw, &structured); err != nil {
		return fmt.Errorf("could not parse modification file: %w", err)
	}

	_, records, _, err := s.bootSources()
	if err != nil {
		return err
	}

	results := make([]iscsi.Record, 0, len(records))
	for i, item := range structured {
		entered := false
		for _, entry := range item {
			for key, value := range entry {
				entered = true
				replacement, err := s.matchAttempt(key, value, records)
				if err != nil {
					return err
				}
				results = append(results, replacement)
			}
		}
		if !entered && i < len(records) {
			results = append(results, records[i])
		}
	}

	return s.client.Patch(s.tree.IscsiSettings, map[string]interface{}{s.keys.Source: results})
}

// matchAttempt verifies the "Attempt N" key of a modification entry
// still names a configured attempt and returns the replacement record.
func (s *iscsiSession) matchAttempt(key string, value iscsi.Record, records []iscsi.Record) (iscsi.Record, error) {
	numeric := strings.TrimPrefix(key, "Attempt ")
	instance, err := strconv.Atoi(numeric)
	if err != nil {
		return nil, fmt.Errorf("unexpected attempt key %q in modification file", key)
	}

	for _, record := range records {
		if record.Instance(s.keys) == instance {
			return value, nil
		}
	}
	return nil, fmt.Errorf("%w: attempt %d", iscsi.ErrAttemptNotFound, instance)
}

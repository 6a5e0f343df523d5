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
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ilo-redfish-cli/internal/redfish"
	"ilo-redfish-cli/internal/setter"
)

var setCmd = &cobra.Command{
	Use:   "set property=value ...",
	Short: "Change property values on the selected resource type",
	Long: "Setting a single level property:     ilorcli set property=value\n" +
		"Setting several properties at once:  ilorcli set a=1 b=2 c=3\n" +
		"Setting a multi level property:      ilorcli set property/subproperty=value\n\n" +
		"The computed patch is submitted whole, or not at all.",
	Args: cobra.MinimumNArgs(1),
	RunE: runSet,
}

var (
	setSelector string
	setFilter   string
	setReboot   string
)

func init() {
	setCmd.Flags().StringVar(&setSelector, "selector", "Bios.", "resource type to run the set operation on")
	setCmd.Flags().StringVar(&setFilter, "filter", "", "only apply when the target matches [attribute]=[value]")
	setCmd.Flags().StringVar(&setReboot, "reboot", "", "perform the given reset type after the operation")

	rootCmd.AddCommand(setCmd)
}

func runSet(cmd *cobra.Command, args []string) error {
	if err := checkAdminPasswordTokens(args); err != nil {
		return err
	}

	client, err := connect()
	if err != nil {
		return err
	}
	defer client.Logout()

	selector := setSelector
	if !strings.Contains(selector, ".") {
		selector += "."
	}
	biosSelected := strings.HasPrefix(strings.ToLower(selector), "bios.")

	path, err := settingsPath(client, selector)
	if err != nil {
		return err
	}

	body, etag, err := client.GetWithETag(path)
	if err != nil {
		return err
	}

	if setFilter != "" {
		match, err := filterMatches(body, setFilter)
		if err != nil {
			return err
		}
		if !match {
			return fmt.Errorf("no entries found in the current selection matching filter %q", setFilter)
		}
	}

	payload := map[string]interface{}{}
	out := cmd.OutOrStdout()
	for _, token := range args {
		assignment, err := setter.Parse(token, biosSelected)
		if err != nil {
			return err
		}

		patch := assignment.Patch()
		fmt.Fprintln(out, "Added the following patch:")
		if err := writeResult(out, patch, ""); err != nil {
			return err
		}

		mergePatch(payload, patch)
	}

	if err := client.PatchWithETag(path, payload, etag); err != nil {
		return err
	}

	return maybeReboot(client, setReboot)
}

// checkAdminPasswordTokens enforces that changing AdminPassword always
// travels together with the current OldAdminPassword.
func checkAdminPasswordTokens(args []string) error {
	hasAdmin, hasOld := false, false
	for _, arg := range args {
		lower := strings.ToLower(arg)
		switch {
		case strings.HasPrefix(lower, "oldadminpassword="):
			hasOld = true
		case strings.HasPrefix(lower, "adminpassword="):
			hasAdmin = true
		}
	}

	if hasAdmin && !hasOld {
		return fmt.Errorf("'OldAdminPassword' must also be set with the current password when changing 'AdminPassword'")
	}
	return nil
}

// settingsPath resolves the patch target of the selected type. The BIOS
// type patches its pending settings resource; everything else goes
// through the selector lookup.
func settingsPath(client *redfish.Client, selector string) (string, error) {
	if strings.HasPrefix(strings.ToLower(selector), "bios.") {
		tree, err := client.BiosTree()
		if err != nil {
			return "", err
		}
		return tree.Settings, nil
	}

	res, err := client.Locate(selector)
	if err != nil {
		return "", err
	}
	return res.Path, nil
}

// filterMatches compares a [attribute]=[value] filter against the
// current resource body.
func filterMatches(body map[string]interface{}, filter string) (bool, error) {
	sel, val, found := strings.Cut(strings.Trim(filter, `'" `), "=")
	if !found {
		return false, fmt.Errorf("invalid filter parameter format [filter_attribute]=[filter_value]")
	}

	sel, val = strings.TrimSpace(sel), strings.TrimSpace(val)
	current, ok := body[sel]
	if !ok {
		return false, nil
	}
	return fmt.Sprintf("%v", current) == val, nil
}

// mergePatch folds src into dst, merging nested maps key by key so that
// several tokens touching the same container end up in one body.
func mergePatch(dst, src map[string]interface{}) {
	for key, value := range src {
		if nested, ok := value.(map[string]interface{}); ok {
			if existing, ok := dst[key].(map[string]interface{}); ok {
				mergePatch(existing, nested)
				continue
			}
		}
		dst[key] = value
	}
}

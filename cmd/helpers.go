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
	"strings"
	"time"

	gfredfish "github.com/stmcginnis/gofish/redfish"

	"ilo-redfish-cli/internal/power"
	"ilo-redfish-cli/internal/redfish"
)

const rebootTimeout = 10 * time.Minute

// writeResult prints v as indented, key sorted JSON to stdout, or to
// filename when one is given.
func writeResult(out io.Writer, v interface{}, filename string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if filename == "" {
		_, err = out.Write(data)
		return err
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return err
	}
	fmt.Fprintf(out, "Results written out to '%s'\n", filename)
	return nil
}

// maybeReboot performs the post-operation reset requested through the
// --reboot flag. An empty value means no reboot was requested.
func maybeReboot(c *redfish.Client, resetType string) error {
	if resetType == "" {
		return nil
	}
	return power.ResetOrPowerOn(c, gfredfish.ResetType(resetType), rebootTimeout)
}

// actionTarget walks the Actions object of a resource body and returns
// the target path and action name of the first action whose key
// contains name. The newer schema generation prefixes action keys with
// "#<Type>.", the older one uses the bare name.
func actionTarget(body map[string]interface{}, name, fallbackPath string) (path, action string) {
	path = fallbackPath
	action = name

	actions, ok := body["Actions"].(map[string]interface{})
	if !ok {
		return path, action
	}

	for key, raw := range actions {
		if !strings.Contains(key, name) {
			continue
		}
		if def, ok := raw.(map[string]interface{}); ok {
			if target, ok := def["target"].(string); ok {
				path = target
			}
		}
		if idx := strings.LastIndex(key, "#"); idx >= 0 {
			action = key[idx+1:]
		}
		break
	}

	return path, action
}

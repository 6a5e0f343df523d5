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

	"github.com/spf13/cobra"
	gfredfish "github.com/stmcginnis/gofish/redfish"

	"ilo-redfish-cli/internal/power"
)

var rebootCmd = &cobra.Command{
	Use:   "reboot [reset-type]",
	Short: "Reset the host server",
	Long: "Reset the host with the given Redfish reset type, default\n" +
		"ForceRestart. A powered off host is powered on instead.\n\n" +
		"Common types: On, ForceOff, GracefulShutdown, GracefulRestart,\n" +
		"ForceRestart, PushPowerButton.",
	Args: cobra.MaximumNArgs(1),
	RunE: runReboot,
}

func init() {
	rootCmd.AddCommand(rebootCmd)
}

func runReboot(cmd *cobra.Command, args []string) error {
	resetType := gfredfish.ForceRestartResetType
	if len(args) == 1 {
		resetType = gfredfish.ResetType(args[0])
	}

	client, err := connect()
	if err != nil {
		return err
	}
	defer client.Logout()

	if err := power.ResetOrPowerOn(client, resetType, rebootTimeout); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Host reset (%s) completed.\n", resetType)
	return nil
}

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
	"github.com/spf13/viper"

	"ilo-redfish-cli/internal/config"
	"ilo-redfish-cli/internal/redfish"
)

var loginCmd = &cobra.Command{
	Use:   "login [endpoint]",
	Short: "Connect to a manager and cache the session settings",
	Long: "Connects to the manager's Redfish API, verifies the credentials and\n" +
		"stores the connection for the following commands.\n\n" +
		"example: ilorcli login https://10.0.0.5 -u admin -p secret",
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, err := managerConfig()
	if err != nil {
		return err
	}

	if len(args) == 1 {
		cfg.Endpoint = args[0]
	}
	if cfg.Endpoint == "" {
		return fmt.Errorf("no manager endpoint given, pass one as argument or via --url")
	}
	if !strings.HasPrefix(cfg.Endpoint, "http") {
		cfg.Endpoint = "https://" + cfg.Endpoint
	}

	client, err := redfish.Connect(cfg)
	if err != nil {
		return err
	}
	defer client.Logout()

	saved := &config.File{Manager: config.Manager{
		Endpoint:    cfg.Endpoint,
		Username:    cfg.Username,
		Password:    cfg.Password,
		SslInsecure: cfg.Insecure,
	}}
	if err := config.Save(saved, viper.GetString("config")); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Logged in to %s\n", cfg.Endpoint)
	fmt.Fprintln(cmd.ErrOrStderr(), "Warning: session settings are stored in plaintext.")
	return nil
}

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

// Package cmd implements the ilorcli subcommands. Each command is a
// thin adapter: it parses arguments, walks the vendor resource tree of
// the managed server and submits JSON bodies through the redfish client.
package cmd

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ilo-redfish-cli/internal/config"
	"ilo-redfish-cli/internal/redfish"
)

var rootCmd = &cobra.Command{
	Use:   "ilorcli",
	Short: "Manage HPE iLO class BMCs over their Redfish API",
	Long: "ilorcli talks to the Redfish API of a server management controller.\n" +
		"Log in once with 'ilorcli login', then run configuration commands\n" +
		"against the cached session.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("url", "", "manager endpoint, e.g. https://10.0.0.5")
	flags.StringP("username", "u", "", "manager user name")
	flags.StringP("password", "p", "", "manager user password")
	flags.Bool("ssl-insecure", false, "skip TLS certificate verification")
	flags.Bool("verbose", false, "enable debug logging")
	flags.String("config", config.Path(), "config file holding the cached session")

	_ = viper.BindPFlag("url", flags.Lookup("url"))
	_ = viper.BindPFlag("username", flags.Lookup("username"))
	_ = viper.BindPFlag("password", flags.Lookup("password"))
	_ = viper.BindPFlag("ssl_insecure", flags.Lookup("ssl-insecure"))
	_ = viper.BindPFlag("verbose", flags.Lookup("verbose"))
	_ = viper.BindPFlag("config", flags.Lookup("config"))

	viper.SetEnvPrefix("ILORCLI")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func setupLogging() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if viper.GetBool("verbose") {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

// managerConfig resolves the connection settings: explicit flags and
// environment first, then the session cached by login.
func managerConfig() (redfish.Config, error) {
	cfg := redfish.Config{
		Endpoint: viper.GetString("url"),
		Username: viper.GetString("username"),
		Password: viper.GetString("password"),
		Insecure: viper.GetBool("ssl_insecure"),
	}

	saved, err := config.Load(viper.GetString("config"))
	if err != nil {
		return redfish.Config{}, err
	}

	if cfg.Endpoint == "" {
		cfg.Endpoint = saved.Manager.Endpoint
	}
	if cfg.Username == "" {
		cfg.Username = saved.Manager.Username
	}
	if cfg.Password == "" {
		cfg.Password = saved.Manager.Password
	}
	if !cfg.Insecure {
		cfg.Insecure = saved.Manager.SslInsecure
	}

	return cfg, nil
}

// connect opens a session from the resolved connection settings.
func connect() (*redfish.Client, error) {
	cfg, err := managerConfig()
	if err != nil {
		return nil, err
	}
	return redfish.Connect(cfg)
}

// connectSession opens a token session instead of per request basic
// auth, for endpoints that authenticate with the session key.
func connectSession() (*redfish.Client, error) {
	cfg, err := managerConfig()
	if err != nil {
		return nil, err
	}
	cfg.Session = true
	return redfish.Connect(cfg)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

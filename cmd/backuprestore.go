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
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"ilo-redfish-cli/internal/redfish"
)

var backupRestoreCmd = &cobra.Command{
	Use:   "backuprestore",
	Short: "Backup and restore the manager using a .bak file",
	Long: "Create a .bak file:              ilorcli backuprestore backup\n" +
		"Restore a manager from the file: ilorcli backuprestore restore\n\n" +
		"A backup file only restores the manager it was created on.",
}

var (
	backupFilename string
	backupFilePass string
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Download a backup file of the manager configuration",
	Args:  cobra.NoArgs,
	RunE:  runBackup,
}

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Upload a backup file and restore the manager from it",
	Args:  cobra.NoArgs,
	RunE:  runRestore,
}

func init() {
	restoreCmd.Flags().StringVarP(&backupFilename, "filename", "f", "",
		"backup file to restore, defaults to the sole .bak file in the current directory")
	backupRestoreCmd.PersistentFlags().StringVar(&backupFilePass, "filepass", "",
		"protect the backup file with this password, required again on restore")

	backupRestoreCmd.AddCommand(backupCmd, restoreCmd)
	rootCmd.AddCommand(backupRestoreCmd)
}

func runBackup(cmd *cobra.Command, args []string) error {
	client, err := connectSession()
	if err != nil {
		return err
	}
	defer client.Logout()

	service, err := client.Locate(redfish.SelectorBackupService)
	if err != nil {
		return err
	}

	location, ok := service.Body["BackupFileLocation"].(string)
	if !ok || location == "" {
		return fmt.Errorf("the manager did not report a backup file location")
	}
	name := location[strings.LastIndex(location, "/")+1:]

	values := url.Values{}
	values.Set("sessionKey", client.SessionToken())
	if backupFilePass != "" {
		values.Set("password", backupFilePass)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Downloading backup file %s...\n", name)

	res, err := client.PostForm(location, values)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("backup download rejected with status %d", res.StatusCode)
	}

	file, err := os.Create(name)
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err := io.Copy(file, res.Body); err != nil {
		return fmt.Errorf("unable to download file: %w", err)
	}

	fmt.Fprintln(out, "Download complete.")
	return nil
}

func runRestore(cmd *cobra.Command, args []string) error {
	filename, err := resolveBackupFile(backupFilename)
	if err != nil {
		return err
	}

	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("error loading the specified file: %w", err)
	}
	defer file.Close()

	client, err := connectSession()
	if err != nil {
		return err
	}
	defer client.Logout()

	service, err := client.Locate(redfish.SelectorBackupService)
	if err != nil {
		return err
	}

	pushURI, ok := service.Body["HttpPushUri"].(string)
	if !ok || pushURI == "" {
		return fmt.Errorf("the manager did not report an upload location")
	}

	sessionKey := client.SessionToken()
	fields := map[string]io.Reader{
		"sessionKey": strings.NewReader(sessionKey),
		"file":       file,
	}
	if backupFilePass != "" {
		fields["password"] = strings.NewReader(backupFilePass)
	}

	res, err := client.PostMultipartWithHeaders(pushURI, fields,
		map[string]string{"Cookie": "sessionKey=" + sessionKey})
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		if strings.Contains(string(raw), "invalid_restore_password") {
			return fmt.Errorf("invalid or no password supplied during restore, " +
				"supply the password used when the backup file was created")
		}
		return fmt.Errorf("error while uploading the backup file, status %d", res.StatusCode)
	}

	fmt.Fprintln(cmd.OutOrStdout(),
		"Restore in progress. The manager will be unresponsive while the restore completes.\n"+
			"Your session will be terminated.")
	return nil
}

// resolveBackupFile defaults to the single .bak file in the working
// directory when no name was given.
func resolveBackupFile(name string) (string, error) {
	if name != "" {
		return name, nil
	}

	matches, err := filepath.Glob("*.bak")
	if err != nil {
		return "", err
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no .bak file found in the current directory, specify one with -f")
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("more than one .bak file found in the current directory, specify one with -f")
	}
}

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
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"ilo-redfish-cli/internal/redfish"
)

var certificateCmd = &cobra.Command{
	Use:   "certificate",
	Short: "Manage manager TLS, CA and SCEP certificates",
	Long: "Generate a certificate signing request, import X509 formatted TLS or\n" +
		"CA certificates, or drive SCEP based automatic enrollment.\n\n" +
		"Use quotes around CSR subject fields containing whitespace:\n" +
		`  ilorcli certificate gen_csr "Hewlett Packard Enterprise" "ilorcli Group" "CName" "US" "Texas" "Houston"`,
}

var (
	certFilename  string
	certIncludeIP bool

	enrollService  bool
	enrollURL      string
	enrollPassword string
)

var certGenCsrCmd = &cobra.Command{
	Use:   "gen_csr orgname orgunit commonname country state city",
	Short: "Generate a certificate signing request on the manager",
	Args:  cobra.ExactArgs(6),
	RunE:  runCertGenCsr,
}

var certGetCsrCmd = &cobra.Command{
	Use:   "getcsr",
	Short: "Fetch the generated certificate signing request",
	Args:  cobra.NoArgs,
	RunE:  runCertGetCsr,
}

var certTlsCmd = &cobra.Command{
	Use:   "tls certfile",
	Short: "Import an X509 TLS certificate",
	Args:  cobra.ExactArgs(1),
	RunE:  runCertImportTls,
}

var certCaCmd = &cobra.Command{
	Use:   "ca certfile",
	Short: "Import an X509 CA certificate for login authorization",
	Args:  cobra.ExactArgs(1),
	RunE:  runCertImportCa,
}

var certCrlCmd = &cobra.Command{
	Use:   "crl url",
	Short: "Import a certificate revocation list from a URL",
	Args:  cobra.ExactArgs(1),
	RunE:  runCertImportCrl,
}

var certViewCmd = &cobra.Command{
	Use:   "view",
	Short: "Show the TLS certificate and SCEP enrollment details",
	Args:  cobra.NoArgs,
	RunE:  runCertView,
}

var certDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete the TLS certificate and regenerate a self signed one",
	Args:  cobra.NoArgs,
	RunE:  runCertDelete,
}

var certAutoEnrollCmd = &cobra.Command{
	Use:   "auto_enroll orgname orgunit commonname country state city",
	Short: "Configure SCEP based automatic certificate enrollment",
	Args:  cobra.ExactArgs(6),
	RunE:  runCertAutoEnroll,
}

func init() {
	certGetCsrCmd.Flags().StringVarP(&certFilename, "filename", "f", "certificate.txt", "file the CSR is written to")
	for _, c := range []*cobra.Command{certGenCsrCmd, certAutoEnrollCmd} {
		c.Flags().BoolVar(&certIncludeIP, "includeip", false, "include the manager IP address in the CSR subject")
	}

	certAutoEnrollCmd.Flags().BoolVar(&enrollService, "enable", true, "enable or disable the enrollment service")
	certAutoEnrollCmd.Flags().StringVar(&enrollURL, "scep-url", "", "SCEP enrollment server URL")
	certAutoEnrollCmd.Flags().StringVar(&enrollPassword, "challenge-password", "", "SCEP challenge password")
	_ = certAutoEnrollCmd.MarkFlagRequired("scep-url")

	certificateCmd.AddCommand(certGenCsrCmd, certGetCsrCmd, certTlsCmd, certCaCmd,
		certCrlCmd, certViewCmd, certDeleteCmd, certAutoEnrollCmd)
	rootCmd.AddCommand(certificateCmd)
}

func runCertGenCsr(cmd *cobra.Command, args []string) error {
	client, err := connect()
	if err != nil {
		return err
	}
	defer client.Logout()

	cert, err := client.Locate(redfish.SelectorHttpsCert)
	if err != nil {
		return err
	}

	path, action := actionTarget(cert.Body, "GenerateCSR", cert.Path)
	body := map[string]interface{}{
		"Action":     action,
		"OrgName":    args[0],
		"OrgUnit":    args[1],
		"CommonName": args[2],
		"Country":    args[3],
		"State":      args[4],
		"City":       args[5],
		"IncludeIP":  certIncludeIP,
	}

	if err := postAction(client, path, body); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(),
		"The manager is creating a new certificate signing request. This process can take up to 10 minutes.")
	return nil
}

func runCertGetCsr(cmd *cobra.Command, args []string) error {
	client, err := connect()
	if err != nil {
		return err
	}
	defer client.Logout()

	cert, err := client.Locate(redfish.SelectorHttpsCert)
	if err != nil {
		return err
	}

	csr, ok := cert.Body["CertificateSigningRequest"].(string)
	if !ok || csr == "" {
		return fmt.Errorf("unable to find a valid certificate signing request; " +
			"a freshly generated request may take up to 10 minutes to appear")
	}

	if err := os.WriteFile(certFilename, []byte(csr), 0644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Certificate saved to: %s\n", certFilename)
	return nil
}

func runCertImportTls(cmd *cobra.Command, args []string) error {
	certdata, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("error loading the specified file: %w", err)
	}

	client, err := connect()
	if err != nil {
		return err
	}
	defer client.Logout()

	cert, err := client.Locate(redfish.SelectorHttpsCert)
	if err != nil {
		return err
	}

	path, action := actionTarget(cert.Body, "ImportCertificate", cert.Path)
	return postAction(client, path, map[string]interface{}{
		"Action":      action,
		"Certificate": string(certdata),
	})
}

func runCertImportCa(cmd *cobra.Command, args []string) error {
	certdata, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("error loading the specified file: %w", err)
	}

	client, err := connect()
	if err != nil {
		return err
	}
	defer client.Logout()

	security, err := client.Locate(redfish.SelectorSecurityService)
	if err != nil {
		return err
	}

	certAuthPath := linkedPath(security.Body, "CertAuth")
	if certAuthPath == "" {
		return fmt.Errorf("CA certificate import is not available on this system")
	}

	certAuth, err := client.GetJSON(certAuthPath)
	if err != nil {
		return err
	}

	path, action := actionTarget(certAuth, "ImportCACertificate", certAuthPath)
	return postAction(client, path, map[string]interface{}{
		"Action":      action,
		"Certificate": string(certdata),
	})
}

func runCertImportCrl(cmd *cobra.Command, args []string) error {
	client, err := connect()
	if err != nil {
		return err
	}
	defer client.Logout()

	security, err := client.Locate(redfish.SelectorSecurityService)
	if err != nil {
		return err
	}

	certAuthPath := linkedPath(security.Body, "CertAuth")
	if certAuthPath == "" {
		return fmt.Errorf("CRL import is not available on this system")
	}

	certAuth, err := client.GetJSON(certAuthPath)
	if err != nil {
		return err
	}

	path, action := actionTarget(certAuth, "ImportCRL", certAuthPath)
	return postAction(client, path, map[string]interface{}{
		"Action":    action,
		"ImportUri": args[0],
	})
}

func runCertView(cmd *cobra.Command, args []string) error {
	client, err := connect()
	if err != nil {
		return err
	}
	defer client.Logout()

	out := cmd.OutOrStdout()

	cert, err := client.Locate(redfish.SelectorHttpsCert)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "Https Certificate details ...")
	printCertInfo(out, cert.Body)

	if !client.IsGen10() {
		return nil
	}

	if enrollPath, err := enrollmentPath(client); err == nil {
		if enrollment, err := client.GetJSON(enrollPath); err == nil {
			fmt.Fprintln(out, "Scep Certificate details ...")
			printCertInfo(out, enrollment)
		}
	}
	return nil
}

func runCertDelete(cmd *cobra.Command, args []string) error {
	client, err := connect()
	if err != nil {
		return err
	}
	defer client.Logout()

	cert, err := client.Locate(redfish.SelectorHttpsCert)
	if err != nil {
		return err
	}

	if err := client.Delete(cert.Path); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Deleted the https certificate successfully.")
	return nil
}

func runCertAutoEnroll(cmd *cobra.Command, args []string) error {
	client, err := connect()
	if err != nil {
		return err
	}
	defer client.Logout()

	if !client.IsGen10() {
		return fmt.Errorf("automatic certificate enrollment is not supported on this schema generation")
	}

	path, err := enrollmentPath(client)
	if err != nil {
		return err
	}

	body := map[string]interface{}{
		"AutomaticCertificateEnrollmentSettings": map[string]interface{}{
			"ServiceEnabled":    enrollService,
			"ServerUrl":         enrollURL,
			"ChallengePassword": enrollPassword,
		},
		"HttpsCertCSRSubjectValue": map[string]interface{}{
			"OrgName":    args[0],
			"OrgUnit":    args[1],
			"CommonName": args[2],
			"Country":    args[3],
			"State":      args[4],
			"City":       args[5],
			"IncludeIP":  certIncludeIP,
		},
	}

	if err := client.Patch(path, body); err != nil {
		return fmt.Errorf("auto enroll failed, check whether the SCEP CA certificate is imported and the URL is reachable: %w", err)
	}

	return waitForEnrollment(cmd.OutOrStdout(), client, path)
}

// waitForEnrollment polls the enrollment status for a short while, the
// manager reports InProgress until the SCEP server answered.
func waitForEnrollment(out io.Writer, client *redfish.Client, path string) error {
	for i := 0; i < 9; i++ {
		body, err := client.GetJSON(path)
		if err != nil {
			return err
		}

		settings, _ := body["AutomaticCertificateEnrollmentSettings"].(map[string]interface{})
		switch settings["CertificateEnrollmentStatus"] {
		case "InProgress":
			time.Sleep(time.Second)
			continue
		case "Failed":
			return fmt.Errorf("certificate enrollment failed, check the SCEP URL and challenge password")
		default:
			fmt.Fprintln(out, "Automatic certificate enrollment configured.")
			return nil
		}
	}

	fmt.Fprintln(out, "Enrollment still in progress, check 'certificate view' later.")
	return nil
}

// enrollmentPath resolves the automatic certificate enrollment resource
// from the security service links.
func enrollmentPath(client *redfish.Client) (string, error) {
	security, err := client.Locate(redfish.SelectorSecurityService)
	if err != nil {
		return "", err
	}

	if path := linkedPath(security.Body, "AutomaticCertificateEnrollment"); path != "" {
		return path, nil
	}
	return redfish.JoinPath(security.Path, "AutomaticCertificateEnrollment"), nil
}

// linkedPath returns the @odata.id of the link whose name contains name.
func linkedPath(body map[string]interface{}, name string) string {
	links, ok := body["Links"].(map[string]interface{})
	if !ok {
		return ""
	}

	for key, raw := range links {
		if !strings.Contains(key, name) {
			continue
		}
		if link, ok := raw.(map[string]interface{}); ok {
			if ref, ok := link["@odata.id"].(string); ok {
				return ref
			}
		}
	}
	return ""
}

// printCertInfo prints the scalar properties of a certificate body,
// descending into nested objects, with schema annotations skipped.
func printCertInfo(out io.Writer, body map[string]interface{}) {
	keys := make([]string, 0, len(body))
	for key := range body {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if strings.Contains(key, "@odata") {
			continue
		}
		if nested, ok := body[key].(map[string]interface{}); ok {
			printCertInfo(out, nested)
			continue
		}
		fmt.Fprintf(out, "%s:%v\n", key, body[key])
	}
}

// postAction submits a vendor action body. An accepted response with a
// task monitor location is waited out before returning.
func postAction(client *redfish.Client, path string, body map[string]interface{}) error {
	res, err := client.Post(path, body)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("action %s rejected with status %d", path, res.StatusCode)
	}

	if res.StatusCode == http.StatusAccepted {
		if location := res.Header.Get(redfish.HTTP_HEADER_LOCATION); location != "" {
			return client.WaitForTask(location, rebootTimeout)
		}
	}
	return nil
}

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type client struct {
	BaseURL   string
	Project   string
	Tenant    string
	OutFormat string // "json" | "text"
	HTTP      *http.Client
}

func (c *client) scopePath(suffix string) string {
	p := "/emulator/v1/projects/" + url.PathEscape(c.Project)
	if c.Tenant != "" {
		p += "/tenants/" + url.PathEscape(c.Tenant)
	}
	return p + suffix
}

func (c *client) do(method, path string, body []byte) (int, []byte, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, strings.TrimRight(c.BaseURL, "/")+path, rd)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer owner")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	return resp.StatusCode, b, err
}

// call hace el request y falla con el cuerpo si no es 2xx.
func (c *client) call(name, method, path string, body []byte) ([]byte, error) {
	status, b, err := c.do(method, path, body)
	if err != nil {
		return nil, err
	}
	if status/100 != 2 {
		return nil, fmt.Errorf("%s falló: status=%d body=%s", name, status, strings.TrimSpace(string(b)))
	}
	return b, nil
}

func (c *client) print(w io.Writer, body []byte) {
	if c.OutFormat == "json" {
		var v any
		if json.Unmarshal(body, &v) == nil {
			p, _ := json.MarshalIndent(v, "", "  ")
			fmt.Fprintln(w, string(p))
			return
		}
	}
	fmt.Fprintln(w, strings.TrimSpace(string(body)))
}

func newAdminCmd() *cobra.Command {
	cl := &client{
		BaseURL:   envOr("AUTHEMU_URL", "http://localhost:9099"),
		Project:   envOr("AUTHEMU_DEFAULT_PROJECT", "demo-project"),
		OutFormat: envOr("AUTHEMU_OUT", "json"),
		HTTP:      &http.Client{Timeout: 30 * time.Second},
	}

	adminCmd := &cobra.Command{
		Use:   "admin",
		Short: "Cliente de la API /emulator/v1 de un emulador corriendo",
	}
	adminCmd.PersistentFlags().StringVar(&cl.BaseURL, "url", cl.BaseURL, "URL base del emulador (env AUTHEMU_URL)")
	adminCmd.PersistentFlags().StringVarP(&cl.Project, "project", "p", cl.Project, "ID de proyecto (env AUTHEMU_DEFAULT_PROJECT)")
	adminCmd.PersistentFlags().StringVarP(&cl.Tenant, "tenant", "t", "", "ID de tenant (opcional)")
	adminCmd.PersistentFlags().StringVar(&cl.OutFormat, "out", cl.OutFormat, "Formato de salida: json|text")

	wipeCmd := &cobra.Command{
		Use:   "wipe",
		Short: "Borra todas las cuentas del proyecto o tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := cl.call("wipe", http.MethodDelete, cl.scopePath("/accounts"), nil); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}

	oobCmd := &cobra.Command{
		Use:   "oob-codes",
		Short: "Lista los OOB codes pendientes (links de verificación, reset, sign-in)",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := cl.call("oob-codes", http.MethodGet, cl.scopePath("/oobCodes"), nil)
			if err != nil {
				return err
			}
			cl.print(cmd.OutOrStdout(), b)
			return nil
		},
	}

	smsCmd := &cobra.Command{
		Use:   "verification-codes",
		Short: "Lista los códigos SMS pendientes",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := cl.call("verification-codes", http.MethodGet, cl.scopePath("/verificationCodes"), nil)
			if err != nil {
				return err
			}
			cl.print(cmd.OutOrStdout(), b)
			return nil
		},
	}

	var patch string
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Muestra la config del emulador; con --set aplica un PATCH JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/emulator/v1/projects/" + url.PathEscape(cl.Project) + "/config"
			method, body := http.MethodGet, []byte(nil)
			if patch != "" {
				if !json.Valid([]byte(patch)) {
					return fmt.Errorf("--set no es JSON válido")
				}
				method, body = http.MethodPatch, []byte(patch)
			}
			b, err := cl.call("config", method, path, body)
			if err != nil {
				return err
			}
			cl.print(cmd.OutOrStdout(), b)
			return nil
		},
	}
	configCmd.Flags().StringVar(&patch, "set", "", `PATCH, ej. '{"signIn":{"allowDuplicateEmails":true}}'`)

	adminCmd.AddCommand(wipeCmd, oobCmd, smsCmd, configCmd)
	return adminCmd
}

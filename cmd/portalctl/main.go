// Command portalctl inspects the portal auth configuration. It runs as a
// build step: a non-zero exit stops the deployment.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/carelink/portal-auth/internal/core/domain"
	"github.com/carelink/portal-auth/internal/pkg/envguard"
)

func main() {
	if err := newRootCmd(envconfig.OsLookuper(), os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(base envconfig.Lookuper, out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "portalctl",
		Short:         "Portal auth configuration tooling",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.SetOut(out)
	root.SetErr(out)

	root.AddCommand(newEnvCmd(base), newRolesCmd())
	return root
}

func newEnvCmd(base envconfig.Lookuper) *cobra.Command {
	envCmd := &cobra.Command{
		Use:   "env",
		Short: "Environment checks",
	}

	var envFile string
	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Fail when secrets leak to client scope or required variables are missing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			src := base
			if envFile != "" {
				vals, err := godotenv.Read(envFile)
				if err != nil {
					return fmt.Errorf("read %s: %w", envFile, err)
				}
				// The process environment overrides the file, as it does at runtime.
				src = envconfig.MultiLookuper(base, envconfig.MapLookuper(vals))
			}

			log := zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), NoColor: true}).With().Timestamp().Logger()
			guard, err := envguard.New(src, envguard.WithLogger(log))
			if err != nil {
				return err
			}
			warnings, err := guard.ValidateSecurity()
			if err != nil {
				return err
			}
			if _, err := guard.ValidateEnvironment(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "environment ok (%d warning(s))\n", len(warnings))
			return nil
		},
	}
	checkCmd.Flags().StringVar(&envFile, "env-file", "", "dotenv file to check instead of only the process environment")

	envCmd.AddCommand(checkCmd)
	return envCmd
}

type roleEntry struct {
	Role       domain.Role   `yaml:"role"`
	Portal     domain.Portal `yaml:"portal"`
	Home       string        `yaml:"home"`
	Selectable bool          `yaml:"selectable"`
}

func newRolesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "roles",
		Short: "Print the role to portal registry as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var doc struct {
				Roles []roleEntry `yaml:"roles"`
			}
			for _, r := range domain.Roles() {
				p, err := domain.PortalForRole(r)
				if err != nil {
					return err
				}
				doc.Roles = append(doc.Roles, roleEntry{
					Role:       r,
					Portal:     p,
					Home:       domain.HomeRoute(p),
					Selectable: r.IsSelectable(),
				})
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(doc); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

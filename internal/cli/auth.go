package cli

import (
	"errors"
	"fmt"

	"thehub/pkg/api"

	"github.com/spf13/cobra"
)

func (a *app) loginCmd() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "login <email-or-username>",
		Short: "Sign in and keep the session for later commands",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, svc api.Service, args []string) error {
			p, err := svc.Login(cmd.Context(), args[0], password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s <%s>\n", p.Name, p.Email)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	return cmd
}

func (a *app) signupCmd() *cobra.Command {
	var name, email, password string

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, svc api.Service, _ []string) error {
			p, err := svc.Signup(cmd.Context(), map[string]any{"name": name, "email": email, "password": password})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "account created, signed in as %s <%s>\n", p.Name, p.Email)
			return nil
		}),
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	return cmd
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, svc api.Service, _ []string) error {
			svc.Logout()
			fmt.Fprintln(cmd.OutOrStdout(), "signed out")
			return nil
		}),
	}
}

func (a *app) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Validate the stored session and show the profile",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, svc api.Service, _ []string) error {
			p, err := svc.Restore(cmd.Context())
			if err != nil {
				return errors.New(svc.LastError())
			}
			if p == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "not signed in")
				return nil
			}
			role := "customer"
			if p.IsAdmin() {
				role = "admin"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s <%s> id=%s role=%s\n", p.Name, p.Email, p.ID, role)
			return nil
		}),
	}
}

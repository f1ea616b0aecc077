package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/keepup/keepup-api/pkg/client"
)

func newLoginCmd(opts *rootOptions) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "login <username-or-email>",
		Short: "Sign in and save the session token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("KEEPUP_PASSWORD")
			}
			if password == "" {
				return errors.New("password required: pass --password or set KEEPUP_PASSWORD")
			}

			c, err := opts.newClient()
			if err != nil {
				return err
			}
			user, err := client.NewSession(c).Login(cmd.Context(), args[0], password)
			if err != nil {
				return err
			}
			if err := opts.saveToken(c.Token()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s (%s)\n", user.Username, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "account password (default $KEEPUP_PASSWORD)")
	return cmd
}

func newLogoutCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := opts.resume(cmd.Context(), false)
			if err != nil {
				return err
			}
			if sess.IsAuthenticated() {
				// Tokens are stateless, so a failed server call changes nothing.
				_ = sess.Logout(cmd.Context())
			}
			if err := opts.removeToken(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		},
	}
}

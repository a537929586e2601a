package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/claimdesk/internal/auth"
)

func (a *app) userCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}
	cmd.AddCommand(a.userCreateCommand(), a.userDeleteCommand())
	return cmd
}

func (a *app) userCreateCommand() *cobra.Command {
	var (
		admin    bool
		password string
	)
	cmd := &cobra.Command{
		Use:   "create USERNAME",
		Short: "Create an account",
		Long: `Create an account. Without --password the password is read from the
first line of standard input.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				var err error
				if password, err = readPassword(cmd.InOrStdin()); err != nil {
					return err
				}
			}

			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			u, err := auth.NewManager(st, a.cfg.Security).CreateUser(cmd.Context(), args[0], password, admin)
			if err != nil {
				return err
			}
			role := "user"
			if u.IsAdmin {
				role = "admin"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s %q (id %d)\n", role, u.Username, u.ID)
			return nil
		},
	}
	cmd.Flags().BoolVar(&admin, "admin", false, "grant administrator rights")
	cmd.Flags().StringVar(&password, "password", "", "password (default: read from stdin)")
	return cmd
}

func (a *app) userDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete USERNAME",
		Short: "Delete an account; its notes are kept without an author",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			u, err := st.GetUserByUsername(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := st.DeleteUser(cmd.Context(), u.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %q\n", u.Username)
			return nil
		},
	}
}

func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("read password: no password given")
	}
	return line, nil
}

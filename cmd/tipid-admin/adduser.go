package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"tipid/internal/services"
)

func addUserCmd() *cobra.Command {
	var in services.RegisterInput

	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create a user account",
		Long: `Create a user account without going through the registration endpoint.

The password is prompted for, twice, when --password is omitted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if in.Password == "" {
				lines := bufio.NewScanner(cmd.InOrStdin())
				var err error
				if in.Password, err = promptPassword(out, cmd.InOrStdin(), lines, "Password: "); err != nil {
					return fmt.Errorf("failed to read password: %w", err)
				}
				if in.ConfirmPassword, err = promptPassword(out, cmd.InOrStdin(), lines, "Confirm password: "); err != nil {
					return fmt.Errorf("failed to read password: %w", err)
				}
			} else {
				in.ConfirmPassword = in.Password
			}
			if in.FullName == "" {
				in.FullName = in.Username
			}

			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			res := e.app.Auth.Register(cmd.Context(), in)
			if !res.Success {
				return errors.New(strings.TrimSuffix(res.Message, "!"))
			}
			fmt.Fprintf(out, "User %s created with ID %s\n", res.Data.Username, res.Data.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&in.Username, "username", "", "login name (required)")
	cmd.Flags().StringVar(&in.Email, "email", "", "email address (required)")
	cmd.Flags().StringVar(&in.FullName, "full-name", "", "display name (defaults to the username)")
	cmd.Flags().StringVar(&in.Password, "password", "", "password, prompted for when omitted")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// promptPassword reads without echo from a terminal, and a plain line
// otherwise.
func promptPassword(out io.Writer, in io.Reader, lines *bufio.Scanner, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	if lines.Scan() {
		return lines.Text(), nil
	}
	if err := lines.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/holomush/sessionauth/internal/auth"
	"github.com/holomush/sessionauth/internal/config"
)

// storeOpener opens the user store for admin commands. Tests replace it.
var storeOpener = openStore

// NewUserCmd creates the user administration command.
func NewUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Administer users",
	}
	cmd.AddCommand(newUserAddCmd())
	return cmd
}

func newUserAddCmd() *cobra.Command {
	var email string
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a user",
		Long: `Register a user in the configured store. The password is prompted for
on a terminal, or read from the first line of stdin with --password-stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			password, err := readPassword(cmd, passwordStdin)
			if err != nil {
				return err
			}
			return runUserAdd(cmd, cfg, email, password)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email address of the new user")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	//nolint:errcheck // flag is registered above
	_ = cmd.MarkFlagRequired("email")
	config.RegisterFlags(cmd.Flags())

	return cmd
}

func runUserAdd(cmd *cobra.Command, cfg *config.Config, email, password string) error {
	ctx := cmd.Context()
	if cfg.Store.Driver == config.DriverMemory {
		cmd.PrintErrln("warning: the memory store does not persist; the user is lost on exit")
	}

	userStore, err := storeOpener(ctx, cfg)
	if err != nil {
		return oops.With("operation", "open user store").Wrap(err)
	}
	defer userStore.Close()

	hasher, err := auth.NewHasher(cfg.Auth.Hasher, cfg.Auth.BcryptCost)
	if err != nil {
		return err
	}
	svc, err := auth.NewService(userStore.Repo, hasher, auth.WithStoreTimeout(cfg.Store.Timeout))
	if err != nil {
		return err
	}

	user, err := svc.Register(ctx, email, password)
	if err != nil {
		return err
	}
	cmd.Printf("Created user %s (%s)\n", user.Email, user.ID)
	return nil
}

// readPassword reads the new password from stdin or an interactive prompt.
func readPassword(cmd *cobra.Command, fromStdin bool) (string, error) {
	in := cmd.InOrStdin()
	if fromStdin || !isTerminal(in) {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && err != io.EOF {
			return "", oops.Code("PASSWORD_READ_FAILED").Wrap(err)
		}
		password := strings.TrimRight(line, "\r\n")
		if password == "" {
			return "", oops.Code("AUTH_EMPTY_PASSWORD").Wrap(auth.ErrEmptyPassword)
		}
		return password, nil
	}

	fd := int(in.(*os.File).Fd()) //nolint:forcetypeassert // isTerminal checked the type
	cmd.Print("Password: ")
	first, err := term.ReadPassword(fd)
	cmd.Println()
	if err != nil {
		return "", oops.Code("PASSWORD_READ_FAILED").Wrap(err)
	}
	cmd.Print("Confirm password: ")
	second, err := term.ReadPassword(fd)
	cmd.Println()
	if err != nil {
		return "", oops.Code("PASSWORD_READ_FAILED").Wrap(err)
	}
	if string(first) != string(second) {
		return "", oops.Code("PASSWORD_MISMATCH").Errorf("passwords do not match")
	}
	if len(first) == 0 {
		return "", oops.Code("AUTH_EMPTY_PASSWORD").Wrap(auth.ErrEmptyPassword)
	}
	return string(first), nil
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

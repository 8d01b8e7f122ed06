// Command spacechat is the terminal client for space-dan chat.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"spacedan/client/internal/api"
	"spacedan/client/internal/netcfg"
	"spacedan/shared/logging"

	"github.com/spf13/cobra"
)

var envFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "spacechat",
		Short:         "Realtime chat with the space-dan crew",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&envFile, "env", ".env", "optional env file")
	root.AddCommand(registerCmd(), loginCmd(), logoutCmd(), chatCmd())
	return root
}

// setup loads the config and sends logs to the profile's log file so they
// don't tear the TUI.
func setup() (*netcfg.Config, *api.Client, error) {
	cfg, err := netcfg.Load(envFile)
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	logging.Setup(logging.Config{Level: cfg.LogLevel, File: cfg.LogFile})
	return cfg, api.New(cfg.APIBase, cfg.Path("session.json")), nil
}

func credentials(cmd *cobra.Command, args []string) (string, string, error) {
	in := bufio.NewReader(cmd.InOrStdin())
	user := ""
	if len(args) > 0 {
		user = args[0]
	}
	if user == "" {
		fmt.Fprint(cmd.OutOrStdout(), "Username: ")
		line, _ := in.ReadString('\n')
		user = strings.TrimSpace(line)
	}
	pass, _ := cmd.Flags().GetString("password")
	if pass == "" {
		pass = os.Getenv("SPACEDAN_PASSWORD")
	}
	if pass == "" {
		fmt.Fprint(cmd.OutOrStdout(), "Password: ")
		line, _ := in.ReadString('\n')
		pass = strings.TrimRight(line, "\r\n")
	}
	if user == "" || pass == "" {
		return "", "", errors.New("username and password are required")
	}
	return user, pass, nil
}

func registerCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "register [username]",
		Short: "Create an account",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, client, err := setup()
			if err != nil {
				return err
			}
			user, pass, err := credentials(cmd, args)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()
			if err := client.Register(ctx, user, pass); err != nil {
				return err
			}
			if _, err := client.Login(ctx, user, pass); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Welcome aboard, %s. Run `spacechat chat` to join.\n", user)
			return nil
		},
	}
	c.Flags().String("password", "", "password (prompted when empty)")
	return c
}

func loginCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "login [username]",
		Short: "Sign in and remember the session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, client, err := setup()
			if err != nil {
				return err
			}
			user, pass, err := credentials(cmd, args)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()
			s, err := client.Login(ctx, user, pass)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%d coins).\n", s.Username, s.Profile.Balance)
			return nil
		},
	}
	c.Flags().String("password", "", "password (prompted when empty)")
	return c
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, client, err := setup()
			if err != nil {
				return err
			}
			return client.ClearSession()
		},
	}
}

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Open the chat",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, client, err := setup()
			if err != nil {
				return err
			}
			s := client.LoadSession()
			if s == nil {
				return errors.New("not signed in: run `spacechat login` first")
			}
			return runChat(cmd.Context(), cfg, s)
		},
	}
}

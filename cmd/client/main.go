package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mbeoliero/hearth/internal/config"
	"github.com/mbeoliero/hearth/sdk"
	"github.com/mbeoliero/hearth/sdk/chat"
	"github.com/mbeoliero/kit/log"
	"github.com/spf13/cobra"
)

type flags struct {
	configPath string
	baseURL    string
	wsURL      string
	email      string
	password   string
}

func main() {
	var f flags

	rootCmd := &cobra.Command{
		Use:   "hearth",
		Short: "Chat with homeowners, designers and freelancers from the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), &f)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&f.configPath, "config", "c", os.Getenv("HEARTH_CLIENT_CONFIG"), "client config file")
	rootCmd.PersistentFlags().StringVar(&f.baseURL, "base-url", "", "HTTP API base url")
	rootCmd.PersistentFlags().StringVar(&f.wsURL, "ws-url", "", "realtime websocket url")
	rootCmd.PersistentFlags().StringVarP(&f.email, "email", "e", "", "account email")
	rootCmd.PersistentFlags().StringVarP(&f.password, "password", "p", "", "account password")

	rootCmd.AddCommand(newRegisterCmd(&f))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRegisterCmd(f *flags) *cobra.Command {
	var req sdk.RegisterRequest

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(f)
			if err != nil {
				return err
			}
			client, err := sdk.NewClient(cfg.Server.BaseURL)
			if err != nil {
				return err
			}

			req.Email = cfg.Auth.Email
			req.Password = cfg.Auth.Password
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timeout)
			defer cancel()
			profile, err := client.Register(ctx, &req)
			if err != nil {
				return fmt.Errorf("register: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s (%s) as %s\n", profile.FullName, profile.Email, profile.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.FullName, "name", "", "full name")
	cmd.Flags().StringVar(&req.Role, "role", sdk.RoleHomeowner, "homeowner, designer or freelancer")
	cmd.Flags().StringVar(&req.Phone, "phone", "", "phone number")
	cmd.Flags().StringVar(&req.Location, "location", "", "location")
	cmd.Flags().StringVar(&req.Bio, "bio", "", "short bio")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

// loadConfig layers flags over the config file and HEARTH_CLIENT_* variables
func loadConfig(f *flags) (*config.ClientConfig, error) {
	cfg, err := config.LoadClient(f.configPath)
	if err != nil {
		return nil, err
	}
	if f.baseURL != "" {
		cfg.Server.BaseURL = f.baseURL
	}
	if f.wsURL != "" {
		cfg.Server.WSURL = f.wsURL
	}
	if f.email != "" {
		cfg.Auth.Email = f.email
	}
	if f.password != "" {
		cfg.Auth.Password = f.password
	}
	if cfg.Auth.Email == "" || cfg.Auth.Password == "" {
		return nil, fmt.Errorf("email and password are required")
	}
	return cfg, nil
}

func runChat(ctx context.Context, f *flags) error {
	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}

	client, err := sdk.NewClient(cfg.Server.BaseURL)
	if err != nil {
		return err
	}

	loginCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	resp, err := client.Login(loginCtx, &sdk.LoginRequest{Email: cfg.Auth.Email, Password: cfg.Auth.Password})
	cancel()
	if err != nil {
		return fmt.Errorf("sign in: %w", err)
	}
	log.CtxInfo(ctx, "signed in: user_id=%s", resp.Profile.Id)

	session, err := chat.NewSession(resp.Profile)
	if err != nil {
		return err
	}

	realtime := sdk.NewRealtime(cfg.Server.WSURL, client.GetToken)
	defer realtime.Close()

	inbox, err := chat.NewInbox(client, realtime, session, chat.WithTimeout(cfg.Timeout), chat.WithPresence(client))
	if err != nil {
		return err
	}
	defer inbox.Close()

	r := newRepl(inbox, client, session, os.Stdin, os.Stdout, cfg.Timeout)
	if err := inbox.Start(ctx); err != nil {
		fmt.Fprintf(os.Stdout, "failed to load conversations: %v (type /reload to retry)\n", err)
	}
	err = r.run(ctx)

	logoutCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	if lerr := client.Logout(logoutCtx); lerr != nil {
		log.CtxWarn(ctx, "logout failed: %v", lerr)
	}
	return err
}

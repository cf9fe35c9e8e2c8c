package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"smugsync/internal/config"
)

type loginFlags struct {
	key         string
	secret      string
	token       string
	tokenSecret string
	noVerify    bool
}

func newLoginCmd(a *app) *cobra.Command {
	f := &loginFlags{}
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store the API key and OAuth access token in the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			auth := config.AuthConfig{
				APIKey:            f.key,
				APISecret:         f.secret,
				AccessToken:       f.token,
				AccessTokenSecret: f.tokenSecret,
			}
			// 未提供的参数从环境变量 / 已有配置补全
			cur := a.credentials()
			if auth.APIKey == "" {
				auth.APIKey = cur.APIKey
			}
			if auth.APISecret == "" {
				auth.APISecret = cur.APISecret
			}
			if auth.AccessToken == "" {
				auth.AccessToken = cur.AccessToken
			}
			if auth.AccessTokenSecret == "" {
				auth.AccessTokenSecret = cur.AccessTokenSecret
			}
			if !auth.LoggedIn() {
				return errors.New("api key, api secret, access token and access token secret are all required")
			}

			if !f.noVerify {
				if _, err := a.newRemote(auth, "").Root(cmd.Context()); err != nil {
					return fatal(fmt.Errorf("verify credentials: %w", err))
				}
			}

			err := config.Update(a.cfgPath, func(c *config.Config) error {
				c.Auth = auth
				return nil
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in. Credentials saved to %s.\n", a.cfgPath)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.key, "api-key", "", "SmugMug API key")
	flags.StringVar(&f.secret, "api-secret", "", "SmugMug API secret")
	flags.StringVar(&f.token, "token", "", "OAuth access token")
	flags.StringVar(&f.tokenSecret, "token-secret", "", "OAuth access token secret")
	flags.BoolVar(&f.noVerify, "no-verify", false, "save without checking the credentials")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove stored credentials from the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := config.Update(a.cfgPath, func(c *config.Config) error {
				c.Auth = config.AuthConfig{}
				return nil
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/quipper/poc/classroom/be/internal/config"
	"github.com/quipper/poc/classroom/be/pkg/common/keys"
)

func newTokenCmd() *cobra.Command {
	var t keys.TeacherToken
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a teacher access token signed with the platform key",
		Long: `Mints an RS256 access token for the classroom API. The server only accepts it
when both share PLATFORM_PRIVATE_KEY_PEM or PLATFORM_PRIVATE_KEY_B64 and PLATFORM_KID.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFromEnv()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("issuer") {
				t.Issuer = cfg.Auth.Issuer
			}
			if !cmd.Flags().Changed("audience") {
				t.Audience = cfg.Auth.Audience
			}
			if !cmd.Flags().Changed("ttl") {
				t.TTL = cfg.Auth.TokenTTL
			}
			signed, err := keys.Issue(t)
			if err != nil {
				return fmt.Errorf("issue token: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), signed)
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&t.Subject, "sub", "", "teacher ID (token subject)")
	f.StringVar(&t.Email, "email", "", "teacher email claim")
	f.StringVar(&t.Name, "name", "", "teacher display name claim")
	f.StringSliceVar(&t.Scopes, "scope", []string{"classes"}, "granted scopes (classes, classes.readonly)")
	f.DurationVar(&t.TTL, "ttl", time.Hour, "token lifetime (default AUTH_TOKEN_TTL)")
	f.StringVar(&t.Issuer, "issuer", "", "iss claim (default PLATFORM_ISSUER)")
	f.StringVar(&t.Audience, "audience", "", "aud claim (default AUTH_AUDIENCE)")
	_ = cmd.MarkFlagRequired("sub")
	return cmd
}

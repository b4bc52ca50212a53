package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"wfnotifier/internal/credentials"
)

const initFile = "./init.txt"

var initFlags struct {
	clientID     string
	clientSecret string
	accessToken  string
	refreshToken string
	expiresAt    string
	credentials  string
}

// initCmd writes the twitch credential file.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Store twitch application credentials",
	Long: `Store the twitch client id/secret and a user token pair.

Tokens come from --access-token/--refresh-token/--expires-at, or from
./init.txt (the output of the twitch token generator), which is removed
once the credentials are written.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	f := initCmd.Flags()
	f.StringVar(&initFlags.clientID, "id", "", "twitch application client id")
	f.StringVar(&initFlags.clientSecret, "secret", "", "twitch application client secret")
	f.StringVar(&initFlags.accessToken, "access-token", "", "user access token")
	f.StringVar(&initFlags.refreshToken, "refresh-token", "", "user refresh token")
	f.StringVar(&initFlags.expiresAt, "expires-at", "", `token expiry, e.g. "2025-01-02 15:04:05.999 +0200 CEST"`)
	f.StringVar(&initFlags.credentials, "credentials", credentials.DefaultPath, "credential file to write")
	_ = initCmd.MarkFlagRequired("id")
	_ = initCmd.MarkFlagRequired("secret")
}

func runInit(cmd *cobra.Command, _ []string) error {
	access, refresh := initFlags.accessToken, initFlags.refreshToken
	var expires *time.Time
	fromFile := false

	switch {
	case access != "" && refresh != "":
		if s := strings.TrimSpace(initFlags.expiresAt); s != "" {
			t, err := credentials.ParseExpiry(s)
			if err != nil {
				return fmt.Errorf("--expires-at: %w", err)
			}
			expires = &t
		}
	case access != "" || refresh != "":
		return errors.New("--access-token and --refresh-token go together")
	default:
		b, err := os.ReadFile(initFile)
		if err != nil {
			return fmt.Errorf("no tokens given and %s is unreadable: %w", initFile, err)
		}
		a, r, exp, err := credentials.ParseInitFile(string(b))
		if err != nil {
			return fmt.Errorf("%s: %w", initFile, err)
		}
		access, refresh, expires, fromFile = a, r, &exp, true
	}

	store := credentials.NewStore(initFlags.credentials)
	err := store.Update(credentials.Token{
		ClientID:     initFlags.clientID,
		ClientSecret: initFlags.clientSecret,
		AccessToken:  access,
		RefreshToken: refresh,
		CreatedAt:    time.Now().UTC(),
		ExpiresAt:    expires,
	})
	if err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	if fromFile {
		if err := os.Remove(initFile); err != nil {
			return fmt.Errorf("remove %s: %w", initFile, err)
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "credentials written to %s\n", store.Path())
	return nil
}

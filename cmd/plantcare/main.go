// Command plantcare is a terminal client for the plant care API.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"plantcareapi/pkg/client"

	"github.com/joho/godotenv"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type globalFlags struct {
	url      string
	email    string
	password string
	verbose  bool

	// set by session, logged out when the command ends
	client *client.Client
}

func getenv(key string, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newRootCmd() *cobra.Command {

	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:           "plantcare",
		Short:         "Manage your plants from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if flags.client == nil {
			return nil
		}
		return flags.client.Logout(cmd.Context())
	}

	rootCmd.PersistentFlags().StringVar(&flags.url, "url", getenv("PLANTCARE_URL", "http://localhost:8080"), "API base url")
	rootCmd.PersistentFlags().StringVar(&flags.email, "email", os.Getenv("PLANTCARE_EMAIL"), "Account email")
	rootCmd.PersistentFlags().StringVar(&flags.password, "password", os.Getenv("PLANTCARE_PASSWORD"), "Account password")
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Log debug output")

	rootCmd.AddCommand(newIdentifyCmd(flags))
	rootCmd.AddCommand(newPlantsCmd(flags))
	rootCmd.AddCommand(newWhoamiCmd(flags))

	return rootCmd

}

// session returns a logged in client.
func session(ctx context.Context, flags *globalFlags) (*client.Client, error) {

	logger := zap.NewNop()
	if flags.verbose {
		var err error
		if logger, err = zap.NewDevelopment(); err != nil {
			return nil, err
		}
	}

	if flags.email == "" || flags.password == "" {
		return nil, errors.New("email and password are required (--email/--password or PLANTCARE_EMAIL/PLANTCARE_PASSWORD)")
	}

	c, err := client.New(flags.url, logger)
	if err != nil {
		return nil, err
	}

	spinner, _ := pterm.DefaultSpinner.Start("Anmelden...")
	if _, err := c.Login(ctx, flags.email, flags.password); err != nil {
		spinner.Fail("Anmeldung fehlgeschlagen")
		return nil, err
	}
	spinner.Success("Angemeldet als " + flags.email)
	flags.client = c

	return c, nil

}

func newWhoamiCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := session(cmd.Context(), flags)
			if err != nil {
				return err
			}
			user, err := c.CurrentUser(cmd.Context())
			if err != nil {
				return err
			}
			pterm.Info.Printfln("%s (%s)", user.Email, user.Id)
			return nil
		},
	}
}

func main() {

	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}

}

package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cmykflutterby/GogDownloader/internal/auth"
)

func newLoginCmd() *cobra.Command {
	var code string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate with GOG and store the session token",
		Long: `Authenticate against the GOG embed API.

Open the printed URL in a browser, log in, and copy the "code" query
parameter from the address bar of the success page. Pass it with
--code or paste it at the prompt. The resulting token is stored on
disk and refreshed automatically by later commands.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}

			if code == "" {
				fmt.Println("Open this URL in your browser and log in:")
				fmt.Println()
				fmt.Println("  " + auth.LoginURL())
				fmt.Println()
				fmt.Print("Paste the \"code\" parameter from the final page's URL: ")

				line, err := bufio.NewReader(os.Stdin).ReadString('\n')
				if err != nil {
					return fmt.Errorf("read code: %w", err)
				}
				code = strings.TrimSpace(line)
			}
			if code == "" {
				return fmt.Errorf("no authorization code given")
			}

			session := auth.NewSession(settings.TokenPath)
			if err := session.LoginWithCode(cmd.Context(), code); err != nil {
				return err
			}

			logger.Info().Str("token", settings.TokenPath).Msg("Logged in")
			return nil
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "Authorization code from the browser login flow")

	return cmd
}

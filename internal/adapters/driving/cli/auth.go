package cli

import (
	"bufio"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ledgersync/internal/core/domain"
	"github.com/custodia-labs/ledgersync/internal/core/services"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage access to the accounting service",
	Long: `Configure the OAuth app and manage the delegated access tokens.

Client credentials are looked up in the secrets file first, then in
LEDGERSYNC_* environment variables, then in a .env file.

Examples:
  # Store the OAuth app credentials
  ledgersync auth configure --client-id "xxx" --environment sandbox

  # Authorize access to a company in the browser
  ledgersync auth login

  # Show token status
  ledgersync auth status`,
}

var authConfigureCmd = &cobra.Command{
	Use:         "configure",
	Short:       "Store the OAuth app credentials",
	Annotations: withServices,
	RunE:        runAuthConfigure,
}

var authLoginCmd = &cobra.Command{
	Use:         "login",
	Short:       "Authorize access in the browser",
	Annotations: withServices,
	RunE:        runAuthLogin,
}

var authStatusCmd = &cobra.Command{
	Use:         "status",
	Short:       "Show token status",
	Annotations: withServices,
	RunE:        runAuthStatus,
}

var authRefreshCmd = &cobra.Command{
	Use:         "refresh",
	Short:       "Refresh the access token now",
	Annotations: withServices,
	RunE:        runAuthRefresh,
}

var authDisconnectCmd = &cobra.Command{
	Use:         "disconnect",
	Short:       "Forget the stored tokens",
	Annotations: withServices,
	RunE:        runAuthDisconnect,
}

// Flags for auth configure.
var (
	authClientID     string
	authClientSecret string
	authTenantID     string
	authEnvironment  string
	authRedirectURI  string
)

func init() {
	authConfigureCmd.Flags().StringVar(
		&authClientID, "client-id", "", "OAuth client ID (for non-interactive mode)")
	authConfigureCmd.Flags().StringVar(
		&authClientSecret, "client-secret", "", "OAuth client secret (for non-interactive mode)")
	authConfigureCmd.Flags().StringVar(
		&authTenantID, "tenant-id", "", "Company (realm) ID, if already known")
	authConfigureCmd.Flags().StringVar(
		&authEnvironment, "environment", "", "sandbox or production")
	authConfigureCmd.Flags().StringVar(
		&authRedirectURI, "redirect-uri", "", "Loopback redirect URI registered with the app (default "+domain.DefaultRedirectURI+")")

	authCmd.AddCommand(authConfigureCmd)
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authRefreshCmd)
	authCmd.AddCommand(authDisconnectCmd)
	rootCmd.AddCommand(authCmd)
}

type secretValue struct {
	name  string
	value string
}

func runAuthConfigure(cmd *cobra.Command, _ []string) error {
	if secretWriter == nil {
		return errors.New("secret store not configured")
	}
	ctx := cmd.Context()

	clientID, clientSecret := authClientID, authClientSecret
	if clientID == "" {
		reader := bufio.NewReader(stdin)
		cmd.Print("Client ID: ")
		clientID = readLine(reader)
		if clientSecret == "" {
			cmd.Print("Client secret (leave empty for a public client): ")
			clientSecret = readPassword(reader)
			cmd.Println()
		}
	}
	if clientID == "" {
		return fmt.Errorf("%w: client id is required", domain.ErrInvalidInput)
	}

	values := []secretValue{
		{services.SecretClientID, clientID},
		{services.SecretClientSecret, clientSecret},
		{services.SecretTenantID, authTenantID},
		{services.SecretRedirectURI, authRedirectURI},
	}
	if authEnvironment != "" {
		env, err := domain.ParseEnvironment(authEnvironment)
		if err != nil {
			return err
		}
		values = append(values, secretValue{services.SecretEnvironment, string(env)})
	}

	for _, v := range values {
		if v.value == "" {
			continue
		}
		if err := secretWriter.SetSecret(ctx, v.name, v.value); err != nil {
			return fmt.Errorf("failed to store %s: %w", v.name, err)
		}
	}

	cmd.Printf("Client ID: %s\n", clientID)
	if clientSecret != "" {
		cmd.Printf("Client secret: %s\n", maskSecret(clientSecret))
	}
	cmd.Println("Credentials saved. Run 'ledgersync auth login' to authorize.")
	return nil
}

func runAuthLogin(cmd *cobra.Command, _ []string) error {
	if tokenLifecycle == nil {
		return errors.New("token service not configured")
	}
	ctx := cmd.Context()

	cmd.Println("Waiting for authorization in the browser...")
	if _, err := tokenLifecycle.AcquireInteractive(ctx); err != nil {
		return fmt.Errorf("authorization failed: %w", err)
	}

	status, err := tokenLifecycle.Status(ctx)
	if err != nil {
		return err
	}
	cmd.Println("Authorization successful.")
	if status.TenantID != "" {
		cmd.Printf("Company: %s\n", status.TenantID)
	}
	return nil
}

func runAuthStatus(cmd *cobra.Command, _ []string) error {
	if tokenLifecycle == nil {
		return errors.New("token service not configured")
	}

	status, err := tokenLifecycle.Status(cmd.Context())
	if err != nil {
		return err
	}

	cmd.Printf("State:          %s\n", describePhase(status.Phase))
	cmd.Printf("Company:        %s\n", valueOr(status.TenantID, "(unknown)"))
	cmd.Printf("Access token:   %s\n", describeExpiry(status.HasAccessToken, status.AccessTokenExpiry))
	cmd.Printf("Refresh token:  %s\n", describeExpiry(status.HasRefreshToken, status.RefreshTokenExpiry))
	if status.Phase == domain.PhaseRefreshFailed || status.Phase == domain.PhaseNoToken {
		cmd.Println("\nRun 'ledgersync auth login' to authorize.")
	}
	return nil
}

func runAuthRefresh(cmd *cobra.Command, _ []string) error {
	if tokenLifecycle == nil {
		return errors.New("token service not configured")
	}

	if err := tokenLifecycle.Refresh(cmd.Context()); err != nil {
		if domain.IsAuthorizationError(err) {
			return fmt.Errorf("refresh failed: %w (run 'ledgersync auth login')", err)
		}
		return fmt.Errorf("refresh failed: %w", err)
	}

	status, err := tokenLifecycle.Status(cmd.Context())
	if err != nil {
		return err
	}
	cmd.Printf("Access token refreshed, valid until %s.\n", status.AccessTokenExpiry.Local().Format(time.RFC1123))
	return nil
}

func runAuthDisconnect(cmd *cobra.Command, _ []string) error {
	if tokenLifecycle == nil {
		return errors.New("token service not configured")
	}

	if err := tokenLifecycle.Disconnect(cmd.Context()); err != nil {
		return fmt.Errorf("disconnect failed: %w", err)
	}
	cmd.Println("Tokens removed.")
	return nil
}

func describePhase(phase domain.AuthPhase) string {
	switch phase {
	case domain.PhaseAuthorized:
		return "authorized"
	case domain.PhaseAuthorizing:
		return "authorization in progress"
	case domain.PhaseRefreshing:
		return "refreshing"
	case domain.PhaseRefreshFailed:
		return "refresh token rejected"
	default:
		return "not authorized"
	}
}

func describeExpiry(present bool, expiry time.Time) string {
	switch {
	case !present:
		return "none"
	case expiry.IsZero():
		return "present"
	case time.Until(expiry) <= 0:
		return fmt.Sprintf("expired %s", expiry.Local().Format(time.RFC1123))
	default:
		return fmt.Sprintf("valid until %s", expiry.Local().Format(time.RFC1123))
	}
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

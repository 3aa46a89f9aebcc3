package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"describer/pkg/auth"
	"describer/pkg/ui"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage posting credentials",
	Long: `Manage stored OAuth 1.0a credentials for the bot accounts.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (read only)

Never share your credentials or config files!`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [screen_name]",
	Short: "Store credentials for a bot account",
	Long: `Store the consumer key, consumer secret, access token and access secret of
a bot account in the system keychain or the encrypted file.

Secrets are read without echo when stdin is a terminal.`,
	Example: `  # Interactive login
  describer auth login

  # Login for a known account
  describer auth login cityporn_bot`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout [screen_name]",
	Short: "Remove stored credentials",
	Long: `Remove stored credentials.

If no screen name is provided, you will be shown a list of stored accounts
to choose from. You can also remove all accounts at once.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogout,
}

// listCmd represents the auth list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored accounts",
	Long:  `List all stored bot accounts with masked credentials.`,
	Run:   runList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)
}

func runLogin(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		fatal("Failed to initialize credential manager", err)
	}

	reader := bufio.NewReader(os.Stdin)
	auth.ShowCredentialGuide(os.Stdout)

	var screenName string
	if len(args) > 0 {
		screenName = args[0]
	} else {
		screenName = prompt(reader, "Screen name: ")
	}
	screenName = strings.TrimPrefix(strings.TrimSpace(screenName), "@")
	if screenName == "" {
		ui.PrintError("Screen name is required")
		os.Exit(1)
	}

	if existing, _ := manager.Retrieve(screenName); existing != nil {
		answer := prompt(reader, fmt.Sprintf("Account '%s' already exists. Update credentials? (y/N): ", screenName))
		if !strings.HasPrefix(strings.ToLower(answer), "y") {
			return
		}
	}

	fmt.Println("\nEnter the app and account credentials (hidden as you type):")
	account := &auth.Account{
		ScreenName:     screenName,
		ConsumerKey:    readSecret(reader, "Consumer key: "),
		ConsumerSecret: readSecret(reader, "Consumer secret: "),
		AccessToken:    readSecret(reader, "Access token: "),
		AccessSecret:   readSecret(reader, "Access secret: "),
		LastModified:   time.Now(),
	}

	if err := account.Validate(); err != nil {
		fatal("Invalid credentials", err)
	}

	if err := manager.Store(account); err != nil {
		fatal("Failed to store credentials", err)
	}

	ui.PrintSuccess("Account saved: " + screenName)
	printAccount(os.Stdout, 0, auth.SanitizeAccount(account))
	fmt.Println("Post with this account:")
	fmt.Printf("  describer run reddit --account %s\n", screenName)
}

func runLogout(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		fatal("Failed to initialize credential manager", err)
	}

	if len(args) > 0 {
		if err := manager.Delete(args[0]); err != nil {
			fatal("Failed to remove account", err)
		}
		ui.PrintSuccess("Account removed: " + args[0])
		return
	}

	accounts, err := manager.List()
	if err != nil || len(accounts) == 0 {
		ui.PrintError("No stored accounts found")
		return
	}

	reader := bufio.NewReader(os.Stdin)
	fmt.Println("Select account to remove:")
	for i, account := range accounts {
		fmt.Printf("  %d. %s\n", i+1, account.ScreenName)
	}
	fmt.Printf("  %d. Remove all accounts\n", len(accounts)+1)
	fmt.Printf("  0. Cancel\n\n")

	var choice int
	fmt.Sscanf(prompt(reader, "Choice: "), "%d", &choice)

	switch {
	case choice == 0:
		return
	case choice == len(accounts)+1:
		if prompt(reader, "Remove ALL accounts? This cannot be undone! (yes/N): ") != "yes" {
			return
		}
		if err := manager.DeleteAll(); err != nil {
			fatal("Failed to remove all accounts", err)
		}
		ui.PrintSuccess("All accounts removed")
	case choice > 0 && choice <= len(accounts):
		name := accounts[choice-1].ScreenName
		if err := manager.Delete(name); err != nil {
			fatal("Failed to remove account", err)
		}
		ui.PrintSuccess("Account removed: " + name)
	default:
		ui.PrintError("Invalid choice")
		os.Exit(1)
	}
}

func runList(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		fatal("Failed to initialize credential manager", err)
	}

	accounts, err := manager.List()
	if err != nil {
		fatal("Failed to list accounts", err)
	}

	if len(accounts) == 0 {
		ui.PrintInfo("No stored accounts", "Use 'describer auth login' to add an account")
		return
	}

	ui.PrintHighlight("Stored Accounts")
	fmt.Println()
	for i, account := range accounts {
		printAccount(os.Stdout, i+1, auth.SanitizeAccount(account))
	}
}

// printAccount prints a sanitized account; n > 0 numbers the entry
func printAccount(w io.Writer, n int, a *auth.Account) {
	if n > 0 {
		fmt.Fprintf(w, "%d. Screen name: %s\n", n, a.ScreenName)
	} else {
		fmt.Fprintf(w, "   Screen name: %s\n", a.ScreenName)
	}
	fmt.Fprintf(w, "   Consumer key: %s\n", a.ConsumerKey)
	fmt.Fprintf(w, "   Access token: %s\n", a.AccessToken)
	if !a.LastModified.IsZero() {
		fmt.Fprintf(w, "   Last modified: %s\n", a.LastModified.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintln(w)
}

func prompt(reader *bufio.Reader, label string) string {
	fmt.Print(label)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

// readSecret reads a value without echo when stdin is a terminal
func readSecret(reader *bufio.Reader, label string) string {
	fmt.Print(label)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		secret, err := term.ReadPassword(fd)
		fmt.Println()
		if err == nil {
			return strings.TrimSpace(string(secret))
		}
	}
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

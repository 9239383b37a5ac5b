// Command accounts manages the proxy's Google account pool: OAuth sign-in,
// listing, verification and removal.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/poemonsense/antigravity-openai-proxy/internal/auth"
	"github.com/poemonsense/antigravity-openai-proxy/internal/config"
)

func main() {
	args := os.Args[1:]
	command := ""
	noBrowser := false
	for _, arg := range args {
		switch {
		case arg == "--no-browser":
			noBrowser = true
		case !strings.HasPrefix(arg, "-") && command == "":
			command = arg
		}
	}
	if command == "" {
		command = "add"
	}

	cfg := config.FromEnv()
	store := auth.NewStore(cfg.AccountsPath())
	scanner := bufio.NewScanner(os.Stdin)

	switch command {
	case "add":
		addAccount(cfg, store, scanner, noBrowser)
	case "list":
		listAccounts(store)
	case "remove":
		removeAccount(store, scanner)
	case "clear":
		clearAccounts(store, scanner)
	case "verify":
		verifyAccounts(store)
	case "doctor":
		doctor()
	case "help":
		printHelp()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printHelp()
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println("Usage:")
	fmt.Println("  accounts add        Sign in a Google account (opens browser)")
	fmt.Println("  accounts list       List stored accounts")
	fmt.Println("  accounts remove     Remove one account")
	fmt.Println("  accounts clear      Remove all accounts")
	fmt.Println("  accounts verify     Check each account's refresh token")
	fmt.Println("  accounts doctor     Inspect the local Antigravity installation")
	fmt.Println("\nOptions:")
	fmt.Println("  --no-browser        Paste the callback URL manually (headless machines)")
}

func addAccount(cfg *config.Config, store *auth.Store, scanner *bufio.Scanner, noBrowser bool) {
	pkce, err := auth.GeneratePKCE()
	if err != nil {
		fatal("generating PKCE: %v", err)
	}
	state, err := auth.GenerateState()
	if err != nil {
		fatal("generating state: %v", err)
	}
	authURL := auth.GetAuthorizationURL(pkce.Challenge, state)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.CallbackTimeout+30*time.Second)
	defer cancel()

	var code string
	if noBrowser {
		fmt.Println("\nOpen this URL in a browser and sign in:")
		fmt.Println("\n  " + authURL)
		fmt.Println("\nAfter approving, paste the full callback URL (or just the code):")
		fmt.Print("> ")
		if !scanner.Scan() {
			fatal("no input")
		}
		code = auth.ExtractCodeFromInput(scanner.Text())
		if code == "" {
			fatal("no authorization code found in input")
		}
	} else {
		callback, err := auth.NewCallbackServer(state)
		if err != nil {
			fatal("%v (is another add in progress? use --no-browser on headless machines)", err)
		}
		fmt.Println("\nOpening browser for Google sign-in...")
		fmt.Println("If nothing opens, visit:\n\n  " + authURL + "\n")
		openBrowser(authURL)

		code, err = callback.WaitForCode(ctx, cfg.CallbackTimeout)
		if err != nil {
			fatal("waiting for authorization: %v", err)
		}
	}

	fmt.Println("Exchanging authorization code...")
	result, err := auth.CompleteOAuthFlow(ctx, code, pkce.Verifier)
	if err != nil {
		fatal("completing sign-in: %v", err)
	}

	existing := store.Get(result.Email) != nil
	if err := store.AddOrUpdate(result.Email, result.RefreshToken, result.ProjectID); err != nil {
		fatal("saving account: %v", err)
	}
	if existing {
		fmt.Printf("\nUpdated account %s (project %s)\n", result.Email, result.ProjectID)
	} else {
		fmt.Printf("\nAdded account %s (project %s)\n", result.Email, result.ProjectID)
	}
	fmt.Printf("Accounts on file: %d\n", store.Len())
}

func listAccounts(store *auth.Store) {
	accounts := store.List()
	if len(accounts) == 0 {
		fmt.Println("No accounts configured. Run \"accounts add\" to sign one in.")
		return
	}
	fmt.Printf("%d account(s) in %s:\n\n", len(accounts), store.Path())
	for i, acc := range accounts {
		project := acc.ProjectID
		if project == "" {
			project = "(discovered on first use)"
		}
		fmt.Printf("  %d. %s  project=%s\n", i+1, acc.Email, project)
	}
}

func removeAccount(store *auth.Store, scanner *bufio.Scanner) {
	accounts := store.List()
	if len(accounts) == 0 {
		fmt.Println("No accounts to remove.")
		return
	}
	listAccounts(store)
	fmt.Print("\nEmail to remove: ")
	if !scanner.Scan() {
		return
	}
	email := strings.TrimSpace(scanner.Text())
	removed, err := store.Remove(email)
	if err != nil {
		fatal("removing account: %v", err)
	}
	if !removed {
		fmt.Printf("No account with email %s\n", email)
		return
	}
	fmt.Printf("Removed %s\n", email)
}

func clearAccounts(store *auth.Store, scanner *bufio.Scanner) {
	n := store.Len()
	if n == 0 {
		fmt.Println("No accounts to clear.")
		return
	}
	fmt.Printf("Remove all %d account(s)? [y/N] ", n)
	if !scanner.Scan() || strings.ToLower(strings.TrimSpace(scanner.Text())) != "y" {
		fmt.Println("Aborted.")
		return
	}
	if err := store.Clear(); err != nil {
		fatal("clearing accounts: %v", err)
	}
	fmt.Println("All accounts removed.")
}

func verifyAccounts(store *auth.Store) {
	accounts := store.List()
	if len(accounts) == 0 {
		fmt.Println("No accounts to verify.")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	ok := 0
	for _, acc := range accounts {
		fmt.Printf("  %s ... ", acc.Email)
		if _, err := auth.RefreshAccessToken(ctx, acc.Email, acc.RefreshToken); err != nil {
			fmt.Printf("FAILED: %v\n", err)
			continue
		}
		fmt.Println("ok")
		ok++
	}
	fmt.Printf("\n%d/%d account(s) valid.\n", ok, len(accounts))
	if ok < len(accounts) {
		fmt.Println("Re-run \"accounts add\" for failed accounts to re-authorize them.")
	}
}

func doctor() {
	fmt.Println("Checking the local Antigravity installation...")
	path := auth.DefaultStateDBPath()
	if !auth.StateDBAccessible("") {
		fmt.Printf("  state database: not found or unreadable (%s)\n", path)
		fmt.Println("  The proxy does not need the desktop app; this only affects \"doctor\".")
		return
	}
	fmt.Printf("  state database: %s\n", path)
	status, err := auth.ReadAppAuthStatus("")
	if err != nil {
		fmt.Printf("  signed-in identity: unavailable (%v)\n", err)
		return
	}
	fmt.Printf("  signed-in identity: %s", status.Email)
	if status.Name != "" {
		fmt.Printf(" (%s)", status.Name)
	}
	fmt.Println()
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", "", strings.ReplaceAll(url, "&", "^&"))
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		fmt.Println("Could not open a browser automatically; use the URL above.")
	}
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

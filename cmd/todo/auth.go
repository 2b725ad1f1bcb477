package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var loginCmd = &cobra.Command{
	Use:   "login EMAIL",
	Short: "Sign in to your cloud account",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a := mustApp(ctx)
		defer a.close()
		a.requireCloud()

		password, err := readPassword("Password: ")
		if err != nil {
			fatal(err)
		}
		if err := a.provider.SignIn(ctx, args[0], password); err != nil {
			fatal(err)
		}
		fmt.Printf("Signed in as %s\n", args[0])
	},
}

var signupCmd = &cobra.Command{
	Use:   "signup EMAIL",
	Short: "Create a cloud account",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a := mustApp(ctx)
		defer a.close()
		a.requireCloud()

		password, err := readPassword("Password: ")
		if err != nil {
			fatal(err)
		}
		confirm, err := readPassword("Confirm password: ")
		if err != nil {
			fatal(err)
		}
		if password != confirm {
			fatal(fmt.Errorf("passwords do not match"))
		}
		if err := a.provider.SignUp(ctx, args[0], password); err != nil {
			fatal(err)
		}
		fmt.Printf("Account created for %s\n", args[0])
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and clear the cached session",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a := mustApp(ctx)
		defer a.close()
		a.requireCloud()

		if err := a.provider.SignOut(ctx); err != nil {
			fatal(err)
		}
		fmt.Println("Signed out")
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in account",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a := mustApp(ctx)
		defer a.close()

		user := a.provider.CurrentUser()
		if user == nil {
			fmt.Println("Not signed in")
			return
		}
		fmt.Printf("%s (%s)\n", user.Email, user.ID)
	},
}

func init() {
	rootCmd.AddCommand(loginCmd, signupCmd, logoutCmd, whoamiCmd)
}

// readPassword reads without echo when stdin is a terminal, with echo
// otherwise so the commands stay scriptable.
func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		data, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

type command struct {
	name    string
	help    string
	authed  bool
	handler func(a *App, ctx context.Context) error
}

var commands = []command{
	{"ping", "check the server is reachable", false, (*App).Ping},
	{"register", "create an account", false, (*App).Register},
	{"login", "log in", false, (*App).Login},
	{"keygen", "generate an RSA encryption key pair", false, (*App).Keygen},
	{"keygen-signing", "generate an ECDSA signing key pair", false, (*App).KeygenSigning},
	{"enroll-key", "upload your encryption public key", true, (*App).EnrollKey},
	{"enroll-signing-key", "upload your signing public key", true, (*App).EnrollSigningKey},
	{"create-repo", "register a repository (leaders)", true, (*App).CreateRepository},
	{"add-member", "add a member to a repository", true, (*App).AddMember},
	{"activate", "activate an account (seniors)", true, func(a *App, ctx context.Context) error { return a.SetStatus(ctx, true) }},
	{"deactivate", "deactivate an account (seniors)", true, func(a *App, ctx context.Context) error { return a.SetStatus(ctx, false) }},
	{"verify", "verify an account (seniors)", true, (*App).Verify},
	{"set-role", "change an account role (seniors)", true, (*App).SetRole},
	{"protect", "escrow a repository snapshot (leaders)", true, (*App).Protect},
}

func findCommand(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func (a *App) getStatus() string {
	if a.email == "" {
		return ""
	}
	return fmt.Sprintf("(%s) ", a.email)
}

func (a *App) printHelp() {
	fmt.Fprintln(a.out, "Available commands:")
	for _, c := range commands {
		if c.authed && !a.isLoggedIn() {
			continue
		}
		fmt.Fprintf(a.out, "  %-20s %s\n", c.name, c.help)
	}
	fmt.Fprintf(a.out, "  %-20s %s\n", "exit", "leave")
}

// Ping reports whether the server answers.
func (a *App) Ping(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.client.Ping(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Server is online")
	return nil
}

// Root runs the interactive loop until exit, EOF or ctx cancellation.
func (a *App) Root(ctx context.Context) {
	fmt.Fprintln(a.out, "Welcome to escrowctl (type 'help' for commands)")

	for {
		if ctx.Err() != nil {
			return
		}

		fmt.Fprintf(a.out, "escrowctl %s> ", a.getStatus())
		line, err := a.reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			fmt.Fprintln(a.out)
			return
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		switch name := parts[0]; name {
		case "help":
			a.printHelp()
		case "exit", "quit":
			fmt.Fprintln(a.out, "Bye!")
			return
		default:
			c, ok := findCommand(name)
			if !ok {
				fmt.Fprintln(a.out, "Unknown command:", name)
				continue
			}
			if c.authed && !a.isLoggedIn() {
				fmt.Fprintln(a.out, "Please login first")
				continue
			}
			if err := c.handler(a, ctx); err != nil {
				fmt.Fprintln(a.out, "Error:", err)
			}
		}
	}
}

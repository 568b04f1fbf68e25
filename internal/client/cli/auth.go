package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/keyescrow/internal/common"
)

// Register prompts for a display name, email and password and creates an
// inactive developer account. A senior has to activate and verify it.
func (a *App) Register(ctx context.Context) error {
	name, err := a.prompt("Enter name")
	if err != nil {
		return err
	}
	email, err := a.prompt("Enter email")
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	id, err := a.client.Register(ctx, name, email, password)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Registered %s (id %s). Ask a senior to activate and verify the account.\n", email, id)
	return nil
}

// Login authenticates and keeps the access token for later commands.
func (a *App) Login(ctx context.Context) error {
	email, err := a.prompt("Enter email")
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.client.Login(ctx, email, password); err != nil {
		return err
	}

	a.email = email
	fmt.Fprintln(a.out, "Login successful")
	return nil
}

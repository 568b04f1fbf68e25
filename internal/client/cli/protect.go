package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/keyescrow/internal/client/client"
	"github.com/dmitrijs2005/keyescrow/internal/common"
)

// Protect escrows a repository snapshot for the logged-in leader and a
// senior co-recipient. The leader's password is asked again; the server
// checks it independently of the session token.
func (a *App) Protect(ctx context.Context) error {
	repo, err := a.prompt("Repository name")
	if err != nil {
		return err
	}
	tag, err := a.prompt("Tag")
	if err != nil {
		return err
	}
	coRecipient, err := a.prompt("Senior co-recipient email")
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

	res, err := a.client.ProtectRepository(ctx, client.ProtectRequest{
		RequesterEmail:    a.email,
		RequesterPassword: password,
		CoRecipientEmail:  coRecipient,
		Repository:        repo,
		Tag:               tag,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Protected as %s\nYour wrapped key:\n%s\n", res.Alias, res.WrappedKey)
	return nil
}

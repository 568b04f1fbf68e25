package cli

import (
	"context"
	"fmt"
)

// CreateRepository registers a repository owned by the logged-in leader.
func (a *App) CreateRepository(ctx context.Context) error {
	name, err := a.prompt("Repository name")
	if err != nil {
		return err
	}
	description, err := getSimpleText(a.reader, "Description (optional)", a.out)
	if err != nil {
		return err
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	id, err := a.client.CreateRepository(ctx, name, description)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Repository %s created (id %s)\n", name, id)
	return nil
}

func (a *App) AddMember(ctx context.Context) error {
	repo, err := a.prompt("Repository name")
	if err != nil {
		return err
	}
	email, err := a.prompt("Member email")
	if err != nil {
		return err
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.client.AddMember(ctx, repo, email); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s added to %s\n", email, repo)
	return nil
}

// SetStatus activates or deactivates an account (seniors only).
func (a *App) SetStatus(ctx context.Context, active bool) error {
	email, err := a.prompt("Actor email")
	if err != nil {
		return err
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.client.SetActorStatus(ctx, email, active); err != nil {
		return err
	}
	if active {
		fmt.Fprintf(a.out, "%s activated\n", email)
	} else {
		fmt.Fprintf(a.out, "%s deactivated\n", email)
	}
	return nil
}

func (a *App) Verify(ctx context.Context) error {
	email, err := a.prompt("Actor email")
	if err != nil {
		return err
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.client.VerifyActor(ctx, email); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s verified\n", email)
	return nil
}

func (a *App) SetRole(ctx context.Context) error {
	email, err := a.prompt("Actor email")
	if err != nil {
		return err
	}
	role, err := a.prompt("Role (developer, leader, senior)")
	if err != nil {
		return err
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.client.ChangeActorRole(ctx, email, role); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s is now %s\n", email, role)
	return nil
}

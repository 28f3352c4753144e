package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/orgalumni/alumni/core"
	"github.com/orgalumni/alumni/core/user"
)

// createAdmin registers a verified admin. An existing account with the same email is promoted instead,
// keeping its password.
func (cli *commandLine) createAdmin(name, email, pwd, confirm string) error {
	ctx := context.Background()

	usr, err := cli.usrSvc.GetByEmail(ctx, email)
	switch {
	case err == nil:
		_, _ = fmt.Fprintf(cli.out, "%s already exists, promoting\n", usr.Email)
	case core.IsNotFound(err):
		nu := user.NewUser{Name: name, Email: email, Password: pwd, PasswordConfirm: confirm}
		if usr, err = user.ValidateAndRegister(ctx, cli.usrSvc, cli.validate, nu); err != nil {
			return err
		}
	default:
		return errors.Wrap(err, "finding user by email")
	}

	if usr, err = cli.usrSvc.SetAdmin(ctx, usr.ID, true); err != nil {
		return err
	}
	if !usr.IsVerified {
		if usr, err = cli.usrSvc.Verify(ctx, usr.ID); err != nil {
			return err
		}
	}
	_, _ = fmt.Fprintf(cli.out, "admin %s ready\n", usr.Email)
	return nil
}

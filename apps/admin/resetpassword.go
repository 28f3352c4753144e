package main

import (
	"context"
	"fmt"
)

// resetPassword sets a new password without applying the password policy.
func (cli *commandLine) resetPassword(email, pwd string) error {
	ctx := context.Background()
	usr, err := cli.usrSvc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if _, err = cli.usrSvc.SetPassword(ctx, usr.ID, pwd); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "password of %s reset\n", usr.Email)
	return nil
}

func (cli *commandLine) verifyUser(email string) error {
	ctx := context.Background()
	usr, err := cli.usrSvc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if usr.IsVerified {
		_, _ = fmt.Fprintf(cli.out, "%s is already verified\n", usr.Email)
		return nil
	}
	if _, err = cli.usrSvc.Verify(ctx, usr.ID); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "%s verified\n", usr.Email)
	return nil
}

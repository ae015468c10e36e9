package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/stackschool/academy/core"
	"github.com/stackschool/academy/core/user"
)

// addUser updates or creates a user.User
func (cli *commandLine) addUser(uname, email, pwd string, isAdmin, isInstructor bool) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	usr, err := cli.usrRepo.GetUserByUsernameOrEmail(ctx, uname)
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		if usr, err = cli.usrRepo.GetUserByUsernameOrEmail(ctx, email); err != nil {
			if errors.Cause(err) != user.ErrNotFound {
				return err
			}
			usr = user.User{}
		}
	}
	usr.Username = uname
	usr.Email = email

	switch {
	case isAdmin:
		usr.Roles = user.AllRoles
	case isInstructor:
		usr.Roles = []string{user.RoleStudent, user.RoleInstructor}
	case len(usr.Roles) == 0:
		usr.Roles = []string{user.RoleStudent}
	}

	if err := usr.SetPassword(pwd); err != nil {
		return err
	}

	isActive := true
	if usr.ID == "" {
		usr.IsActive = true
		_, err = cli.usrRepo.CreateUser(ctx, usr)
		return err
	}
	_, err = cli.usrRepo.UpdateUser(ctx, usr, &isActive)
	return err
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newUsersCmd(out *printer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "List users, or the posts of one user",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c := appFrom(cmd).client
			if _, err := c.Endpoints.GetUsers.Get(ctx, struct{}{}); err != nil {
				return err
			}
			if len(args) == 0 {
				users := c.SelectAllUsers(ctx)
				rows := make([][]string, len(users))
				for i, u := range users {
					rows[i] = []string{u.ID, u.Name}
				}
				return out.table(cmd.OutOrStdout(), users, "ID\tNAME", rows)
			}

			u, ok := c.SelectUserByID(ctx, args[0])
			if !ok {
				return errUnknownUser(args[0])
			}
			if err := c.FetchPosts(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n\n", u.Name)
			return out.posts(cmd.OutOrStdout(), c.PostsByUser(u.ID))
		},
	}
	return cmd
}

type errUnknownUser string

func (e errUnknownUser) Error() string { return "unknown user " + string(e) }


package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/tagcache/blog"
)

func newNotificationsCmd(out *printer) *cobra.Command {
	var (
		poll     time.Duration
		rounds   int
		markRead bool
	)
	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "Fetch notifications, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a := appFrom(cmd)
			c := a.client
			for i := 0; ; i++ {
				if err := c.FetchNotifications(ctx); err != nil {
					return err
				}
				if markRead {
					c.MarkAllNotificationsRead()
				}
				if poll <= 0 || i+1 >= rounds {
					break
				}
				if a.fake != nil {
					a.fake.Generate(1)
				}
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(poll):
				}
			}

			ns := blog.SelectAllNotifications(c.Store.State())
			rows := make([][]string, len(ns))
			for i, n := range ns {
				flag := ""
				if n.IsNew {
					flag = "*"
				}
				rows[i] = []string{flag, n.Date, n.User, n.Message}
			}
			return out.table(cmd.OutOrStdout(), ns, "NEW\tDATE\tUSER\tMESSAGE", rows)
		},
	}
	cmd.Flags().DurationVar(&poll, "poll", 0, "refetch at this interval")
	cmd.Flags().IntVar(&rounds, "rounds", 3, "number of fetches when polling")
	cmd.Flags().BoolVar(&markRead, "mark-read", false, "mark all notifications read after each fetch")
	return cmd
}

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/tagcache/blog"
)

func newPostsCmd(out *printer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "posts",
		Short: "List, show, add, edit and react to posts",
	}
	cmd.AddCommand(
		newPostsListCmd(out),
		newPostsShowCmd(out),
		newPostsAddCmd(out),
		newPostsEditCmd(out),
		newPostsReactCmd(out),
	)
	return cmd
}

func newPostsListCmd(out *printer) *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List posts, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := appFrom(cmd).client
			if err := c.FetchPosts(cmd.Context()); err != nil {
				return fmt.Errorf("fetch posts: %w", err)
			}
			posts := blog.SelectAllPosts(c.Store.State())
			if user != "" {
				posts = c.PostsByUser(user)
			}
			return out.posts(cmd.OutOrStdout(), posts)
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "only posts by this user id")
	return cmd
}

func newPostsShowCmd(out *printer) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := appFrom(cmd).client.Endpoints.GetPost.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return out.post(cmd.OutOrStdout(), p)
		},
	}
}

func newPostsAddCmd(out *printer) *cobra.Command {
	var in blog.NewPost
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a post and show the refreshed list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			eps := appFrom(cmd).client.Endpoints
			unsub, err := eps.GetPosts.Subscribe(ctx, struct{}{}, nil)
			if err != nil {
				return err
			}
			defer unsub()

			if _, err := eps.AddNewPost.Invoke(ctx, in); err != nil {
				return err
			}
			return printRefreshedList(ctx, cmd, out)
		},
	}
	cmd.Flags().StringVar(&in.Title, "title", "", "post title")
	cmd.Flags().StringVar(&in.Content, "content", "", "post content")
	cmd.Flags().StringVar(&in.User, "user", "", "author user id")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("content")
	return cmd
}

func newPostsEditCmd(out *printer) *cobra.Command {
	var in blog.PostEdit
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit the title and content of a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			eps := appFrom(cmd).client.Endpoints
			in.ID = args[0]
			if !cmd.Flags().Changed("title") || !cmd.Flags().Changed("content") {
				cur, err := eps.GetPost.Get(ctx, in.ID)
				if err != nil {
					return err
				}
				if !cmd.Flags().Changed("title") {
					in.Title = cur.Title
				}
				if !cmd.Flags().Changed("content") {
					in.Content = cur.Content
				}
			}
			if _, err := eps.EditPost.Invoke(ctx, in); err != nil {
				return err
			}
			p, err := eps.GetPost.Get(ctx, in.ID)
			if err != nil {
				return err
			}
			return out.post(cmd.OutOrStdout(), p)
		},
	}
	cmd.Flags().StringVar(&in.Title, "title", "", "new title")
	cmd.Flags().StringVar(&in.Content, "content", "", "new content")
	return cmd
}

func newPostsReactCmd(out *printer) *cobra.Command {
	return &cobra.Command{
		Use:       "react <id> <reaction>",
		Short:     "Add a reaction to a post",
		Args:      cobra.ExactArgs(2),
		ValidArgs: reactionNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := blog.ParseReaction(args[1])
			if err != nil {
				return err
			}
			eps := appFrom(cmd).client.Endpoints
			if _, err := eps.AddReaction.Invoke(cmd.Context(), blog.ReactionArg{PostID: args[0], Reaction: r}); err != nil {
				return err
			}
			p, err := eps.GetPost.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return out.post(cmd.OutOrStdout(), p)
		},
	}
}

// printRefreshedList waits for the background refetch of the subscribed
// posts list and prints it.
func printRefreshedList(ctx context.Context, cmd *cobra.Command, out *printer) error {
	a := appFrom(cmd)
	if err := a.client.Api.Flush(ctx); err != nil {
		return err
	}
	v := a.client.Endpoints.GetPosts.Select(ctx, struct{}{})
	if v.IsError() {
		return errors.New(v.Error)
	}
	return out.posts(cmd.OutOrStdout(), v.Data)
}

func reactionNames() []string {
	out := make([]string, len(blog.Reactions))
	for i, r := range blog.Reactions {
		out[i] = string(r)
	}
	return out
}

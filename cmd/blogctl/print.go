package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	json "github.com/goccy/go-json"

	"github.com/unkn0wn-root/tagcache/blog"
)

type printer struct{ json *bool }

// table writes rows under header unless --json is set, in which case v is
// printed instead.
func (p *printer) table(w io.Writer, v any, header string, rows [][]string) error {
	if *p.json {
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, header)
	for _, r := range rows {
		fmt.Fprintln(tw, strings.Join(r, "\t"))
	}
	return tw.Flush()
}

func (p *printer) posts(w io.Writer, posts []blog.Post) error {
	rows := make([][]string, len(posts))
	for i, post := range posts {
		rows[i] = []string{post.ID, post.Date, post.User, post.Title, reactions(post.Reactions)}
	}
	return p.table(w, posts, "ID\tDATE\tUSER\tTITLE\tREACTIONS", rows)
}

func (p *printer) post(w io.Writer, post blog.Post) error {
	if *p.json {
		return p.table(w, post, "", nil)
	}
	_, err := fmt.Fprintf(w, "%s\n%s\nby %s on %s\n\n%s\n\n%s\n",
		post.Title, strings.Repeat("=", len(post.Title)), post.User, post.Date, post.Content, reactions(post.Reactions))
	return err
}

func reactions(c blog.ReactionCounts) string {
	parts := make([]string, 0, len(blog.Reactions))
	for _, r := range blog.Reactions {
		if n := c.Get(r); n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", r, n))
		}
	}
	return strings.Join(parts, " ")
}

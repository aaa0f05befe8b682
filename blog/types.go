// Package blog wires the blog client: a posts slice and a notifications slice
// in a store, and a tagcache Api with the post and user endpoints.
package blog

import (
	"fmt"
	"strings"
)

type Reaction string

const (
	ThumbsUp Reaction = "thumbsUp"
	Hooray   Reaction = "hooray"
	Heart    Reaction = "heart"
	Rocket   Reaction = "rocket"
	Eyes     Reaction = "eyes"
)

// Reactions lists every reaction in display order.
var Reactions = []Reaction{ThumbsUp, Hooray, Heart, Rocket, Eyes}

// ParseReaction accepts a reaction name case-insensitively.
func ParseReaction(s string) (Reaction, error) {
	for _, r := range Reactions {
		if strings.EqualFold(string(r), s) {
			return r, nil
		}
	}
	return "", fmt.Errorf("blog: unknown reaction %q", s)
}

type ReactionCounts struct {
	ThumbsUp int `json:"thumbsUp"`
	Hooray   int `json:"hooray"`
	Heart    int `json:"heart"`
	Rocket   int `json:"rocket"`
	Eyes     int `json:"eyes"`
}

// Add returns the counts with r incremented; unknown reactions are ignored.
func (c ReactionCounts) Add(r Reaction) ReactionCounts {
	switch r {
	case ThumbsUp:
		c.ThumbsUp++
	case Hooray:
		c.Hooray++
	case Heart:
		c.Heart++
	case Rocket:
		c.Rocket++
	case Eyes:
		c.Eyes++
	}
	return c
}

func (c ReactionCounts) Get(r Reaction) int {
	switch r {
	case ThumbsUp:
		return c.ThumbsUp
	case Hooray:
		return c.Hooray
	case Heart:
		return c.Heart
	case Rocket:
		return c.Rocket
	case Eyes:
		return c.Eyes
	}
	return 0
}

type Post struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Content   string         `json:"content"`
	User      string         `json:"user"`
	Date      string         `json:"date"`
	Reactions ReactionCounts `json:"reactions"`
}

type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Notification struct {
	ID      string `json:"id"`
	Date    string `json:"date"`
	Message string `json:"message"`
	User    string `json:"user"`
	Read    bool   `json:"read"`
	IsNew   bool   `json:"isNew"`
}

// NewPost is the body of a create request; the server assigns id and date.
type NewPost struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	User    string `json:"user"`
}

type PostEdit struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

type ReactionArg struct {
	PostID   string   `json:"postId"`
	Reaction Reaction `json:"reaction"`
}

package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/keepup/keepup-api/internal/model"
	"github.com/keepup/keepup-api/pkg/client"
)

func newFeedCmd(opts *rootOptions) *cobra.Command {
	var (
		scope  string
		limit  int
		offset int
	)

	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Show the newest posts",
		Long: `Shows posts newest first. --scope friends limits the feed to your own
posts, your friends' posts and posts in your groups, and needs a login.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if scope != "all" && scope != "friends" {
				return fmt.Errorf("invalid --scope %q: want all or friends", scope)
			}
			sess, err := opts.resume(cmd.Context(), scope == "friends")
			if err != nil {
				return err
			}

			posts, err := sess.Client().Feed(cmd.Context(), client.FeedParams{
				Scope:  scope,
				Limit:  limit,
				Offset: offset,
			})
			if err != nil {
				return err
			}
			return printPosts(cmd.OutOrStdout(), posts, sess.CurrentUser())
		},
	}

	cmd.Flags().StringVar(&scope, "scope", "all", "all or friends")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of posts")
	cmd.Flags().IntVar(&offset, "offset", 0, "posts to skip")
	return cmd
}

// printPosts writes one row per post. Likes and saves by viewer are
// marked with an asterisk.
func printPosts(w io.Writer, posts []model.Post, viewer *model.User) error {
	if len(posts) == 0 {
		_, err := fmt.Fprintln(w, "no posts")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tAUTHOR\tWHEN\tLIKES\tCOMMENTS\tCONTENT")
	for _, p := range posts {
		author := p.AuthorID
		if p.Author != nil {
			author = p.Author.Username
		}
		likes := fmt.Sprint(len(p.Likes))
		if viewer != nil && p.LikedBy(viewer.ID) {
			likes += "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			p.ID, author, p.CreatedAt.Local().Format(time.DateTime), likes, p.CommentCount, excerpt(p.Content, 60))
	}
	return tw.Flush()
}

func excerpt(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

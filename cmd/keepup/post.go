package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/keepup/keepup-api/pkg/client"
)

func newPostCmd(opts *rootOptions) *cobra.Command {
	var req client.CreatePostRequest

	cmd := &cobra.Command{
		Use:   "post <content>",
		Short: "Publish a post as the logged-in user",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := opts.resume(cmd.Context(), true)
			if err != nil {
				return err
			}

			req.Content = strings.Join(args, " ")
			post, err := sess.Client().CreatePost(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "posted %s\n", post.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.MediaURL, "media", "", "image or video URL to attach")
	cmd.Flags().StringVar(&req.GroupID, "group", "", "post into this group")
	return cmd
}

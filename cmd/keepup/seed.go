package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/keepup/keepup-api/internal/auth"
	"github.com/keepup/keepup-api/internal/seed"
	"github.com/keepup/keepup-api/internal/service"
)

func newSeedCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Populate an empty database with demo users, a group and posts",
		Long: `Creates johndoe, janedoe and bobsmith (password "password123"),
makes them friends, puts them in the "KeepUp Friends" group and adds a
few liked and commented posts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			logger := newLogger(cfg)

			ctx := cmd.Context()
			store, err := openStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
			if err != nil {
				return err
			}
			svc := seed.Services{
				Users:    service.NewUserService(store, auth.NewPasswordService(), tokens, logger),
				Posts:    service.NewPostService(store, logger),
				Comments: service.NewCommentService(store, logger),
				Groups:   service.NewGroupService(store, logger),
			}

			sum, err := seed.Run(ctx, svc, logger)
			if errors.Is(err, seed.ErrAlreadySeeded) {
				fmt.Fprintln(cmd.OutOrStdout(), "demo data already present, nothing to do")
				return nil
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Seed summary:")
			fmt.Fprintf(out, "- Users: %d\n- Groups: %d\n- Posts: %d\n- Comments: %d\n",
				sum.Users, sum.Groups, sum.Posts, sum.Comments)
			return nil
		},
	}
}

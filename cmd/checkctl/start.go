package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/oriys/chk/internal/chkcontrol"
	"github.com/oriys/chk/internal/chktypes"
	"github.com/spf13/cobra"
)

func startCmd() *cobra.Command {
	var (
		pools []string
		reset bool
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a consistency check run",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			client, err := chkcontrol.Dial(ctx, leaderAddr)
			if err != nil {
				return err
			}
			defer client.Close()

			poolIDs := make([]uuid.UUID, 0, len(pools))
			for _, p := range pools {
				id, err := uuid.Parse(p)
				if err != nil {
					return fmt.Errorf("invalid pool uuid %q: %w", p, err)
				}
				poolIDs = append(poolIDs, id)
			}

			var flags chktypes.StartFlags
			if reset {
				flags |= chktypes.FlagReset
			}

			if _, err := client.Start(ctx, &chkcontrol.StartRequest{Pools: poolIDs, Flags: flags}); err != nil {
				return err
			}
			fmt.Println("check started")
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&pools, "pool", nil, "Pool UUID to check (repeatable, default: all known pools)")
	cmd.Flags().BoolVar(&reset, "reset", false, "Discard any prior run and start fresh")

	return cmd
}

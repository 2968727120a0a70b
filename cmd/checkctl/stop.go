package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/oriys/chk/internal/chkcontrol"
	"github.com/spf13/cobra"
)

func stopCmd() *cobra.Command {
	var pools []string

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop a running consistency check",
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

			if _, err := client.Stop(ctx, &chkcontrol.StopRequest{Pools: poolIDs}); err != nil {
				return err
			}
			fmt.Println("check stopped")
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&pools, "pool", nil, "Pool UUID to stop (repeatable, default: all)")

	return cmd
}

package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/oriys/chk/internal/chkcontrol"
	"github.com/spf13/cobra"
)

func queryCmd() *cobra.Command {
	var pools []string

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Report the current check status",
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

			resp, err := client.Query(ctx, &chkcontrol.QueryRequest{Pools: poolIDs})
			if err != nil {
				return err
			}

			fmt.Printf("instance: status=%s phase=%s\n", resp.InstanceStatus, resp.InstancePhase)
			for _, p := range resp.Pools {
				fmt.Printf("pool %s: status=%s phase=%s shards=%d\n", p.Pool, p.Status, p.Phase, len(p.Shards))
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&pools, "pool", nil, "Pool UUID to query (repeatable, default: all)")

	return cmd
}

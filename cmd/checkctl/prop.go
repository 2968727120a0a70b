package main

import (
	"context"
	"fmt"

	"github.com/oriys/chk/internal/chkcontrol"
	"github.com/spf13/cobra"
)

func propCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prop",
		Short: "Print the running instance's policy table",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			client, err := chkcontrol.Dial(ctx, leaderAddr)
			if err != nil {
				return err
			}
			defer client.Close()

			resp, err := client.Prop(ctx, &chkcontrol.PropRequest{})
			if err != nil {
				return err
			}
			for class, action := range resp.Policies {
				fmt.Printf("%s -> %s\n", class, action)
			}
			return nil
		},
	}
	return cmd
}

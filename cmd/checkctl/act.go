package main

import (
	"context"
	"fmt"

	"github.com/oriys/chk/internal/chkcontrol"
	"github.com/oriys/chk/internal/chktypes"
	"github.com/spf13/cobra"
)

func actCmd() *cobra.Command {
	var (
		seq    uint64
		class  string
		action string
		forAll bool
	)

	cmd := &cobra.Command{
		Use:   "act",
		Short: "Answer a pending interactive report, or set a class's default action",
		RunE: func(cmd *cobra.Command, args []string) error {
			act, ok := chktypes.ParseAction(action)
			if !ok {
				return fmt.Errorf("unknown action %q", action)
			}

			req := &chkcontrol.ActRequest{Seq: chktypes.Seq(seq), Action: act, ForAll: forAll}
			if forAll {
				cls, ok := chktypes.ParseClass(class)
				if !ok {
					return fmt.Errorf("unknown class %q", class)
				}
				req.Class = cls
			}

			ctx := context.Background()
			client, err := chkcontrol.Dial(ctx, leaderAddr)
			if err != nil {
				return err
			}
			defer client.Close()

			if _, err := client.Act(ctx, req); err != nil {
				return err
			}
			fmt.Println("act applied")
			return nil
		},
	}

	cmd.Flags().Uint64Var(&seq, "seq", 0, "Pending report sequence number (unicast act)")
	cmd.Flags().StringVar(&class, "class", "", "Inconsistency class (required with --for-all)")
	cmd.Flags().StringVar(&action, "action", "", "Action to apply (required)")
	cmd.Flags().BoolVar(&forAll, "for-all", false, "Apply as the new default for every pending and future report of this class")
	cmd.MarkFlagRequired("action")

	return cmd
}

package cli

import (
	"github.com/spf13/cobra"
)

func newControlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "control",
		Short: "Participant permission commands (host only)",
	}

	cmd.AddCommand(newControlListCmd())
	cmd.AddCommand(newControlGrantCmd())
	cmd.AddCommand(newControlRevokeCmd())

	return cmd
}

func newControlListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List participants and their permissions",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result []Participant
			if err := client.Get("/api/v1/participants", &result); err != nil {
				return err
			}
			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}
}

func newControlGrantCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "grant <participant-id>",
		Short: "Grant a participant playback and queue control",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setControl(args[0], true)
		},
	}
}

func newControlRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <participant-id>",
		Short: "Revoke a participant's playback and queue control",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setControl(args[0], false)
		},
	}
}

func setControl(participantID string, grant bool) error {
	if err := client.Patch("/api/v1/participants/"+participantID+"/control", map[string]bool{"grant": grant}, nil); err != nil {
		return err
	}

	out := NewOutput(cfg.Output)
	if grant {
		out.PrintMessage("Control granted")
	} else {
		out.PrintMessage("Control revoked")
	}
	return nil
}

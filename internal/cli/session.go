package cli

import (
	"github.com/spf13/cobra"
)

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Session lifecycle commands",
	}

	cmd.AddCommand(newSessionCreateCmd())
	cmd.AddCommand(newSessionJoinCmd())
	cmd.AddCommand(newSessionShowCmd())
	cmd.AddCommand(newSessionLeaveCmd())
	cmd.AddCommand(newSessionConnectionCmd())

	return cmd
}

func newSessionCreateCmd() *cobra.Command {
	var displayName string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new listening session",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]string{}
			if displayName != "" {
				req["display_name"] = displayName
			}

			var result Session
			if err := client.Post("/api/v1/session", req, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&displayName, "name", "", "Display name to host as")

	return cmd
}

func newSessionJoinCmd() *cobra.Command {
	var displayName string

	cmd := &cobra.Command{
		Use:   "join <code>",
		Short: "Join a session by code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]string{"code": args[0]}
			if displayName != "" {
				req["display_name"] = displayName
			}

			var result Session
			if err := client.Post("/api/v1/session/join", req, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&displayName, "name", "", "Display name to join as")

	return cmd
}

func newSessionShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Session
			if err := client.Get("/api/v1/session", &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func newSessionLeaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "leave",
		Short: "Leave the current session (ends it if you are the host)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.Delete("/api/v1/session"); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.PrintMessage("Left session")
			return nil
		},
	}
}

func newSessionConnectionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "connection",
		Short: "Show the session's transport connection state",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Connection
			if err := client.Get("/api/v1/session/connection", &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

package cli

import (
	"strconv"

	"github.com/spf13/cobra"
)

func newQueueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Shared queue commands",
	}

	cmd.AddCommand(newQueueListCmd())
	cmd.AddCommand(newQueueAddCmd())
	cmd.AddCommand(newQueueRemoveCmd())
	cmd.AddCommand(newQueueMoveCmd())

	return cmd
}

func newQueueListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the shared queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Queue
			if err := client.Get("/api/v1/queue", &result); err != nil {
				return err
			}
			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}
}

func newQueueAddCmd() *cobra.Command {
	var title, artist string
	var durationMs int64
	var next bool

	cmd := &cobra.Command{
		Use:   "add <track-id>",
		Short: "Add a track to the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]any{
				"track": map[string]any{
					"id":          args[0],
					"title":       title,
					"artist":      artist,
					"duration_ms": durationMs,
				},
				"next": next,
			}

			var result Queue
			if err := client.Post("/api/v1/queue", req, &result); err != nil {
				return err
			}
			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Track title")
	cmd.Flags().StringVar(&artist, "artist", "", "Track artist")
	cmd.Flags().Int64Var(&durationMs, "duration-ms", 0, "Track duration in milliseconds")
	cmd.Flags().BoolVar(&next, "next", false, "Insert at the head of the queue")

	return cmd
}

func newQueueRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <index>",
		Short: "Remove the track at the given queue index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := strconv.Atoi(args[0]); err != nil {
				return err
			}

			var result Queue
			if err := client.Do("DELETE", "/api/v1/queue/"+args[0], nil, &result); err != nil {
				return err
			}
			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}
}

func newQueueMoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "move <from> <to>",
		Short: "Move a queued track to another position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := strconv.Atoi(args[0])
			if err != nil {
				return err
			}
			to, err := strconv.Atoi(args[1])
			if err != nil {
				return err
			}

			var result Queue
			if err := client.Post("/api/v1/queue/move", map[string]int{"from": from, "to": to}, &result); err != nil {
				return err
			}
			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}
}

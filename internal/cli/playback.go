package cli

import (
	"strconv"

	"github.com/spf13/cobra"
)

func newPlaybackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "playback",
		Short: "Playback control commands",
	}

	cmd.AddCommand(newPlaybackStatusCmd())
	cmd.AddCommand(newPlaybackPlayCmd())
	cmd.AddCommand(newPlaybackPauseCmd())
	cmd.AddCommand(newPlaybackSeekCmd())
	cmd.AddCommand(newPlaybackTrackCmd())
	cmd.AddCommand(newPlaybackSkipCmd())

	return cmd
}

func newPlaybackStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show current playback state",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Playback
			if err := client.Get("/api/v1/playback", &result); err != nil {
				return err
			}
			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}
}

func newPlaybackPlayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "play",
		Short: "Resume playback",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Playback
			if err := client.Post("/api/v1/playback/play", nil, &result); err != nil {
				return err
			}
			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}
}

func newPlaybackPauseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "Pause playback",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Playback
			if err := client.Post("/api/v1/playback/pause", nil, &result); err != nil {
				return err
			}
			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}
}

func newPlaybackSeekCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seek <position-ms>",
		Short: "Seek within the current track",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			positionMs, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return err
			}

			var result Playback
			if err := client.Post("/api/v1/playback/seek", map[string]int64{"position_ms": positionMs}, &result); err != nil {
				return err
			}
			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}
}

func newPlaybackTrackCmd() *cobra.Command {
	var title, artist string
	var durationMs int64

	cmd := &cobra.Command{
		Use:   "track <track-id>",
		Short: "Switch playback to a track",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]any{
				"track": map[string]any{
					"id":          args[0],
					"title":       title,
					"artist":      artist,
					"duration_ms": durationMs,
				},
			}

			var result Playback
			if err := client.Post("/api/v1/playback/track", req, &result); err != nil {
				return err
			}
			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Track title")
	cmd.Flags().StringVar(&artist, "artist", "", "Track artist")
	cmd.Flags().Int64Var(&durationMs, "duration-ms", 0, "Track duration in milliseconds")

	return cmd
}

func newPlaybackSkipCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "skip",
		Short: "Skip to the next queued track",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Playback
			if err := client.Post("/api/v1/playback/skip", nil, &result); err != nil {
				return err
			}
			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}
}

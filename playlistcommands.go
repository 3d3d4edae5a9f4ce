package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"cadence/internal/catalog"
)

func newPlaylistsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "playlists",
		Aliases: []string{"playlist"},
		Short:   "Create and edit playlists",
	}

	var description string
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a playlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			playlist, err := a.engine.CreatePlaylist(cmd.Context(), args[0], description)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), playlist.ID)
			return nil
		},
	}
	create.Flags().StringVarP(&description, "description", "d", "", "playlist description")

	cmd.AddCommand(
		create,
		&cobra.Command{
			Use:   "list",
			Short: "List playlists",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				playlists, err := a.engine.ListPlaylists(cmd.Context())
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tSONGS\tUPDATED")
				for _, playlist := range playlists {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
						playlist.ID, playlist.Name, humanize.Comma(int64(playlist.SongCount)), relativeTime(playlist.UpdatedAt))
				}
				return w.Flush()
			},
		},
		&cobra.Command{
			Use:   "show <id>",
			Short: "Show a playlist in order",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				playlist, err := a.engine.GetPlaylist(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				entries, err := a.engine.GetPlaylistSongs(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s (%s songs)\n", playlist.Name, humanize.Comma(int64(playlist.SongCount)))
				if strings.TrimSpace(playlist.Description) != "" {
					fmt.Fprintln(out, playlist.Description)
				}

				w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "#\tID\tTITLE\tARTIST\tLENGTH")
				for _, entry := range entries {
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
						entry.Position+1, entry.ID, entry.Title, entry.Artist, formatDuration(entry.DurationMS))
				}
				return w.Flush()
			},
		},
		&cobra.Command{
			Use:   "rename <id> <name>",
			Short: "Rename a playlist",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				_, err := a.engine.RenamePlaylist(cmd.Context(), args[0], args[1])
				return err
			},
		},
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete a playlist",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.engine.DeletePlaylist(cmd.Context(), args[0])
			},
		},
		&cobra.Command{
			Use:   "add <playlist-id> <song-id>...",
			Short: "Append songs to a playlist",
			Args:  cobra.MinimumNArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				for _, songID := range args[1:] {
					if err := a.engine.AddSongToPlaylist(cmd.Context(), args[0], songID); err != nil {
						return fmt.Errorf("add %s: %w", songID, err)
					}
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "remove <playlist-id> <song-id>",
			Short: "Remove a song from a playlist",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.engine.RemoveSongFromPlaylist(cmd.Context(), args[0], args[1])
			},
		},
		&cobra.Command{
			Use:   "move <playlist-id> <song-id> <position>",
			Short: "Move a song to a 1-based position",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				position, err := strconv.Atoi(args[2])
				if err != nil || position < 1 {
					return fmt.Errorf("invalid position %q", args[2])
				}
				return a.engine.MoveSongInPlaylist(cmd.Context(), args[0], args[1], position-1)
			},
		},
	)

	return cmd
}

func newSettingsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read and write boolean settings",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List stored settings",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				settings, err := a.engine.ListSettings(cmd.Context())
				if err != nil {
					return err
				}
				for _, setting := range settings {
					fmt.Fprintf(cmd.OutOrStdout(), "%s=%t\n", setting.Key, setting.Value)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "get <key>",
			Short: "Print one setting",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				value, err := a.engine.GetSetting(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), value)
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <key>=<bool>...",
			Short: "Store one or more settings atomically",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				settings, err := parseSettings(args)
				if err != nil {
					return err
				}
				return a.engine.SaveSettingsBatch(cmd.Context(), settings)
			},
		},
	)

	return cmd
}

func parseSettings(args []string) ([]catalog.Setting, error) {
	settings := make([]catalog.Setting, 0, len(args))
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid setting %q, want key=value", arg)
		}
		value, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: %w", key, err)
		}
		settings = append(settings, catalog.Setting{Key: strings.TrimSpace(key), Value: value})
	}
	return settings, nil
}

func newThemeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "theme",
		Short: "Show the theme state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			state, err := a.engine.GetTheme(cmd.Context())
			if err != nil {
				return err
			}
			printTheme(cmd, state)
			return nil
		},
	}

	var accent string
	set := &cobra.Command{
		Use:   "set <system|light|dark>",
		Short: "Set the theme mode and optional accent song",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := a.engine.SetTheme(cmd.Context(), args[0], accent)
			if err != nil {
				return err
			}
			printTheme(cmd, state)
			return nil
		},
	}
	set.Flags().StringVar(&accent, "accent", "", "song id whose artwork colours the theme")

	cmd.AddCommand(set)
	return cmd
}

func printTheme(cmd *cobra.Command, state catalog.ThemeState) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "mode:      %s\n", state.Mode)
	if state.AccentSongID != "" {
		fmt.Fprintf(out, "accent:    %s\n", state.AccentSongID)
	}
	if len(state.Palette) > 0 {
		fmt.Fprintf(out, "palette:   %s\n", strings.Join(state.Palette, " "))
	}
}

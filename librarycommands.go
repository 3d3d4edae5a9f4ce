package main

import (
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"cadence/internal/catalog"
	"cadence/internal/library"
	"cadence/internal/stats"
)

const storedTimeLayout = "2006-01-02T15:04:05.000Z"

func newFoldersCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "folders",
		Short: "Manage the music folders that are scanned",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <path-or-uri>",
			Short: "Grant access to a folder and register it",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				folder, err := a.engine.AddFolder(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", folder.ID, folder.URI)
				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List registered folders",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				folders, err := a.engine.ListFolders(cmd.Context())
				if err != nil {
					return err
				}
				printFolders(cmd.OutOrStdout(), folders)
				return nil
			},
		},
		&cobra.Command{
			Use:   "remove <id>",
			Short: "Forget a folder; its songs stay until cleanup finds them gone",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.engine.RemoveFolder(cmd.Context(), args[0])
			},
		},
		&cobra.Command{
			Use:   "enable <id>",
			Short: "Include a folder in scans",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.engine.SetFolderEnabled(cmd.Context(), args[0], true)
			},
		},
		&cobra.Command{
			Use:   "disable <id>",
			Short: "Exclude a folder from scans without removing it",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.engine.SetFolderEnabled(cmd.Context(), args[0], false)
			},
		},
	)

	return cmd
}

func newSongsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "songs",
		Short: "Browse and edit catalog songs",
	}

	var likedOnly bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List songs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			songs, err := a.engine.GetAllSongs(cmd.Context())
			if err != nil {
				return err
			}
			if likedOnly {
				songs = lo.Filter(songs, func(song catalog.Song, _ int) bool {
					return song.Liked
				})
			}
			printSongs(cmd.OutOrStdout(), songs)
			return nil
		},
	}
	list.Flags().BoolVar(&likedOnly, "liked", false, "only liked songs")

	cmd.AddCommand(
		list,
		&cobra.Command{
			Use:   "show <id>",
			Short: "Show one song",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				song, err := a.engine.GetSongByID(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printSong(cmd.OutOrStdout(), song)
				return nil
			},
		},
		&cobra.Command{
			Use:   "like <id>",
			Short: "Toggle the liked flag",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				liked, err := a.engine.ToggleLike(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "liked: %t\n", liked)
				return nil
			},
		},
		&cobra.Command{
			Use:   "played <id>",
			Short: "Record a play",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.engine.IncrementPlayCount(cmd.Context(), args[0])
			},
		},
		&cobra.Command{
			Use:   "reset-plays <id>",
			Short: "Reset the play count to zero",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.engine.ResetPlayCount(cmd.Context(), args[0])
			},
		},
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete a song and its playlist entries",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.engine.DeleteSong(cmd.Context(), args[0])
			},
		},
	)

	return cmd
}

func newArtistsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "artists",
		Short: "List artists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			artists, err := a.engine.ListArtists(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tLISTENERS\tIMAGE")
			for _, artist := range artists {
				listeners := "-"
				if artist.Listeners != nil {
					listeners = humanize.Comma(*artist.Listeners)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", artist.ID, artist.Name, listeners, artist.ImageURL)
			}
			return w.Flush()
		},
	}
}

func newStatusCommand(a *app) *cobra.Command {
	var top int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Summarise the library and the last scan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			overview, err := a.engine.Overview(ctx, top)
			if err != nil {
				return err
			}
			folders, err := a.engine.ListFolders(ctx)
			if err != nil {
				return err
			}
			playlists, err := a.engine.ListPlaylists(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "database:  %s\n", a.cfg.DatabasePath)
			fmt.Fprintf(out, "songs:     %s (%s, %s liked)\n",
				humanize.Comma(int64(overview.SongCount)),
				time.Duration(overview.TotalDurationMS)*time.Millisecond,
				humanize.Comma(int64(overview.LikedCount)))
			fmt.Fprintf(out, "folders:   %s\n", humanize.Comma(int64(len(folders))))
			fmt.Fprintf(out, "playlists: %s\n", humanize.Comma(int64(len(playlists))))
			fmt.Fprintf(out, "artwork:   %s in %s\n", humanize.IBytes(dirSize(a.cfg.ArtworkDir)), a.cfg.ArtworkDir)
			fmt.Fprintf(out, "plays:     %s across %s songs (%s)\n",
				humanize.Comma(overview.TotalPlays),
				humanize.Comma(int64(overview.TracksPlayed)),
				time.Duration(overview.TotalPlayedMS)*time.Millisecond)

			status, err := a.engine.ScanStatus()
			if err != nil {
				return err
			}
			if status.LastRunAt != "" {
				fmt.Fprintf(out, "last scan: %s (%s)\n", relativeTime(status.LastRunAt), status.Phase)
			}
			if status.LastError != "" {
				fmt.Fprintf(out, "error:     %s\n", status.LastError)
			}

			printOverview(out, overview)
			return nil
		},
	}
	cmd.Flags().IntVar(&top, "top", 5, "number of top songs and artists to list")
	return cmd
}

func printOverview(w io.Writer, overview stats.Overview) {
	if len(overview.TopTracks) > 0 {
		fmt.Fprintln(w)
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TOP SONGS\tARTIST\tPLAYS")
		for _, track := range overview.TopTracks {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", track.Title, track.Artist, humanize.Comma(track.PlayCount))
		}
		_ = tw.Flush()
	}

	if len(overview.TopArtists) > 0 {
		fmt.Fprintln(w)
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TOP ARTISTS\tSONGS\tPLAYS")
		for _, artist := range overview.TopArtists {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", artist.Name, humanize.Comma(int64(artist.TrackCount)), humanize.Comma(artist.PlayCount))
		}
		_ = tw.Flush()
	}
}

func printFolders(w io.Writer, folders []library.Folder) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tENABLED\tADDED\tURI")
	for _, folder := range folders {
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%s\n", folder.ID, folder.Name, folder.Enabled, relativeTime(folder.CreatedAt), folder.URI)
	}
	_ = tw.Flush()
}

func printSongs(w io.Writer, songs []catalog.Song) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tARTIST\tALBUM\tLENGTH\tPLAYS")
	for _, song := range songs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			song.ID,
			song.Title,
			song.Artist,
			song.Album,
			formatDuration(song.DurationMS),
			strconv.FormatInt(song.PlayCount, 10),
		)
	}
	_ = tw.Flush()
}

func printSong(w io.Writer, song catalog.Song) {
	fmt.Fprintf(w, "id:        %s\n", song.ID)
	fmt.Fprintf(w, "title:     %s\n", song.Title)
	fmt.Fprintf(w, "artist:    %s\n", song.Artist)
	fmt.Fprintf(w, "album:     %s\n", song.Album)
	fmt.Fprintf(w, "length:    %s\n", formatDuration(song.DurationMS))
	fmt.Fprintf(w, "source:    %s\n", song.SourceURI)
	if song.ArtworkPath != "" {
		fmt.Fprintf(w, "artwork:   %s\n", song.ArtworkPath)
	}
	if len(song.Palette) > 0 {
		fmt.Fprintf(w, "palette:   %v\n", song.Palette)
	}
	fmt.Fprintf(w, "liked:     %t\n", song.Liked)
	fmt.Fprintf(w, "plays:     %s\n", humanize.Comma(song.PlayCount))
	fmt.Fprintf(w, "added:     %s\n", relativeTime(song.CreatedAt))
}

func formatDuration(ms int64) string {
	if ms <= 0 {
		return "-"
	}
	total := ms / 1000
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

func relativeTime(stored string) string {
	parsed, err := time.Parse(storedTimeLayout, stored)
	if err != nil {
		return stored
	}
	return humanize.Time(parsed)
}

func dirSize(dir string) uint64 {
	var size uint64
	_ = filepath.WalkDir(dir, func(_ string, entry fs.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return nil
		}
		if info, err := entry.Info(); err == nil {
			size += uint64(info.Size())
		}
		return nil
	})
	return size
}

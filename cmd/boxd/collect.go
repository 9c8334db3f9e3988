package main

import (
	"context"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/letterboxd-client/pkg/export"
	"github.com/Sternrassler/letterboxd-client/pkg/fetcher"
	"github.com/Sternrassler/letterboxd-client/pkg/model"
	"github.com/Sternrassler/letterboxd-client/pkg/record"
)

// outputFlags are shared by every command that prints a record.
type outputFlags struct {
	format  string
	resolve int
	save    bool
	search  string
}

func (o *outputFlags) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&o.format, "format", "f", string(export.FormatTable), "output format: table or jsonl")
	f.IntVar(&o.resolve, "resolve", 0, "hydrate the first N films, -1 for all")
	f.BoolVar(&o.save, "save", false, "save the record to the database")
	f.StringVar(&o.search, "search", "", "print the films best matching this title instead of the record")
	cmd.PreRunE = func(*cobra.Command, []string) error { return o.validate() }
}

// validate rejects bad flag values before anything is fetched.
func (o *outputFlags) validate() error {
	if _, err := export.ParseFormat(o.format); err != nil {
		return err
	}
	if o.resolve < -1 {
		return fmt.Errorf("--resolve must be -1 (all), 0 or a positive count, got %d", o.resolve)
	}
	return nil
}

// emit resolves, saves and prints rec as the flags ask.
func (a *app) emit(ctx context.Context, w io.Writer, rec *record.Record, o outputFlags) error {
	format, err := export.ParseFormat(o.format)
	if err != nil {
		return err
	}

	if o.resolve != 0 {
		limit := max(o.resolve, 0)
		n, err := a.session.ResolveAll(ctx, rec, limit, record.WithParallelism(a.cfg.Parallelism))
		switch {
		case err != nil && ctx.Err() != nil:
			return fmt.Errorf("resolved %d films: %w", n, err)
		case err != nil:
			// Unresolved films are printed as bare slugs.
			stats := a.session.Films().Stats()
			a.logger.Warn().Err(err).
				Int("resolved", n).
				Int("failed", stats.Failed).
				Msg("Some films could not be resolved")
		default:
			a.logger.Debug().Int("resolved", n).Msg("Films resolved")
		}
	}

	if o.save {
		st, err := a.requireStore()
		if err != nil {
			return err
		}
		if err := st.SaveRecord(ctx, rec); err != nil {
			return err
		}
		a.logger.Info().
			Str("owner", string(rec.Owner)).
			Str("kind", string(rec.Kind)).
			Int("entries", rec.Len()).
			Msg("Record saved")
	}

	if o.search != "" {
		return writeSuggestions(w, rec.Suggest(o.search, 10))
	}
	return export.Write(w, rec, format)
}

func writeSuggestions(w io.Writer, suggestions []record.Suggestion) error {
	if len(suggestions) == 0 {
		_, err := fmt.Fprintln(w, "no matching films")
		return err
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Film", "Title", "Score"})
	for _, s := range suggestions {
		t.AppendRow(table.Row{s.Film, s.Title, fmt.Sprintf("%.2f", s.Score)})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
	return nil
}

// userCollectionCmd builds the commands that take a username only.
func userCollectionCmd(a *app, use, short string, get func(context.Context, model.ID) (*record.Record, error)) *cobra.Command {
	var out outputFlags
	cmd := &cobra.Command{
		Use:   use + " <user>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := get(cmd.Context(), model.ID(args[0]))
			if err != nil {
				return err
			}
			return a.emit(cmd.Context(), cmd.OutOrStdout(), rec, out)
		},
	}
	out.bind(cmd)
	return cmd
}

func newWatchlistCmd(a *app) *cobra.Command {
	return userCollectionCmd(a, "watchlist", "Prints a user's watchlist.", func(ctx context.Context, user model.ID) (*record.Record, error) {
		return a.session.Watchlist(ctx, user)
	})
}

func newDiaryCmd(a *app) *cobra.Command {
	return userCollectionCmd(a, "diary", "Prints a user's diary with watch dates, ratings and rewatches.", func(ctx context.Context, user model.ID) (*record.Record, error) {
		return a.session.Diary(ctx, user)
	})
}

func newReviewsCmd(a *app) *cobra.Command {
	return userCollectionCmd(a, "reviews", "Prints a user's reviews.", func(ctx context.Context, user model.ID) (*record.Record, error) {
		return a.session.Reviews(ctx, user)
	})
}

func newLogsCmd(a *app) *cobra.Command {
	return userCollectionCmd(a, "logs", "Prints every film a user has logged as watched.", func(ctx context.Context, user model.ID) (*record.Record, error) {
		return a.session.Logs(ctx, user)
	})
}

func newListCmd(a *app) *cobra.Command {
	var out outputFlags
	cmd := &cobra.Command{
		Use:   "list <owner> <list-slug>",
		Short: "Prints one list, with ranks when the list is numbered.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := a.session.List(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return a.emit(cmd.Context(), cmd.OutOrStdout(), rec, out)
		},
	}
	out.bind(cmd)
	return cmd
}

func newListsCmd(a *app) *cobra.Command {
	var (
		out  outputFlags
		full bool
	)
	cmd := &cobra.Command{
		Use:   "lists <user>",
		Short: "Prints the lists a user has made.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user := model.ID(args[0])
			if !full {
				index, err := a.session.ListIndex(cmd.Context(), user)
				if err != nil {
					return err
				}
				t := table.NewWriter()
				t.SetOutputMirror(cmd.OutOrStdout())
				t.AppendHeader(table.Row{"List", "Title", "Films"})
				for _, l := range index {
					films := "?"
					if l.Films >= 0 {
						films = fmt.Sprint(l.Films)
					}
					t.AppendRow(table.Row{l.ID, l.Title, films})
				}
				t.SetStyle(table.StyleRounded)
				t.Render()
				return nil
			}

			recs, err := a.session.Lists(cmd.Context(), user)
			if err != nil {
				return err
			}
			for _, rec := range recs {
				if err := a.emit(cmd.Context(), cmd.OutOrStdout(), rec, out); err != nil {
					return err
				}
			}
			return nil
		},
	}
	out.bind(cmd)
	cmd.Flags().BoolVar(&full, "full", false, "aggregate every list instead of printing the index")
	return cmd
}

func newBrowseCmd(a *app) *cobra.Command {
	var (
		out   outputFlags
		pages int
	)
	cmd := &cobra.Command{
		Use:   "browse <feed>",
		Short: "Prints the first pages of a browse feed: popular, highest-rated, decade/1990 or year/2023.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			feed, err := fetcher.ParseFeed(args[0])
			if err != nil {
				return err
			}
			rec, err := a.session.Browse(cmd.Context(), feed, pages)
			if err != nil {
				return err
			}
			return a.emit(cmd.Context(), cmd.OutOrStdout(), rec, out)
		},
	}
	out.bind(cmd)
	cmd.Flags().IntVar(&pages, "pages", 1, "number of pages to read")
	return cmd
}

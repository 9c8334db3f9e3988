package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/letterboxd-client/pkg/export"
	"github.com/Sternrassler/letterboxd-client/pkg/model"
)

func newFilmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "film <slug>...",
		Short: "Prints the details of one or more films.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, slug := range args {
				film, err := a.session.Film(cmd.Context(), model.ID(slug))
				if err != nil {
					return fmt.Errorf("film %s: %w", slug, err)
				}
				if err := export.WriteFilm(cmd.OutOrStdout(), film); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newProfileCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "profile <user>",
		Short: "Prints a user's profile summary.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.session.Profile(cmd.Context(), model.ID(args[0]))
			if err != nil {
				return err
			}

			favourites := make([]string, len(p.FavouriteFilms))
			for i, ref := range p.FavouriteFilms {
				favourites[i] = string(ref.ID())
				if film, ok := ref.Get(); ok {
					favourites[i] = film.String()
				}
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetTitle(string(p.Username))
			t.AppendRows([]table.Row{
				{"Name", p.DisplayName},
				{"Films", p.FilmsWatched},
				{"Favourites", strings.Join(favourites, ", ")},
			})
			t.SetStyle(table.StyleRounded)
			t.Render()
			return nil
		},
	}
}

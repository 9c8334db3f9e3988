package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/letterboxd-client/pkg/model"
	"github.com/Sternrassler/letterboxd-client/pkg/pagination"
)

func newSavedCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "saved",
		Short: "Works with records saved by --save.",
	}
	cmd.AddCommand(newSavedListCmd(a), newSavedShowCmd(a))
	return cmd
}

func newSavedListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Prints the saved records.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.requireStore()
			if err != nil {
				return err
			}
			infos, err := st.Records(cmd.Context())
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Owner", "Kind", "Title", "Entries", "Declared", "Saved"})
			for _, info := range infos {
				t.AppendRow(table.Row{
					info.Owner, info.Kind, info.Title, info.Entries, info.DeclaredTotal,
					info.SavedAt.Local().Format("2006-01-02 15:04"),
				})
			}
			t.SetStyle(table.StyleRounded)
			t.Render()
			return nil
		},
	}
}

func newSavedShowCmd(a *app) *cobra.Command {
	var out outputFlags
	cmd := &cobra.Command{
		Use:   "show <owner> <kind>",
		Short: "Prints a saved record without fetching it again.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.requireStore()
			if err != nil {
				return err
			}
			kind, err := pagination.ParseKind(args[1])
			if err != nil {
				return err
			}
			rec, err := st.LoadRecord(cmd.Context(), model.ID(args[0]), kind, a.session.Films())
			if err != nil {
				return err
			}
			return a.emit(cmd.Context(), cmd.OutOrStdout(), rec, out)
		},
	}
	out.bind(cmd)
	return cmd
}

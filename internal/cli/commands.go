package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgallion1/wrnotes/internal/cookie"
	"github.com/dgallion1/wrnotes/internal/export"
	"github.com/dgallion1/wrnotes/internal/notebook"
	"github.com/dgallion1/wrnotes/internal/weread"
)

// withApp wires the component graph for a single command run.
func withApp(cmd *cobra.Command, flags *GlobalFlags, fn func(a *app) error) error {
	a, err := newApp(flags, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func newNotesCmd(flags *GlobalFlags) *cobra.Command {
	var (
		chapters bool
		organize bool
		refresh  bool
		style    int
	)
	cmd := &cobra.Command{
		Use:   "notes <bookID>",
		Short: "Print a book's highlights and notes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := notebook.NotesRequest{
				BookID:            args[0],
				IncludeChapters:   chapters,
				OrganizeByChapter: organize,
				Refresh:           refresh,
			}
			if cmd.Flags().Changed("style") {
				req.Style = &style
			}
			return withApp(cmd, flags, func(a *app) error {
				notes, err := a.svc.BookNotes(cmd.Context(), req)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), notes)
			})
		},
	}
	cmd.Flags().BoolVar(&chapters, "chapters", true, "fetch the chapter listing")
	cmd.Flags().BoolVar(&organize, "organize", true, "nest annotations under their chapters")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "ignore cached book info and chapters")
	cmd.Flags().IntVar(&style, "style", 0, "keep only highlights of this colour style")
	return cmd
}

func newShelfCmd(flags *GlobalFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "shelf",
		Short: "Summarize the bookshelf",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(a *app) error {
				shelf, err := a.svc.Bookshelf(cmd.Context(), limit)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), shelf)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", notebook.DefaultShelfLimit, "maximum books listed")
	return cmd
}

func newSearchCmd(flags *GlobalFlags) *cobra.Command {
	var req notebook.SearchRequest
	cmd := &cobra.Command{
		Use:   "search <keyword>",
		Short: "Find shelf books by title, author, category or booklist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Keyword = args[0]
			return withApp(cmd, flags, func(a *app) error {
				res, err := a.svc.Search(cmd.Context(), req)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().BoolVar(&req.Exact, "exact", false, "match title, author and translator exactly")
	cmd.Flags().BoolVar(&req.Details, "details", true, "include reading progress and note counts")
	cmd.Flags().IntVar(&req.Max, "max", notebook.DefaultSearchMax, "maximum results")
	return cmd
}

func newReviewsCmd(flags *GlobalFlags) *cobra.Command {
	var q weread.BestReviewsQuery
	cmd := &cobra.Command{
		Use:   "reviews <bookID>",
		Short: "Print a page of a book's popular reviews",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(a *app) error {
				res, err := a.svc.BestReviews(cmd.Context(), args[0], q)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().IntVar(&q.Count, "count", 10, "reviews per page")
	cmd.Flags().IntVar(&q.MaxIdx, "max-idx", 0, "paging offset")
	cmd.Flags().Int64Var(&q.SyncKey, "synckey", 0, "sync key from the previous page")
	return cmd
}

func newImportedCmd(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "imported [keyword]",
		Short: "List WeRead highlights held by the local highlighter service",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var keyword string
			if len(args) == 1 {
				keyword = args[0]
			}
			return withApp(cmd, flags, func(a *app) error {
				sum, err := a.svc.Imported(cmd.Context(), keyword)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), sum)
			})
		},
	}
}

func newExportCmd(flags *GlobalFlags) *cobra.Command {
	var (
		format string
		out    string
		style  int
	)
	cmd := &cobra.Command{
		Use:   "export <bookID>",
		Short: "Render a book's notes as markdown, HTML or Word",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			req := notebook.NotesRequest{
				BookID:            args[0],
				IncludeChapters:   true,
				OrganizeByChapter: true,
			}
			if cmd.Flags().Changed("style") {
				req.Style = &style
			}
			return withApp(cmd, flags, func(a *app) error {
				notes, err := a.svc.BookNotes(cmd.Context(), req)
				if err != nil {
					return err
				}
				doc, err := export.Render(notes, f)
				if err != nil {
					return err
				}
				if out == "-" {
					_, err := cmd.OutOrStdout().Write(doc.Body)
					return err
				}
				path := out
				if path == "" {
					path = doc.Filename
				}
				if err := os.WriteFile(path, doc.Body, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", path, err)
				}
				a.log.Info("export written", "path", path, "bytes", len(doc.Body))
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", string(export.FormatMarkdown), "output format (md, html, docx)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file, - for stdout (default derived from the title)")
	cmd.Flags().IntVar(&style, "style", 0, "keep only highlights of this colour style")
	return cmd
}

func newCookieCmd(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "cookie",
		Short: "Resolve the WeRead cookie and show which identity it carries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(a *app) error {
				c, err := a.resolver.Resolve(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), cookie.Diagnose(c))
			})
		},
	}
}

package main

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/erazemk/oprema/internal/analytics"
	"github.com/erazemk/oprema/internal/client"
	"github.com/erazemk/oprema/internal/export"
	"github.com/erazemk/oprema/internal/lifecycle"
	"github.com/erazemk/oprema/internal/model"
)

// remote holds the flags shared by commands that talk to a running server.
type remote struct {
	server string
	token  string
}

func (r *remote) client() *client.Client {
	var opts []client.Option
	if r.token != "" {
		opts = append(opts, client.WithToken(r.token))
	}
	return client.New(r.server, opts...)
}

// serverURL turns a listen address into a URL on the local host.
func serverURL(addr string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return addr
	}
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	return "http://" + addr
}

func addRemoteCommands(root *cobra.Command, a *app) {
	r := &remote{}

	cmds := []*cobra.Command{
		assetsCmd(r),
		showCmd(r),
		claimCmd(r),
		releaseCmd(r),
		exportCmd(r),
		avatarCmd(r),
	}
	for _, cmd := range cmds {
		cmd.Flags().StringVar(&r.server, "server", "", "server URL (default: derived from server.addr)")
		cmd.Flags().StringVar(&r.token, "token", os.Getenv("OPREMA_TOKEN"), "identity token ($OPREMA_TOKEN)")
		cmd.PreRun = func(cmd *cobra.Command, args []string) {
			if r.server == "" {
				r.server = serverURL(a.cfg.Server.Addr)
			}
		}
		root.AddCommand(cmd)
	}
}

func holder(a model.AssetView) string {
	if a.BusyBy == nil {
		return "-"
	}
	return a.BusyBy.DisplayName
}

func assetsCmd(r *remote) *cobra.Command {
	return &cobra.Command{
		Use:   "assets",
		Short: "List assets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			assets, err := r.client().Assets(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTYPE\tSTATUS\tHOLDER\tWARN\tALARM\tNAME")
			for _, a := range assets {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
					a.ID, a.Type, a.Status, holder(a), a.Counts.Warnings, a.Counts.Alarms, a.Name)
			}
			return tw.Flush()
		},
	}
}

func showCmd(r *remote) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show an asset with its recent history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ac := client.NewAssetContext(r.client())
			ac.Select(args[0])
			if err := ac.Refresh(cmd.Context()); err != nil {
				return err
			}
			printSnapshot(cmd.OutOrStdout(), ac.Current(), limit)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of recent events to print (0 for all)")
	return cmd
}

func printSnapshot(w io.Writer, s client.Snapshot, limit int) {
	a := s.Asset
	fmt.Fprintf(w, "%s  %s\n", a.ID, a.Name)
	fmt.Fprintf(w, "  type:    %s\n", a.Type)
	fmt.Fprintf(w, "  room:    %s\n", a.Room)
	fmt.Fprintf(w, "  status:  %s (%s)\n", a.Status, holder(*a))
	if a.IsMine {
		fmt.Fprintln(w, "           held by you")
	}
	fmt.Fprintf(w, "  counts:  %d warnings, %d alarms\n", a.Counts.Warnings, a.Counts.Alarms)
	if a.Totals != nil {
		fmt.Fprintf(w, "  totals:  %d warnings, %d alarms\n", a.Totals.Warnings, a.Totals.Alarms)
	}
	if d := a.Description; d != nil {
		fmt.Fprintf(w, "  serial:  %s\n", d.SerialNumber)
		fmt.Fprintf(w, "  maker:   %s\n", d.Manufacturer)
	}

	events := s.Events
	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	if len(events) == 0 {
		fmt.Fprintln(w, "\nNo events.")
		return
	}
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tTYPE\tUSER\tRESULT")
	for i := len(events) - 1; i >= 0; i-- {
		e := events[i]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", export.FormatTimestamp(e.TS, time.Local), e.Type, e.UserLogin, e.Result)
	}
	tw.Flush()
}

func claimCmd(r *remote) *cobra.Command {
	return &cobra.Command{
		Use:   "claim <id>",
		Short: "Claim a free asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ac := client.NewAssetContext(r.client())
			ac.Select(args[0])
			if err := ac.Claim(cmd.Context()); err != nil {
				return err
			}
			a := ac.Current().Asset
			fmt.Fprintf(cmd.OutOrStdout(), "Claimed %s (%s).\n", a.ID, a.Name)
			return nil
		},
	}
}

func releaseCmd(r *remote) *cobra.Command {
	var req lifecycle.ReleaseRequest

	cmd := &cobra.Command{
		Use:   "release <id>",
		Short: "Release an asset you hold",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ac := client.NewAssetContext(r.client())
			ac.Select(args[0])
			if err := ac.Release(cmd.Context(), req); err != nil {
				return err
			}
			snap := ac.Current()
			result := ""
			if n := len(snap.Events); n > 0 {
				result = snap.Events[n-1].Result
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Released %s: %s\n", snap.Asset.ID, result)
			return nil
		},
	}

	cmd.Flags().StringVarP(&req.WorkType, "work-type", "w", "", "kind of work done (required)")
	cmd.Flags().StringVarP(&req.Details, "details", "d", "", "free-text details")
	cmd.Flags().StringVarP(&req.Problem, "problem", "p", model.ProblemNone, "problem severity: none, warning or alarm")
	cmd.MarkFlagRequired("work-type")

	return cmd
}

func exportCmd(r *remote) *cobra.Command {
	var (
		format   string
		preset   string
		from     string
		to       string
		workType string
		user     string
		query    string
		out      string
	)

	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Download the filtered history as CSV or PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			for k, v := range map[string]string{
				analytics.ParamPreset:   preset,
				analytics.ParamFrom:     from,
				analytics.ParamTo:       to,
				analytics.ParamWorkType: workType,
				analytics.ParamUser:     user,
				analytics.ParamQuery:    query,
			} {
				if v != "" {
					q.Set(k, v)
				}
			}

			data, name, err := r.client().Export(cmd.Context(), args[0], format, q)
			if err != nil {
				return err
			}
			if name == "" {
				name = export.FileName(args[0], format, time.Now())
			}

			switch out {
			case "-":
				_, err := cmd.OutOrStdout().Write(data)
				return err
			case "":
				out = name
			}
			if info, err := os.Stat(out); err == nil && info.IsDir() {
				out = filepath.Join(out, name)
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("writing export: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s (%d bytes).\n", out, len(data))
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", export.FormatCSV, "export format: csv or pdf")
	cmd.Flags().StringVar(&preset, "preset", "", "date preset: day, week, 2w, month, 3m, 6m")
	cmd.Flags().StringVar(&from, "from", "", "window start, "+analytics.LocalLayout)
	cmd.Flags().StringVar(&to, "to", "", "window end, "+analytics.LocalLayout)
	cmd.Flags().StringVar(&workType, "work-type", "", "only this work type")
	cmd.Flags().StringVar(&user, "user", "", "only this user login")
	cmd.Flags().StringVarP(&query, "query", "q", "", "substring to look for in results")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file or directory, - for stdout (default: server file name)")

	return cmd
}

func avatarCmd(r *remote) *cobra.Command {
	return &cobra.Command{
		Use:   "avatar <image>",
		Short: "Upload a new avatar for the acting user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening image: %w", err)
			}
			defer f.Close()

			u, err := r.client().UploadAvatar(cmd.Context(), filepath.Base(args[0]), f)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), u)
			return nil
		},
	}
}

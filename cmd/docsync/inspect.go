package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dshills/docsync/internal/buffer"
	"github.com/dshills/docsync/internal/codec"
	"github.com/dshills/docsync/internal/filemanager"
)

// report is what inspect prints for one buffer.
type report struct {
	Path         string              `json:"path"`
	Status       string              `json:"status"`
	UnicodeMode  string              `json:"unicodeMode"`
	Codepage     string              `json:"codepage,omitempty"`
	EOL          string              `json:"eol"`
	Language     string              `json:"language"`
	Length       int64               `json:"length"`
	Large        bool                `json:"large"`
	ReadOnly     bool                `json:"readOnly"`
	Network      bool                `json:"network,omitempty"`
	Restrictions buffer.Restrictions `json:"restrictions"`
}

func newInspectCmd(a *app) *cobra.Command {
	var (
		encoding int
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "inspect FILE|PATTERN...",
		Short: "Show detected encoding, line endings and language",
		Long: `Load each file and report what was detected. Arguments containing glob
characters are expanded with ** support; directories are skipped.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := loadArgs(cmd, a, args, filemanager.LoadOptions{Encoding: encoding})
			if err != nil {
				return err
			}

			reports := make([]report, 0, len(ids))
			for _, id := range ids {
				r, err := a.report(id)
				if err != nil {
					return err
				}
				reports = append(reports, r)
			}

			if asJSON {
				encoder := json.NewEncoder(a.out)
				encoder.SetIndent("", "  ")
				return encoder.Encode(reports)
			}

			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PATH\tMODE\tCODEPAGE\tEOL\tLANGUAGE\tLENGTH\tFLAGS")
			for _, r := range reports {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
					r.Path, r.UnicodeMode, orDash(r.Codepage), r.EOL, r.Language, r.Length, r.flags())
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&encoding, "encoding", 0, "Codepage to decode with when the file has no byte-order mark")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output in JSON format")
	return cmd
}

// loadArgs loads plain paths and expands glob patterns.
func loadArgs(cmd *cobra.Command, a *app, args []string, opts filemanager.LoadOptions) ([]buffer.ID, error) {
	ctx := cmd.Context()
	var ids []buffer.ID
	for _, arg := range args {
		if strings.ContainsAny(arg, "*?[{") {
			got, err := a.fm.LoadGlob(ctx, arg, opts)
			if err != nil {
				return nil, err
			}
			if len(got) == 0 {
				a.logger.Warn("no files match %s", arg)
			}
			ids = append(ids, got...)
			continue
		}
		id, err := a.fm.LoadFile(ctx, arg, opts)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (a *app) report(id buffer.ID) (report, error) {
	var r report
	err := a.fm.WithBuffer(id, func(b *buffer.Buffer) error {
		r = report{
			Path:         b.FullPath(),
			Status:       b.Status().String(),
			UnicodeMode:  b.UnicodeMode().String(),
			EOL:          b.EOL().String(),
			Language:     string(b.Language()),
			Length:       a.store.Length(b.Document()),
			Large:        b.LargeFile(),
			ReadOnly:     b.ReadOnly(),
			Network:      b.IsNetwork(),
			Restrictions: b.Restrictions(a.cfg.LargeFileRestriction),
		}
		if cp := b.Encoding(); cp != codec.NoCodepage {
			name, _ := codec.CodepageName(cp)
			r.Codepage = fmt.Sprintf("%d (%s)", cp, name)
		}
		return nil
	})
	return r, err
}

func (r report) flags() string {
	var f []string
	if r.Large {
		f = append(f, "large")
	}
	if r.ReadOnly {
		f = append(f, "readonly")
	}
	if r.Network {
		f = append(f, "network")
	}
	return orDash(strings.Join(f, ","))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

package main

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/docsync/internal/buffer"
	"github.com/dshills/docsync/internal/codec"
	"github.com/dshills/docsync/internal/document"
	"github.com/dshills/docsync/internal/filemanager"
)

func newConvertCmd(a *app) *cobra.Command {
	var (
		eolName  string
		modeName string
		codepage int
		encoding int
	)
	cmd := &cobra.Command{
		Use:   "convert SRC [DST]",
		Short: "Rewrite a file with other line endings or another encoding",
		Long: `Load SRC, change its line endings, Unicode mode or codepage, and save it
to DST. Without DST the file is rewritten in place.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			eol := codec.EOLUnknown
			if eolName != "" {
				e, ok := codec.ParseEOL(eolName)
				if !ok {
					return fmt.Errorf("invalid --eol %q", eolName)
				}
				eol = e
			}
			mode, setMode := codec.UniMode(0), modeName != ""
			if setMode {
				m, ok := codec.ParseUniMode(modeName)
				if !ok {
					return fmt.Errorf("invalid --mode %q", modeName)
				}
				mode = m
			}
			if codepage != 0 && !codec.KnownCodepage(codepage) {
				return fmt.Errorf("unsupported --codepage %d", codepage)
			}

			id, err := a.fm.LoadFile(ctx, args[0], filemanager.LoadOptions{Encoding: encoding})
			if err != nil {
				return err
			}

			doc := a.bufferDoc(id)
			if eol != codec.EOLUnknown {
				text := a.store.Text(doc)
				if converted := codec.ConvertEOL(text, eol); !bytes.Equal(converted, text) {
					if err := a.store.Clear(doc); err != nil {
						return err
					}
					if err := a.store.Append(doc, converted); err != nil {
						return err
					}
				}
			}

			err = a.fm.WithBuffer(id, func(b *buffer.Buffer) error {
				if eol != codec.EOLUnknown {
					b.SetEOL(eol)
				}
				switch {
				case codepage != 0:
					b.SetUnicodeMode(codec.UniCookie)
					b.SetEncoding(codepage)
				case setMode:
					b.SetUnicodeMode(mode)
					b.SetEncoding(codec.NoCodepage)
				}
				return nil
			})
			if err != nil {
				return err
			}

			dst, isCopy := args[0], false
			if len(args) == 2 {
				dst, isCopy = args[1], true
			}
			if err := a.fm.SaveBuffer(ctx, id, dst, isCopy); err != nil {
				return fmt.Errorf("%s: %w", filemanager.SavingStatus(err), err)
			}

			r, err := a.report(id)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "wrote %s (%s, %s)\n", dst, r.UnicodeMode, r.EOL)
			return nil
		},
	}
	cmd.Flags().StringVar(&eolName, "eol", "", "Line endings: windows, unix or mac")
	cmd.Flags().StringVar(&modeName, "mode", "", "Unicode mode: 8bit, utf8, utf8bom, utf16le, utf16be")
	cmd.Flags().IntVar(&codepage, "codepage", 0, "Codepage to encode with, e.g. 1252")
	cmd.Flags().IntVar(&encoding, "encoding", 0, "Codepage to decode SRC with")
	return cmd
}

// bufferDoc returns the document handle of buffer id.
func (a *app) bufferDoc(id buffer.ID) document.Handle {
	b, _ := a.fm.Buffer(id)
	return b.Document()
}

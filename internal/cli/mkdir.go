package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"smugsync/internal/fs"
)

type mkdirFlags struct {
	parents bool
	privacy string
	user    string
}

// newMkdirCmd mkdir / mkalbum: 在远端创建文件夹或相册
func newMkdirCmd(a *app, kind fs.Kind) *cobra.Command {
	use, short := "mkdir", "Create remote folders"
	if kind == fs.KindAlbum {
		use, short = "mkalbum", "Create remote albums"
	}

	f := &mkdirFlags{}
	cmd := &cobra.Command{
		Use:   use + " <path>...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			privacy, err := a.privacy(f.privacy)
			if err != nil {
				return err
			}
			engine, _, err := a.engine(f.user, 0)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			failed := 0
			for _, p := range args {
				created, err := engine.MakeContainer(cmd.Context(), p, kind, privacy, f.parents)
				for _, c := range created {
					fmt.Fprintf(out, "Created %s %q.\n", kindOf(c, p, kind), c)
				}
				if errors.Is(err, fs.ErrAuth) {
					return fatal(err)
				}
				if err != nil {
					fmt.Fprintln(out, err)
					failed++
				}
			}
			if failed > 0 {
				return &ExitError{Code: 1, Err: fmt.Errorf("%d of %d paths not created", failed, len(args))}
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.BoolVarP(&f.parents, "parents", "p", false, "create missing parent folders")
	flags.StringVar(&f.privacy, "privacy", "", "privacy of created nodes: public, unlisted or private")
	flags.StringVarP(&f.user, "user", "u", "", "create in another user's tree (default: authenticated user)")
	return cmd
}

// kindOf 只有请求的路径本身是 kind 类型, 上级都是文件夹
func kindOf(created, requested string, kind fs.Kind) fs.Kind {
	if fs.CleanPath(requested) == created {
		return kind
	}
	return fs.KindFolder
}

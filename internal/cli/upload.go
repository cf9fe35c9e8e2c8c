package cli

import (
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"smugsync/internal/fs"
	"smugsync/internal/fs/local"
	"smugsync/internal/ignore"
)

type uploadFlags struct {
	user        string
	concurrency int
}

// newUploadCmd upload: 上传文件到已存在的相册, 同名图片跳过
func newUploadCmd(a *app) *cobra.Command {
	f := &uploadFlags{}
	cmd := &cobra.Command{
		Use:   "upload <file>... <album>",
		Short: "Upload files to an existing SmugMug album",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, album := args[:len(args)-1], fs.CleanPath(args[len(args)-1])

			engine, _, err := a.engine(f.user, f.concurrency)
			if err != nil {
				return err
			}
			// 显式列出的文件不应用忽略规则
			tree, err := local.NewScanner(afero.NewOsFs(), ignore.New(nil), a.cfg.Sync.PrivacyValue).Scan(files)
			if err != nil {
				return fatal(err)
			}
			plan, err := engine.PlanUpload(cmd.Context(), tree, album)
			if err != nil {
				return fatal(err)
			}
			return a.execute(cmd.Context(), cmd.OutOrStdout(), engine, plan, files, album)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.user, "user", "u", "", "upload into another user's album (default: authenticated user)")
	flags.IntVar(&f.concurrency, "concurrency", 0, "number of parallel uploads (default from config)")
	return cmd
}

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"smugsync/internal/config"
	"smugsync/internal/database"
	"smugsync/internal/fs"
	"smugsync/internal/fs/local"
	"smugsync/internal/ignore"
	syncer "smugsync/internal/sync"
)

// syncFlags sync 命令的参数
type syncFlags struct {
	target      string
	user        string
	privacy     string
	concurrency int
	force       bool
	dryRun      bool
}

func newSyncCmd(a *app) *cobra.Command {
	f := &syncFlags{}
	cmd := &cobra.Command{
		Use:   "sync [source...]",
		Short: "Upload local directories and files to a SmugMug folder or album",
		Long: `Synchronize local sources to SmugMug. Each source directory becomes a child
of the target (by base name); source files are uploaded straight into the target,
which must then be an album. Nothing is deleted or overwritten remotely.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{"."}
			}
			return a.runSync(cmd.Context(), cmd.OutOrStdout(), args, f)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.target, "target", "t", "/", "remote folder or album to sync to")
	flags.StringVarP(&f.user, "user", "u", "", "sync into another user's tree (default: authenticated user)")
	flags.StringVar(&f.privacy, "privacy", "", "privacy of created folders and albums: public, unlisted or private")
	flags.IntVar(&f.concurrency, "concurrency", 0, "number of parallel uploads (default from config)")
	flags.BoolVarP(&f.force, "force", "f", false, "do not ask for confirmation")
	flags.BoolVar(&f.dryRun, "dry-run", false, "print the plan without changing anything")
	return cmd
}

func (a *app) runSync(ctx context.Context, out io.Writer, sources []string, f *syncFlags) error {
	privacy, err := a.privacy(f.privacy)
	if err != nil {
		return err
	}
	engine, concurrency, err := a.engine(f.user, f.concurrency)
	if err != nil {
		return err
	}

	matcher := ignore.New(a.cfg.Rules())
	slog.Debug("忽略规则", "rules", matcher.Len())
	scanner := local.NewScanner(afero.NewOsFs(), matcher, privacy)
	tree, err := scanner.Scan(sources)
	if err != nil {
		return fatal(err)
	}

	target := fs.CleanPath(f.target)
	plan, err := engine.Plan(ctx, tree, target)
	if err != nil {
		return fatal(err)
	}

	if f.dryRun {
		printPlan(out, plan)
		return nil
	}
	if !f.force && a.interactive() {
		ok, err := confirm(out, a.in, sources, target)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(out, "Aborting.")
			return nil
		}
	}

	slog.Info("开始同步", "sources", len(sources), "target", target, "actions", len(plan), "workers", concurrency)
	return a.execute(ctx, out, engine, plan, sources, target)
}

// execute 执行计划, 打印摘要并写入运行日志; 返回值携带退出码
func (a *app) execute(ctx context.Context, out io.Writer, engine *syncer.Engine, plan syncer.Plan, sources []string, target string) error {
	res, runErr := engine.Execute(ctx, plan)
	printSummary(out, res)
	a.record(res, sources, target, runErr)

	switch {
	case runErr != nil:
		return fatal(runErr)
	case res.Failed > 0:
		return &ExitError{Code: 1, Err: fmt.Errorf("%d actions failed", res.Failed)}
	case res.Cancelled > 0:
		return &ExitError{Code: 1, Err: fmt.Errorf("sync interrupted, %d actions cancelled", res.Cancelled)}
	}
	return nil
}

// engine 用配置和凭证创建引擎; concurrency > 0 时覆盖配置
func (a *app) engine(user string, concurrency int) (*syncer.Engine, int, error) {
	auth := a.credentials()
	if !auth.LoggedIn() {
		return nil, 0, fatal(errors.New("not logged in, run 'smugsync login' first"))
	}
	if concurrency <= 0 {
		concurrency = a.cfg.Sync.Concurrency
	}
	e := syncer.NewEngine(&syncer.EngineOptions{
		Remote:         a.newRemote(auth, user),
		Concurrency:    concurrency,
		MaxAttempts:    a.cfg.Sync.MaxAttempts,
		RetryDelay:     a.cfg.Sync.RetryDelayDuration,
		MaxFolderDepth: a.cfg.Sync.MaxFolderDepth,
	})
	return e, concurrency, nil
}

// privacy --privacy 参数, 为空时使用配置中的默认值
func (a *app) privacy(flag string) (fs.Privacy, error) {
	if flag == "" {
		return a.cfg.Sync.PrivacyValue, nil
	}
	p, err := fs.ParsePrivacy(flag)
	if err != nil {
		return 0, fatal(err)
	}
	return p, nil
}

// confirm 在终端上确认同步
func confirm(out io.Writer, in io.Reader, sources []string, target string) (bool, error) {
	fmt.Fprintln(out, "Syncing:")
	for _, s := range sources {
		fmt.Fprintf(out, "  %s\n", s)
	}
	fmt.Fprintf(out, "to SmugMug %q.\n", target)
	fmt.Fprint(out, "Proceed (yes/no)? ")

	sc := bufio.NewScanner(in)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return false, fmt.Errorf("read answer: %w", err)
		}
		return false, nil
	}
	switch strings.ToLower(strings.TrimSpace(sc.Text())) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// record 写入运行日志, 失败只记录警告
func (a *app) record(res *syncer.Result, sources []string, target string, runErr error) {
	if res == nil {
		return
	}
	db, err := database.NewBoltDB(config.ExpandPath(a.cfg.System.JournalPath))
	if err != nil {
		slog.Warn("无法打开运行日志", "err", err)
		return
	}
	defer db.Close()

	if err := db.Put(runRecord(res, sources, target, runErr)); err != nil {
		slog.Warn("写入运行日志失败", "err", err)
	}
}

func runRecord(res *syncer.Result, sources []string, target string, runErr error) *database.RunRecord {
	rec := &database.RunRecord{
		ID:            res.RunID,
		Started:       res.Started,
		Duration:      res.Duration,
		Sources:       sources,
		Target:        target,
		Created:       res.Created,
		Uploaded:      res.Uploaded,
		Skipped:       res.Skipped,
		Failed:        res.Failed,
		Cancelled:     res.Cancelled,
		UploadedBytes: res.UploadedBytes,
	}
	if runErr != nil {
		rec.Aborted = runErr.Error()
	}
	for _, o := range res.Failures() {
		reason := o.Reason
		if o.Err != nil {
			reason = o.Err.Error()
		}
		rec.Failures = append(rec.Failures, database.Failure{
			Path:   o.Action.Path,
			Kind:   o.Kind.String(),
			Reason: reason,
		})
	}
	return rec
}

package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	stdsync "sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"smugsync/internal/fs"
)

// ErrInvalidTarget 目标路径与本地源不兼容
var ErrInvalidTarget = errors.New("invalid sync target")

const (
	DefaultConcurrency    = 4
	DefaultMaxAttempts    = 5
	DefaultRetryDelay     = time.Second
	DefaultMaxRetryDelay  = 30 * time.Second
	DefaultMaxFolderDepth = 5
)

// EngineOptions 初始化选项 (运行期间不可变)
type EngineOptions struct {
	Remote         fs.RemoteService
	Concurrency    int
	MaxAttempts    int
	RetryDelay     time.Duration
	MaxRetryDelay  time.Duration
	MaxFolderDepth int
	Clock          clockwork.Clock
}

// Engine 一次同步运行: 远端缓存随 Engine 创建, 运行结束即丢弃
type Engine struct {
	opts  EngineOptions
	tree  *RemoteTree
	retry *retrier
}

func NewEngine(o *EngineOptions) *Engine {
	opts := *o
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.MaxRetryDelay <= 0 {
		opts.MaxRetryDelay = DefaultMaxRetryDelay
	}
	if opts.MaxFolderDepth <= 0 {
		opts.MaxFolderDepth = DefaultMaxFolderDepth
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Engine{
		opts: opts,
		tree: NewRemoteTree(opts.Remote),
		retry: &retrier{
			attempts: opts.MaxAttempts,
			delay:    opts.RetryDelay,
			maxDelay: opts.MaxRetryDelay,
			clock:    opts.Clock,
		},
	}
}

// Run 规划并执行
func (e *Engine) Run(ctx context.Context, local *fs.Node, target string) (Plan, *Result, error) {
	plan, err := e.Plan(ctx, local, target)
	if err != nil {
		return nil, nil, err
	}
	res, err := e.Execute(ctx, plan)
	return plan, res, err
}

// Plan 解析目标路径并比较 local (无名根节点, 子节点为各个源) 与目标.
// 目标路径中缺失的段作为 Folder 创建; 若本地根是 Album 则最后一段创建为 Album.
func (e *Engine) Plan(ctx context.Context, local *fs.Node, target string) (Plan, error) {
	target = fs.CleanPath(target)
	d := &differ{tree: e.tree, retry: e.retry, maxDepth: e.opts.MaxFolderDepth}

	targetKind, exists, err := e.resolveTarget(ctx, d, local, target)
	if err != nil {
		return nil, err
	}
	if err := checkTarget(local, target, targetKind); err != nil {
		return nil, err
	}

	if exists {
		var paths []string
		for _, c := range local.Children {
			if c.Kind.IsContainer() && c.Syncable() {
				paths = append(paths, fs.JoinPath(target, c.Name))
			}
		}
		if err := e.tree.Prefetch(ctx, paths, e.opts.Concurrency); err != nil {
			return nil, err
		}
	}

	if err := d.diff(ctx, local, target, exists); err != nil {
		return nil, err
	}
	if err := d.plan.Validate(); err != nil {
		return nil, err
	}
	return d.plan, nil
}

// resolveTarget 逐段查找目标, 为缺失的段生成创建动作
func (e *Engine) resolveTarget(ctx context.Context, d *differ, local *fs.Node, target string) (fs.Kind, bool, error) {
	var cur *fs.Node
	_, err := e.retry.do(ctx, "resolve /", func(c context.Context) error {
		var err error
		cur, err = e.tree.Root(c)
		return err
	})
	if err != nil {
		return 0, false, err
	}
	if target == "/" {
		return fs.KindFolder, true, nil
	}

	segs := strings.Split(strings.TrimPrefix(target, "/"), "/")
	p := "/"
	exists := true
	for i, seg := range segs {
		p = fs.JoinPath(p, seg)
		last := i == len(segs)-1

		if exists {
			var n *fs.Node
			_, err := e.retry.do(ctx, "resolve "+p, func(c context.Context) error {
				var err error
				n, err = e.tree.Find(c, p)
				return err
			})
			if err != nil {
				return 0, false, err
			}
			if n != nil {
				switch {
				case n.Kind == fs.KindImage && last:
					return 0, false, fmt.Errorf("%w: can't sync to a file node %s", ErrInvalidTarget, p)
				case n.Kind == fs.KindImage:
					return 0, false, fmt.Errorf("%w: %q is a file, it can't have child nodes", ErrInvalidTarget, p)
				case n.Kind == fs.KindAlbum && !last:
					return 0, false, fmt.Errorf("%w: album %s can't hold folders or albums", ErrInvalidTarget, p)
				}
				cur = n
				continue
			}
			exists = false
		}

		kind := fs.KindFolder
		if last && local.Kind == fs.KindAlbum {
			kind = fs.KindAlbum
		}
		if kind == fs.KindFolder && fs.Depth(p) > e.opts.MaxFolderDepth {
			return 0, false, fmt.Errorf("%w: cannot create %s, folders can't be nested more than %d levels deep",
				ErrInvalidTarget, p, e.opts.MaxFolderDepth)
		}
		d.emit(containerAction(kind, p, local.Privacy))
		cur = &fs.Node{Kind: kind, Path: p}
	}
	return cur.Kind, exists, nil
}

// checkTarget 文件只能同步到相册, 目录只能同步到文件夹
func checkTarget(local *fs.Node, target string, kind fs.Kind) error {
	for _, c := range local.Children {
		isDir := c.Kind.IsContainer()
		switch {
		case kind == fs.KindFolder && !isDir:
			return fmt.Errorf("%w: can't upload files to folder %s, please sync to an album node", ErrInvalidTarget, target)
		case kind == fs.KindAlbum && isDir:
			return fmt.Errorf("%w: can't upload folders to album %s, please sync to a folder node", ErrInvalidTarget, target)
		}
	}
	return nil
}

// Execute 用有界 worker 池执行计划.
// 动作在其最近的祖先动作达到终态后才就绪; 祖先失败时后代标记为 Skipped("ancestor failed").
// 单个动作失败不会返回错误; 只有 ErrAuth (中止运行) 和计划非法会返回错误.
// ctx 取消后停止分发, 进行中的动作完成后返回, 未分发的动作标记为 Cancelled.
func (e *Engine) Execute(ctx context.Context, plan Plan) (*Result, error) {
	res := &Result{
		RunID:    uuid.NewString(),
		Started:  time.Now(),
		Outcomes: make([]Outcome, len(plan)),
	}
	defer func() {
		res.Duration = time.Since(res.Started)
		res.tally()
	}()

	if err := plan.Validate(); err != nil {
		return res, err
	}
	if len(plan) == 0 {
		return res, nil
	}

	runCtx, abort := context.WithCancelCause(ctx)
	defer abort(nil)

	s := newScheduler(plan, res.Outcomes)

	var wg stdsync.WaitGroup
	for i := 0; i < e.opts.Concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for idx := range s.ready {
				a := plan[idx]
				if runCtx.Err() != nil {
					s.finish(idx, Outcome{Action: a, Status: StatusCancelled, Reason: fs.ReasonCancelled, Kind: fs.ErrorCancelled})
					continue
				}

				out := e.apply(runCtx, a)
				if out.Kind == fs.ErrorAuth {
					slog.Error("认证失败, 中止同步", "worker", id, "path", a.Path, "err", out.Err)
					abort(out.Err)
				}
				s.finish(idx, out)
			}
		}(i)
	}
	wg.Wait()

	if cause := context.Cause(runCtx); cause != nil && errors.Is(cause, fs.ErrAuth) {
		return res, fmt.Errorf("sync aborted: %w", cause)
	}
	return res, nil
}

// apply 执行单个动作并返回终态
func (e *Engine) apply(ctx context.Context, a Action) Outcome {
	out := Outcome{Action: a}

	var err error
	switch a.Type {
	case ActionSkip:
		out.Reason = a.Reason
		if a.Err != nil {
			out.Status = StatusFailed
			out.Kind = fs.Classify(a.Err)
			out.Err = a.Err
			slog.Error("跳过 (错误)", "path", a.Path, "reason", a.Reason, "err", a.Err)
		} else {
			out.Status = StatusSkipped
			slog.Debug("跳过", "path", a.Path, "reason", a.Reason)
		}
		return out

	case ActionCreateFolder, ActionCreateAlbum:
		kind := fs.KindFolder
		if a.Type == ActionCreateAlbum {
			kind = fs.KindAlbum
		}
		var created bool
		out.Attempts, err = e.retry.do(ctx, "create "+a.Path, func(c context.Context) error {
			var err error
			_, created, err = e.tree.EnsureContainer(c, a.Path, kind, a.Privacy)
			return err
		})
		if err == nil {
			if created {
				slog.Info(fmt.Sprintf("Creating %s %q.", kind, a.Path))
				out.Status = StatusDone
			} else {
				slog.Info(fmt.Sprintf("Found matching remote %s %q.", kind, a.Path))
				out.Status = StatusSkipped
				out.Reason = fs.ReasonAlreadyPresent
			}
			return out
		}

	case ActionUploadImage:
		out.Attempts, err = e.retry.do(ctx, "upload "+a.Path, func(c context.Context) error {
			_, err := e.tree.Upload(c, path.Dir(a.Path), a.LocalPath)
			return err
		})
		if err == nil {
			slog.Info(fmt.Sprintf("Uploaded %q.", a.LocalPath), "album", a.AlbumPath())
			out.Status = StatusDone
			return out
		}
	}

	out.Err = err
	out.Kind = fs.Classify(err)
	if out.Kind == fs.ErrorCancelled {
		out.Status = StatusCancelled
		out.Reason = fs.ReasonCancelled
		return out
	}
	out.Status = StatusFailed
	slog.Error("动作失败", "action", a.Type, "path", a.Path, "kind", out.Kind, "attempts", out.Attempts, "err", err)
	return out
}

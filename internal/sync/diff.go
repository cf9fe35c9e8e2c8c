package sync

import (
	"context"
	"errors"
	"log/slog"

	"smugsync/internal/fs"
)

// differ 将本地树与远端树做按名字的归并比较, 生成有序计划.
// 同一层级容器先于图片; 每个容器的创建动作紧接着其整个子树, 天然满足祖先优先.
type differ struct {
	tree     *RemoteTree
	retry    *retrier
	maxDepth int
	plan     Plan
}

func (d *differ) emit(a Action) {
	d.plan = append(d.plan, a)
}

// children 带重试地拉取远端子节点
func (d *differ) children(ctx context.Context, p string) (map[string]*fs.Node, error) {
	var kids map[string]*fs.Node
	_, err := d.retry.do(ctx, "list "+p, func(c context.Context) error {
		var err error
		kids, err = d.tree.ChildrenOf(c, p)
		return err
	})
	return kids, err
}

// diff 比较 local 的子节点与远端 remotePath 的子节点.
// exists 为 false 时远端尚不存在, 所有本地子节点都视为仅本地存在.
// 只有 ErrAuth 和取消会作为错误返回, 其他错误记录为节点级 Skip.
func (d *differ) diff(ctx context.Context, local *fs.Node, remotePath string, exists bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var remote map[string]*fs.Node
	if exists {
		kids, err := d.children(ctx, remotePath)
		switch {
		case err == nil:
			remote = kids
		case errors.Is(err, fs.ErrAuth):
			return err
		case ctx.Err() != nil:
			// 调用方取消或超时, 不记为节点错误
			return ctx.Err()
		default:
			slog.Error("拉取远端目录失败", "path", remotePath, "err", err)
			d.emit(skipAction(remotePath, fs.ReasonRemoteFetch, err))
			return nil
		}
	}

	var containers, leaves []*fs.Node
	for _, c := range local.Children {
		if c.Kind.IsContainer() && c.Syncable() {
			containers = append(containers, c)
		} else {
			leaves = append(leaves, c)
		}
	}

	for _, c := range containers {
		target := fs.JoinPath(remotePath, c.Name)
		r := remote[c.Name]

		switch {
		case r == nil:
			if c.Kind == fs.KindFolder && fs.Depth(target) > d.maxDepth {
				slog.Warn("超出文件夹层级限制", "path", target, "max", d.maxDepth)
				d.emit(skipAction(target, fs.ReasonFolderDepth, nil))
				continue
			}
			d.emit(containerAction(c.Kind, target, c.Privacy))
			if err := d.diff(ctx, c, target, false); err != nil {
				return err
			}
		case r.Kind != c.Kind:
			slog.Warn("类型冲突", "path", target, "local", c.Kind, "remote", r.Kind)
			d.emit(skipAction(target, fs.ReasonKindConflict, nil))
		default:
			slog.Debug("找到匹配的远端容器", "path", target, "kind", r.Kind)
			if err := d.diff(ctx, c, target, true); err != nil {
				return err
			}
		}
	}

	for _, l := range leaves {
		target := fs.JoinPath(remotePath, l.Name)
		switch {
		case l.Err != nil:
			d.emit(skipAction(target, fs.ReasonLocalIO, l.Err))
			continue
		case l.Rejected != "":
			d.emit(skipAction(target, l.Rejected, nil))
			continue
		}

		r := remote[l.Name]
		switch {
		case r == nil:
			d.emit(Action{Type: ActionUploadImage, Path: target, LocalPath: l.LocalPath, Size: l.Size})
		case r.Kind != fs.KindImage:
			d.emit(skipAction(target, fs.ReasonKindConflict, nil))
		default:
			// 只按名字判断是否已存在, 不比较内容
			d.emit(skipAction(target, fs.ReasonAlreadyPresent, nil))
		}
	}
	return nil
}

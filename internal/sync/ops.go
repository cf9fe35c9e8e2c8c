package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"smugsync/internal/fs"
)

// ErrExists 要创建的路径已存在
var ErrExists = errors.New("path already exists")

// find 带重试的 RemoteTree.Find
func (e *Engine) find(ctx context.Context, p string) (*fs.Node, error) {
	var n *fs.Node
	_, err := e.retry.do(ctx, "resolve "+p, func(c context.Context) error {
		var err error
		n, err = e.tree.Find(c, p)
		return err
	})
	return n, err
}

// MakeContainer 在 p 处创建 kind 类型的容器, 返回新建的路径 (按创建顺序).
// parents 为 true 时逐级创建缺失的上级文件夹, 且 p 已是同类型容器时不报错.
// 文件夹层级限制与 sync 相同, 相册可以位于最深一层文件夹之下.
func (e *Engine) MakeContainer(ctx context.Context, p string, kind fs.Kind, privacy fs.Privacy, parents bool) ([]string, error) {
	p = fs.CleanPath(p)
	if !kind.IsContainer() {
		return nil, fmt.Errorf("can't create %s nodes", kind)
	}
	if p == "/" {
		return nil, fmt.Errorf("%w: %s", ErrExists, p)
	}

	var created []string
	cur := "/"
	segs := strings.Split(strings.TrimPrefix(p, "/"), "/")
	for i, seg := range segs {
		next := fs.JoinPath(cur, seg)
		last := i == len(segs)-1

		n, err := e.find(ctx, next)
		if err != nil {
			return created, err
		}
		if n != nil {
			switch {
			case n.Kind == fs.KindImage && !last:
				return created, fmt.Errorf("%w: %q is a file, it can't have child nodes", ErrInvalidTarget, next)
			case n.Kind == fs.KindAlbum && !last:
				return created, fmt.Errorf("%w: %ss can only be created in folders, %q is an album", ErrInvalidTarget, kind, next)
			case last && (!parents || n.Kind != kind):
				return created, fmt.Errorf("%w: %s", ErrExists, next)
			}
			cur = next
			continue
		}
		if !last && !parents {
			return created, fmt.Errorf("%w: %q not found in %q", ErrInvalidTarget, seg, cur)
		}

		k := fs.KindFolder
		if last {
			k = kind
		}
		if k == fs.KindFolder && fs.Depth(next) > e.opts.MaxFolderDepth {
			return created, fmt.Errorf("%w: cannot create %s, folders can't be nested more than %d levels deep",
				ErrInvalidTarget, next, e.opts.MaxFolderDepth)
		}

		var made bool
		_, err = e.retry.do(ctx, "create "+next, func(c context.Context) error {
			var err error
			_, made, err = e.tree.EnsureContainer(c, next, k, privacy)
			return err
		})
		if err != nil {
			return created, err
		}
		if made {
			slog.Info(fmt.Sprintf("Creating %s %q.", k, next))
			created = append(created, next)
		}
		cur = next
	}
	return created, nil
}

// PlanUpload 生成只上传文件的计划: albumPath 必须是已存在的相册, 不创建任何容器.
// 相册中已有同名图片时生成 Skip("already present").
func (e *Engine) PlanUpload(ctx context.Context, local *fs.Node, albumPath string) (Plan, error) {
	albumPath = fs.CleanPath(albumPath)
	for _, c := range local.Children {
		if c.Kind.IsContainer() {
			return nil, fmt.Errorf("%w: %s is a directory, only files can be uploaded", ErrInvalidTarget, c.Name)
		}
	}

	album, err := e.find(ctx, albumPath)
	if err != nil {
		return nil, err
	}
	switch {
	case album == nil:
		return nil, fmt.Errorf("%w: album not found: %q", ErrInvalidTarget, albumPath)
	case album.Kind != fs.KindAlbum:
		return nil, fmt.Errorf("%w: cannot upload images in node of type %s", ErrInvalidTarget, album.Kind)
	}

	d := &differ{tree: e.tree, retry: e.retry, maxDepth: e.opts.MaxFolderDepth}
	if err := d.diff(ctx, local, albumPath, true); err != nil {
		return nil, err
	}
	if err := d.plan.Validate(); err != nil {
		return nil, err
	}
	return d.plan, nil
}

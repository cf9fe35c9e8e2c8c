package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"path"
	"strings"
	stdsync "sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"smugsync/internal/fs"
)

// RemoteTree 远端层级在内存中的镜像, 按需拉取, 只在一次运行内缓存
type RemoteTree struct {
	svc fs.RemoteService

	mu       stdsync.RWMutex
	root     *fs.Node
	nodes    map[string]*fs.Node            // path -> node
	children map[string]map[string]*fs.Node // path -> name -> child (已拉取)

	// 每个路径只有一个拉取/创建在进行
	group singleflight.Group
}

// NewRemoteTree 创建空缓存
func NewRemoteTree(svc fs.RemoteService) *RemoteTree {
	return &RemoteTree{
		svc:      svc,
		nodes:    make(map[string]*fs.Node),
		children: make(map[string]map[string]*fs.Node),
	}
}

// Root returns the (cached) root node, path "/".
func (t *RemoteTree) Root(ctx context.Context) (*fs.Node, error) {
	t.mu.RLock()
	root := t.root
	t.mu.RUnlock()
	if root != nil {
		return root, nil
	}

	v, err, _ := t.group.Do("root", func() (any, error) {
		t.mu.RLock()
		if t.root != nil {
			defer t.mu.RUnlock()
			return t.root, nil
		}
		t.mu.RUnlock()

		n, err := t.svc.Root(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch root: %w", err)
		}
		n.Path = "/"
		n.Kind = fs.KindFolder

		t.mu.Lock()
		t.root = n
		t.nodes["/"] = n
		t.mu.Unlock()
		return n, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*fs.Node), nil
}

// ChildrenOf 返回 p 的子节点 (副本); p 不存在时返回错误, p 为图片时返回空
func (t *RemoteTree) ChildrenOf(ctx context.Context, p string) (map[string]*fs.Node, error) {
	n, err := t.Find(ctx, p)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, fmt.Errorf("remote path %s does not exist", fs.CleanPath(p))
	}
	return t.childrenOf(ctx, n)
}

// Find 精确按名字逐级查找, 不存在返回 (nil, nil)
func (t *RemoteTree) Find(ctx context.Context, p string) (*fs.Node, error) {
	p = fs.CleanPath(p)

	t.mu.RLock()
	n, ok := t.nodes[p]
	t.mu.RUnlock()
	if ok {
		return n, nil
	}

	cur, err := t.Root(ctx)
	if err != nil {
		return nil, err
	}
	if p == "/" {
		return cur, nil
	}
	for _, seg := range strings.Split(strings.TrimPrefix(p, "/"), "/") {
		if !cur.Kind.IsContainer() {
			return nil, nil
		}
		kids, err := t.childrenOf(ctx, cur)
		if err != nil {
			return nil, err
		}
		next, ok := kids[seg]
		if !ok {
			return nil, nil
		}
		cur = next
	}
	return cur, nil
}

func (t *RemoteTree) childrenOf(ctx context.Context, n *fs.Node) (map[string]*fs.Node, error) {
	if !n.Kind.IsContainer() {
		return map[string]*fs.Node{}, nil
	}

	t.mu.RLock()
	kids, ok := t.children[n.Path]
	if ok {
		kids = maps.Clone(kids)
	}
	t.mu.RUnlock()
	if ok {
		return kids, nil
	}

	_, err, _ := t.group.Do("list:"+n.Path, func() (any, error) {
		t.mu.RLock()
		_, done := t.children[n.Path]
		t.mu.RUnlock()
		if done {
			return nil, nil
		}

		list, err := t.svc.FetchChildren(ctx, n)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", n.Path, err)
		}
		t.store(n.Path, list)
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	return maps.Clone(t.children[n.Path]), nil
}

func (t *RemoteTree) store(parent string, list []*fs.Node) {
	m := make(map[string]*fs.Node, len(list))
	for _, c := range list {
		if _, dup := m[c.Name]; dup {
			slog.Warn("远端存在重名节点, 使用第一个", "path", fs.JoinPath(parent, c.Name))
			continue
		}
		c.Path = fs.JoinPath(parent, c.Name)
		m[c.Name] = c
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.children[parent] = m
	for _, c := range m {
		t.nodes[c.Path] = c
	}
}

// invalidate 丢弃 p 的子节点缓存, 下次访问重新拉取
func (t *RemoteTree) invalidate(p string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for name := range t.children[p] {
		delete(t.nodes, fs.JoinPath(p, name))
	}
	delete(t.children, p)
}

// add 记录新建节点; 新容器没有子节点, 无需再拉取
func (t *RemoteTree) add(n *fs.Node) {
	parent := path.Dir(n.Path)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.nodes[n.Path] = n
	if kids, ok := t.children[parent]; ok {
		kids[n.Name] = n
	}
	if n.Kind.IsContainer() {
		t.children[n.Path] = make(map[string]*fs.Node)
	}
}

// EnsureContainer 确保 p 处存在 kind 类型的容器.
// created 为 false 表示已存在 (包括创建时遇到 Conflict 但刷新后类型一致).
func (t *RemoteTree) EnsureContainer(ctx context.Context, p string, kind fs.Kind, privacy fs.Privacy) (node *fs.Node, created bool, err error) {
	p = fs.CleanPath(p)
	type res struct {
		node    *fs.Node
		created bool
	}

	v, err, _ := t.group.Do("create:"+p, func() (any, error) {
		existing, err := t.Find(ctx, p)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			if existing.Kind != kind {
				return nil, fmt.Errorf("%s exists as %s: %w", p, existing.Kind, fs.ErrConflict)
			}
			return res{node: existing}, nil
		}

		parent, err := t.Find(ctx, path.Dir(p))
		if err != nil {
			return nil, err
		}
		if parent == nil {
			return nil, fmt.Errorf("parent of %s does not exist", p)
		}

		n, err := t.svc.CreateContainer(ctx, parent, path.Base(p), kind, privacy)
		if err == nil {
			n.Path = p
			n.Name = path.Base(p)
			n.Kind = kind
			t.add(n)
			return res{node: n, created: true}, nil
		}
		if !fs.IsConflict(err) {
			return nil, fmt.Errorf("create %s %s: %w", kind, p, err)
		}

		// 同名节点已存在 (可能是其他客户端刚创建), 刷新父节点再判断
		t.invalidate(parent.Path)
		existing, ferr := t.Find(ctx, p)
		if ferr != nil {
			return nil, ferr
		}
		if existing != nil && existing.Kind == kind {
			return res{node: existing}, nil
		}
		return nil, fmt.Errorf("create %s %s: %w", kind, p, err)
	})
	if err != nil {
		return nil, false, err
	}
	r := v.(res)
	return r.node, r.created, nil
}

// Upload 上传本地文件到 albumPath 相册
func (t *RemoteTree) Upload(ctx context.Context, albumPath, localPath string) (*fs.Node, error) {
	album, err := t.Find(ctx, albumPath)
	if err != nil {
		return nil, err
	}
	if album == nil || album.Kind != fs.KindAlbum {
		return nil, fmt.Errorf("album %s does not exist", albumPath)
	}

	n, err := t.svc.UploadImage(ctx, album, localPath)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", localPath, err)
	}
	if n.Name == "" {
		n.Name = path.Base(strings.ReplaceAll(localPath, "\\", "/"))
	}
	n.Path = fs.JoinPath(album.Path, n.Name)
	n.Kind = fs.KindImage
	t.add(n)
	return n, nil
}

// Prefetch 并发拉取 paths 的子节点列表 (最多 limit 个并发).
// 除 ErrAuth 外的错误被忽略, 比较阶段会带重试再次拉取.
func (t *RemoteTree) Prefetch(ctx context.Context, paths []string, limit int) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(limit, 1))

	for _, p := range paths {
		g.Go(func() error {
			n, err := t.Find(gctx, p)
			if err == nil && n != nil {
				_, err = t.childrenOf(gctx, n)
			}
			if errors.Is(err, fs.ErrAuth) {
				return err
			}
			if err != nil {
				slog.Debug("预取失败", "path", p, "err", err)
			}
			return nil
		})
	}
	return g.Wait()
}

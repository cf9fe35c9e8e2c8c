// Package memory is an in-process implementation of fs.RemoteService.
// It backs the engine tests and lets failures be injected per operation.
package memory

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"smugsync/internal/fs"
)

// Op 远端操作类型, 用于故障注入和调用记录
type Op string

const (
	OpRoot   Op = "root"
	OpFetch  Op = "fetch"
	OpCreate Op = "create"
	OpUpload Op = "upload"
)

// Call 一次调用记录
type Call struct {
	Op   Op
	Path string
}

type entry struct {
	node     *fs.Node
	children []*entry
}

// Service 内存中的远端树
type Service struct {
	mu     sync.Mutex
	root   *entry
	byPath map[string]*entry
	nextID int
	calls  []Call
	fault  func(op Op, p string) error
}

// New 创建只有根节点的远端
func New() *Service {
	s := &Service{byPath: make(map[string]*entry)}
	s.root = &entry{node: &fs.Node{Kind: fs.KindFolder, Path: "/", RemoteID: s.newID()}}
	s.byPath["/"] = s.root
	return s
}

// InjectFault 设置故障函数, 返回非 nil 时对应操作失败
func (s *Service) InjectFault(f func(op Op, p string) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = f
}

// Calls returns a copy of the recorded calls.
func (s *Service) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CountCalls counts recorded calls of the given op.
func (s *Service) CountCalls(op Op) int {
	n := 0
	for _, c := range s.Calls() {
		if c.Op == op {
			n++
		}
	}
	return n
}

func (s *Service) record(op Op, p string) error {
	s.calls = append(s.calls, Call{Op: op, Path: p})
	if s.fault != nil {
		return s.fault(op, p)
	}
	return nil
}

func (s *Service) newID() string {
	s.nextID++
	return fmt.Sprintf("node-%d", s.nextID)
}

func (s *Service) Root(ctx context.Context) (*fs.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(OpRoot, "/"); err != nil {
		return nil, err
	}
	return clone(s.root.node), nil
}

func (s *Service) FetchChildren(ctx context.Context, parent *fs.Node) ([]*fs.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(OpFetch, parent.Path); err != nil {
		return nil, err
	}
	e, err := s.byHandle(parent)
	if err != nil {
		return nil, err
	}
	out := make([]*fs.Node, 0, len(e.children))
	for _, c := range e.children {
		out = append(out, clone(c.node))
	}
	return out, nil
}

func (s *Service) CreateContainer(ctx context.Context, parent *fs.Node, name string, kind fs.Kind, privacy fs.Privacy) (*fs.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := fs.JoinPath(parent.Path, name)
	if err := s.record(OpCreate, p); err != nil {
		return nil, err
	}
	e, err := s.byHandle(parent)
	if err != nil {
		return nil, err
	}
	n, err := s.add(e, name, kind)
	if err != nil {
		return nil, err
	}
	n.Privacy = privacy
	return clone(n), nil
}

func (s *Service) UploadImage(ctx context.Context, album *fs.Node, localPath string) (*fs.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := filepath.Base(localPath)
	if err := s.record(OpUpload, fs.JoinPath(album.Path, name)); err != nil {
		return nil, err
	}
	e, err := s.byHandle(album)
	if err != nil {
		return nil, err
	}
	if e.node.Kind != fs.KindAlbum {
		return nil, fmt.Errorf("%s is not an album", e.node.Path)
	}
	n, err := s.add(e, name, fs.KindImage)
	if err != nil {
		return nil, err
	}
	return clone(n), nil
}

// MustAdd 测试辅助: 创建 p (父节点必须已存在)
func (s *Service) MustAdd(p string, kind fs.Kind) *fs.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	p = fs.CleanPath(p)
	parent, ok := s.byPath[path.Dir(p)]
	if !ok {
		panic("memory: missing parent of " + p)
	}
	n, err := s.add(parent, path.Base(p), kind)
	if err != nil {
		panic(err)
	}
	return clone(n)
}

// Lookup returns a copy of the node at p, or nil.
func (s *Service) Lookup(p string) *fs.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.byPath[fs.CleanPath(p)]; ok {
		return clone(e.node)
	}
	return nil
}

// Paths lists every node path except the root, sorted.
func (s *Service) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.byPath))
	for p := range s.byPath {
		if p != "/" {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

func (s *Service) byHandle(n *fs.Node) (*entry, error) {
	e, ok := s.byPath[n.Path]
	if !ok || e.node.RemoteID != n.RemoteID {
		return nil, fmt.Errorf("unknown node %s (%s)", n.Path, n.RemoteID)
	}
	return e, nil
}

func (s *Service) add(parent *entry, name string, kind fs.Kind) (*fs.Node, error) {
	if !parent.node.Kind.IsContainer() {
		return nil, fmt.Errorf("%s is a file, it can't have child nodes", parent.node.Path)
	}
	if parent.node.Kind == fs.KindAlbum && kind != fs.KindImage {
		return nil, fmt.Errorf("album %s can only hold images", parent.node.Path)
	}
	if parent.node.Kind == fs.KindFolder && kind == fs.KindImage {
		return nil, fmt.Errorf("folder %s can't hold images", parent.node.Path)
	}
	if strings.Contains(name, "/") || name == "" {
		return nil, fmt.Errorf("invalid name %q", name)
	}
	p := fs.JoinPath(parent.node.Path, name)
	if _, exists := s.byPath[p]; exists {
		return nil, fmt.Errorf("%s: %w", p, fs.ErrConflict)
	}
	e := &entry{node: &fs.Node{Name: name, Kind: kind, Path: p, RemoteID: s.newID()}}
	parent.children = append(parent.children, e)
	s.byPath[p] = e
	return e.node, nil
}

func clone(n *fs.Node) *fs.Node {
	c := *n
	c.Children = nil
	return &c
}

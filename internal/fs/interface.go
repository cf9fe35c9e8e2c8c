package fs

import (
	"context"
	"fmt"
	"path"
	"strings"
)

// Kind 节点类型
type Kind int

const (
	KindFolder Kind = iota // 可包含 Folder / Album
	KindAlbum              // 只包含 Image
	KindImage              // 叶子节点
)

func (k Kind) String() string {
	switch k {
	case KindFolder:
		return "folder"
	case KindAlbum:
		return "album"
	case KindImage:
		return "image"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// IsContainer reports whether nodes of this kind may have children.
func (k Kind) IsContainer() bool {
	return k == KindFolder || k == KindAlbum
}

// Privacy is the access setting of a folder or album.
type Privacy int

const (
	PrivacyPublic Privacy = iota
	PrivacyUnlisted
	PrivacyPrivate
)

func (p Privacy) String() string {
	switch p {
	case PrivacyUnlisted:
		return "Unlisted"
	case PrivacyPrivate:
		return "Private"
	}
	return "Public"
}

// ParsePrivacy accepts public, unlisted or private in any case.
func ParsePrivacy(s string) (Privacy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "public":
		return PrivacyPublic, nil
	case "unlisted":
		return PrivacyUnlisted, nil
	case "private":
		return PrivacyPrivate, nil
	}
	return PrivacyPublic, fmt.Errorf("unknown privacy %q (want public, unlisted or private)", s)
}

// Node 本地或远端树中的一个节点
//
// 远端节点: Path 为以 "/" 开头的绝对路径, RemoteID 为服务端句柄.
// 本地节点: Path 为相对同步根的路径, LocalPath 为磁盘路径.
type Node struct {
	Name      string
	Kind      Kind
	Path      string
	LocalPath string
	RemoteID  string
	Privacy   Privacy
	Size      int64

	// Children 按名字排序, 只有 Folder / Album 才有
	Children []*Node

	// Rejected 非空时表示本地条目不参与同步 (原因)
	Rejected string
	// Err 读取本地子树失败
	Err error
}

// Child returns the direct child called name, or nil.
func (n *Node) Child(name string) *Node {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Syncable reports whether the node takes part in planning as a regular entry.
func (n *Node) Syncable() bool {
	return n.Rejected == "" && n.Err == nil
}

// RemoteService 远端相册服务 (由传输层实现, 引擎本身不做网络 I/O)
//
// 错误需可被 Classify 归类: ErrNetwork 可重试, ErrAuth 致命, ErrConflict 同名已存在.
type RemoteService interface {
	// Root 返回根节点 (Path 由调用方设置为 "/")
	Root(ctx context.Context) (*Node, error)

	// FetchChildren 列出容器的直接子节点
	FetchChildren(ctx context.Context, parent *Node) ([]*Node, error)

	// CreateContainer 在 parent 下创建 Folder 或 Album
	CreateContainer(ctx context.Context, parent *Node, name string, kind Kind, privacy Privacy) (*Node, error)

	// UploadImage 将本地文件上传到 album
	UploadImage(ctx context.Context, album *Node, localPath string) (*Node, error)
}

// CleanPath normalizes a remote path to "/a/b" form.
func CleanPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	return path.Clean("/" + p)
}

// JoinPath appends a child name to a remote path.
func JoinPath(parent, name string) string {
	if parent == "" || parent == "/" {
		return "/" + name
	}
	return parent + "/" + name
}

// Depth counts path segments: "/" is 0, "/a/b" is 2.
func Depth(p string) int {
	p = strings.Trim(p, "/")
	if p == "" {
		return 0
	}
	return strings.Count(p, "/") + 1
}

// IsAncestor reports whether a is a strict ancestor of b.
func IsAncestor(a, b string) bool {
	if a == b {
		return false
	}
	if a == "/" {
		return strings.HasPrefix(b, "/")
	}
	return strings.HasPrefix(b, a+"/")
}

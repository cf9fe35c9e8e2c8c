package local

import (
	"fmt"
	"iter"
	"log/slog"
	"path"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
	"golang.org/x/text/unicode/norm"

	"smugsync/internal/fs"
	"smugsync/internal/ignore"
)

// LooseImagesAlbum 同时含子目录和图片的目录, 图片放入该名字的相册
func LooseImagesAlbum(dirName string) string {
	return "Images from folder " + dirName
}

// Scanner 将若干本地源构建为一棵本地树
type Scanner struct {
	fs      afero.Fs
	walker  *Walker
	matcher *ignore.Matcher
	privacy fs.Privacy
}

// NewScanner privacy 为新建容器使用的访问设置
func NewScanner(afs afero.Fs, matcher *ignore.Matcher, privacy fs.Privacy) *Scanner {
	return &Scanner{
		fs:      afs,
		walker:  NewWalker(afs, matcher),
		matcher: matcher,
		privacy: privacy,
	}
}

// Scan 返回一个无名根节点, 其子节点为各个源 (目录以目录名, 文件以文件名).
// 根节点类型: 含文件源时为 Album, 否则为 Folder.
func (s *Scanner) Scan(sources []string) (*fs.Node, error) {
	root := &fs.Node{Kind: fs.KindFolder, Privacy: s.privacy}
	seen := make(map[string]string)

	for _, src := range sources {
		abs, err := filepath.Abs(src)
		if err != nil {
			return nil, fmt.Errorf("resolve source %q: %w", src, err)
		}
		info, err := s.fs.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("invalid source %q: %w", src, err)
		}

		name := norm.NFC.String(filepath.Base(abs))
		if prev, dup := seen[name]; dup {
			return nil, fmt.Errorf("sources %q and %q have the same name %q", prev, src, name)
		}
		seen[name] = src

		var child *fs.Node
		if info.IsDir() {
			child = s.BuildTree(s.walker.Walk(abs, name))
		} else {
			child = s.fileSource(abs, name, info.Size())
		}
		if child == nil {
			slog.Info("源不包含可同步内容", "source", src)
			continue
		}
		root.Children = append(root.Children, child)
		if child.Kind == fs.KindImage {
			root.Kind = fs.KindAlbum
		}
	}
	sortNodes(root.Children)
	return root, nil
}

func (s *Scanner) fileSource(abs, name string, size int64) *fs.Node {
	if !s.matcher.Included(name) {
		return nil
	}
	e := s.walker.classify(abs, name, size)
	return entryNode(e, path.Base(e.Path))
}

type dirState struct {
	node     *fs.Node
	dirs     []*dirState
	images   []*fs.Node
	rejected []*fs.Node
}

// BuildTree 将先序遍历序列组装为树并确定容器类型:
// 只有图片 -> Album; 只有子目录 -> Folder; 两者都有 -> Folder + "Images from folder X" 相册.
// 没有任何条目的目录返回 nil.
func (s *Scanner) BuildTree(entries iter.Seq[Entry]) *fs.Node {
	var root *dirState
	dirs := make(map[string]*dirState)

	for e := range entries {
		name := path.Base(e.Path)
		parent := dirs[path.Dir(e.Path)]

		if e.IsDir {
			d := &dirState{node: &fs.Node{
				Name:      name,
				Kind:      fs.KindFolder,
				Path:      e.Path,
				LocalPath: e.LocalPath,
				Privacy:   s.privacy,
				Err:       e.Err,
			}}
			dirs[e.Path] = d
			if parent == nil {
				root = d
			} else {
				parent.dirs = append(parent.dirs, d)
			}
			continue
		}

		if parent == nil {
			continue
		}
		n := entryNode(e, name)
		if n.Syncable() {
			parent.images = append(parent.images, n)
		} else {
			parent.rejected = append(parent.rejected, n)
		}
	}

	if root == nil {
		return nil
	}
	return s.finish(root)
}

func (s *Scanner) finish(d *dirState) *fs.Node {
	n := d.node
	if n.Err != nil {
		return n
	}

	var subdirs []*fs.Node
	for _, c := range d.dirs {
		if cn := s.finish(c); cn != nil {
			subdirs = append(subdirs, cn)
		}
	}

	switch {
	case len(subdirs) == 0 && len(d.images) == 0:
		if len(d.rejected) == 0 {
			return nil
		}
		n.Rejected = fs.ReasonNoMedia
		return n
	case len(subdirs) == 0:
		n.Kind = fs.KindAlbum
		n.Children = append(d.images, d.rejected...)
	case len(d.images) == 0:
		n.Kind = fs.KindFolder
		n.Children = append(subdirs, d.rejected...)
	default:
		kids := s.looseImages(n, subdirs, d)
		n.Kind = fs.KindFolder
		n.Children = append(kids, d.rejected...)
	}
	sortNodes(n.Children)
	return n
}

// looseImages 将散落图片放入 "Images from folder X" 相册.
// 已有同名子目录时: 是相册则合并, 否则图片以 name conflict 拒绝; 与相册内同名的图片同样拒绝.
func (s *Scanner) looseImages(n *fs.Node, subdirs []*fs.Node, d *dirState) []*fs.Node {
	albumName := LooseImagesAlbum(n.Name)

	var album *fs.Node
	for _, c := range subdirs {
		if c.Name == albumName {
			album = c
			break
		}
	}
	if album == nil {
		album = &fs.Node{
			Name:      albumName,
			Kind:      fs.KindAlbum,
			Path:      n.Path + "/" + albumName,
			LocalPath: n.LocalPath,
			Privacy:   s.privacy,
		}
		subdirs = append(subdirs, album)
	}

	for _, img := range d.images {
		if album.Kind != fs.KindAlbum || !album.Syncable() || album.Child(img.Name) != nil {
			slog.Warn("散落图片与已有条目同名", "path", img.Path, "album", album.Path)
			img.Rejected = fs.ReasonNameConflict
			d.rejected = append(d.rejected, img)
			continue
		}
		img.Path = album.Path + "/" + img.Name
		album.Children = append(album.Children, img)
	}
	sortNodes(album.Children)
	return subdirs
}

func entryNode(e Entry, name string) *fs.Node {
	return &fs.Node{
		Name:      name,
		Kind:      fs.KindImage,
		Path:      e.Path,
		LocalPath: e.LocalPath,
		Size:      e.Size,
		Rejected:  e.Rejected,
		Err:       e.Err,
	}
}

func sortNodes(nodes []*fs.Node) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
}

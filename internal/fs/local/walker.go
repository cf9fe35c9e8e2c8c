package local

import (
	"io"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"
	"golang.org/x/text/unicode/norm"

	"smugsync/internal/fs"
	"smugsync/internal/ignore"
)

// mediaExtensions 服务端接受的图片/视频扩展名 (小写)
var mediaExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".heic": true, ".heif": true, ".tif": true, ".tiff": true,
	".mp4": true, ".mov": true, ".avi": true, ".m4v": true,
	".mts": true, ".3gp": true,
}

// Entry 深度优先遍历产生的一个本地条目
type Entry struct {
	Path      string // 相对同步根, "/" 分隔, 以源目录名开头
	LocalPath string // 磁盘路径
	IsDir     bool
	Size      int64
	Rejected  string // 不参与同步的原因
	Err       error  // *fs.LocalIOError
}

// Walker 本地目录遍历器, 无共享遍历状态, 每次 Walk 都可重新开始
type Walker struct {
	fs      afero.Fs
	matcher *ignore.Matcher
}

// NewWalker 创建遍历器; matcher 为 nil 时包含所有路径
func NewWalker(afs afero.Fs, matcher *ignore.Matcher) *Walker {
	return &Walker{fs: afs, matcher: matcher}
}

// Walk 以先序 (目录先于其内容) 惰性遍历 root; name 为 root 在同步树中的名字.
// 被忽略的目录整体剪枝, 其内容不会被访问.
func (w *Walker) Walk(root, name string) iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		rel := norm.NFC.String(name)
		if !w.matcher.Included(rel) {
			slog.Debug("忽略源目录", "path", rel)
			return
		}
		w.walkDir(root, rel, yield)
	}
}

func (w *Walker) walkDir(dir, rel string, yield func(Entry) bool) bool {
	infos, err := afero.ReadDir(w.fs, dir)
	if err != nil {
		slog.Warn("读取目录失败", "path", dir, "err", err)
		return yield(Entry{
			Path:      rel,
			LocalPath: dir,
			IsDir:     true,
			Err:       &fs.LocalIOError{Path: dir, Err: err},
		})
	}
	if !yield(Entry{Path: rel, LocalPath: dir, IsDir: true}) {
		return false
	}

	for _, info := range infos {
		childRel := rel + "/" + norm.NFC.String(info.Name())
		childPath := filepath.Join(dir, info.Name())

		// 先判断忽略规则, 再决定是否深入
		if !w.matcher.Included(childRel) {
			slog.Debug("忽略", "path", childRel)
			continue
		}

		mode := info.Mode()
		switch {
		case mode&os.ModeSymlink != 0:
			if !yield(Entry{Path: childRel, LocalPath: childPath, Rejected: fs.ReasonUnsupportedEntry}) {
				return false
			}
		case info.IsDir():
			if !w.walkDir(childPath, childRel, yield) {
				return false
			}
		case !mode.IsRegular():
			if !yield(Entry{Path: childRel, LocalPath: childPath, Rejected: fs.ReasonUnsupportedEntry}) {
				return false
			}
		default:
			if !yield(w.classify(childPath, childRel, info.Size())) {
				return false
			}
		}
	}
	return true
}

// classify 按扩展名判断, 未知扩展名再嗅探文件内容
func (w *Walker) classify(localPath, rel string, size int64) Entry {
	e := Entry{Path: rel, LocalPath: localPath, Size: size}
	if IsMediaName(localPath) {
		return e
	}

	f, err := w.fs.Open(localPath)
	if err != nil {
		e.Err = &fs.LocalIOError{Path: localPath, Err: err}
		return e
	}
	defer f.Close()

	mt, err := mimetype.DetectReader(io.LimitReader(f, 3072))
	if err != nil {
		e.Err = &fs.LocalIOError{Path: localPath, Err: err}
		return e
	}
	if !isMediaMIME(mt.String()) {
		e.Rejected = fs.ReasonUnsupportedType
	}
	return e
}

// IsMediaName reports whether the file extension is a known image or video type.
func IsMediaName(name string) bool {
	return mediaExtensions[strings.ToLower(filepath.Ext(name))]
}

func isMediaMIME(m string) bool {
	return strings.HasPrefix(m, "image/") || strings.HasPrefix(m, "video/")
}

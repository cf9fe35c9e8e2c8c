package smugmug

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"golang.org/x/text/unicode/norm"

	"smugsync/internal/fs"
)

// Service 适配器: 将 SmugMug API 包装为 fs.RemoteService
//
// 节点的 RemoteID 为 node URI (/api/v2/node/xxx), 图片为 image URI.
// 相册的上传和列表需要 album URI, 在拉取或创建时记录.
type Service struct {
	client *Client
	fs     afero.Fs

	mu     sync.Mutex
	albums map[string]string // node URI -> album URI
}

var _ fs.RemoteService = (*Service)(nil)

// NewService afs 用于读取待上传文件, 为 nil 时使用操作系统文件系统
func NewService(client *Client, afs afero.Fs) *Service {
	if afs == nil {
		afs = afero.NewOsFs()
	}
	return &Service{
		client: client,
		fs:     afs,
		albums: make(map[string]string),
	}
}

func (s *Service) Root(ctx context.Context) (*fs.Node, error) {
	var (
		user *User
		err  error
	)
	if nick := s.client.opts.User; nick != "" {
		user, err = s.client.GetUser(ctx, nick)
	} else {
		user, err = s.client.AuthUser(ctx)
	}
	if err != nil {
		return nil, err
	}
	if user.Uris.Node.Uri == "" {
		return nil, fmt.Errorf("user %q has no root node", user.NickName)
	}
	slog.Debug("远端根节点", "user", user.NickName, "node", user.Uris.Node.Uri)
	return &fs.Node{Kind: fs.KindFolder, RemoteID: user.Uris.Node.Uri}, nil
}

func (s *Service) FetchChildren(ctx context.Context, parent *fs.Node) ([]*fs.Node, error) {
	switch parent.Kind {
	case fs.KindFolder:
		return s.folderChildren(ctx, parent)
	case fs.KindAlbum:
		return s.albumImages(ctx, parent)
	}
	return nil, nil
}

func (s *Service) folderChildren(ctx context.Context, parent *fs.Node) ([]*fs.Node, error) {
	infos, err := s.client.ListChildren(ctx, parent.RemoteID)
	if err != nil {
		return nil, err
	}

	out := make([]*fs.Node, 0, len(infos))
	for _, info := range infos {
		n, ok := s.containerNode(info)
		if !ok {
			slog.Debug("忽略不支持的节点类型", "parent", parent.Path, "name", info.Name, "type", info.Type)
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (s *Service) albumImages(ctx context.Context, album *fs.Node) ([]*fs.Node, error) {
	albumURI, err := s.albumURI(ctx, album)
	if err != nil {
		return nil, err
	}
	images, err := s.client.ListImages(ctx, albumURI)
	if err != nil {
		return nil, err
	}

	out := make([]*fs.Node, 0, len(images))
	for _, img := range images {
		out = append(out, &fs.Node{
			Name:     norm.NFC.String(img.FileName),
			Kind:     fs.KindImage,
			RemoteID: img.Uri,
			Size:     img.ArchivedSize,
		})
	}
	return out, nil
}

func (s *Service) CreateContainer(ctx context.Context, parent *fs.Node, name string, kind fs.Kind, privacy fs.Privacy) (*fs.Node, error) {
	if parent.Kind != fs.KindFolder {
		return nil, fmt.Errorf("cannot create %s under %s %s", kind, parent.Kind, parent.Path)
	}

	typ := "Folder"
	if kind == fs.KindAlbum {
		typ = "Album"
	}
	info, err := s.client.CreateNode(ctx, parent.RemoteID, createNodeRequest{
		Type:    typ,
		Name:    name,
		UrlName: urlName(name),
		Privacy: privacy.String(),
	})
	if err != nil {
		return nil, err
	}

	n, ok := s.containerNode(*info)
	if !ok {
		return nil, fmt.Errorf("create %s %q: unexpected node type %q", kind, name, info.Type)
	}
	return n, nil
}

func (s *Service) UploadImage(ctx context.Context, album *fs.Node, localPath string) (*fs.Node, error) {
	data, err := afero.ReadFile(s.fs, localPath)
	if err != nil {
		return nil, &fs.LocalIOError{Path: localPath, Err: err}
	}
	albumURI, err := s.albumURI(ctx, album)
	if err != nil {
		return nil, err
	}

	name := norm.NFC.String(filepath.Base(localPath))
	uri, err := s.client.Upload(ctx, albumURI, name, data)
	if err != nil {
		return nil, err
	}
	return &fs.Node{
		Name:     name,
		Kind:     fs.KindImage,
		RemoteID: uri,
		Size:     int64(len(data)),
	}, nil
}

// containerNode 只接受 Folder 和 Album, 其他类型 (Page 等) 返回 false
func (s *Service) containerNode(info NodeInfo) (*fs.Node, bool) {
	var kind fs.Kind
	switch info.Type {
	case "Folder":
		kind = fs.KindFolder
	case "Album":
		kind = fs.KindAlbum
		if info.Uris.Album.Uri != "" {
			s.mu.Lock()
			s.albums[info.Uri] = info.Uris.Album.Uri
			s.mu.Unlock()
		}
	default:
		return nil, false
	}

	privacy, err := fs.ParsePrivacy(info.Privacy)
	if err != nil {
		slog.Debug("未知的访问设置", "name", info.Name, "privacy", info.Privacy)
	}
	return &fs.Node{
		Name:     norm.NFC.String(info.Name),
		Kind:     kind,
		RemoteID: info.Uri,
		Privacy:  privacy,
	}, true
}

// albumURI 相册节点对应的 album URI, 未记录时查询节点详情
func (s *Service) albumURI(ctx context.Context, album *fs.Node) (string, error) {
	s.mu.Lock()
	uri, ok := s.albums[album.RemoteID]
	s.mu.Unlock()
	if ok {
		return uri, nil
	}

	info, err := s.client.GetNode(ctx, album.RemoteID)
	if err != nil {
		return "", err
	}
	if info.Type != "Album" || info.Uris.Album.Uri == "" {
		return "", fmt.Errorf("%s is not an album", album.Path)
	}

	s.mu.Lock()
	s.albums[album.RemoteID] = info.Uris.Album.Uri
	s.mu.Unlock()
	return info.Uris.Album.Uri, nil
}

// urlName 生成 URL 名: 字母数字, 以 "-" 连接, 首字母大写.
// 无可用字符时根据名字的哈希生成.
func urlName(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}

	u := strings.TrimRight(b.String(), "-")
	if u == "" {
		sum := md5.Sum([]byte(name))
		return "Node-" + hex.EncodeToString(sum[:4])
	}
	return strings.ToUpper(u[:1]) + u[1:]
}

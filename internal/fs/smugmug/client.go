package smugmug

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/imroc/req/v3"

	"smugsync/internal/fs"
)

const (
	// APIBaseURL API v2 地址
	APIBaseURL = "https://api.smugmug.com"
	// UploadURL 上传专用地址
	UploadURL = "https://upload.smugmug.com/"
	// PageSize 列表分页大小
	PageSize = 100
)

// Options 初始化参数
type Options struct {
	APIKey            string
	APISecret         string
	AccessToken       string
	AccessTokenSecret string

	// User 同步到其他用户的树 (-u), 为空表示当前认证用户
	User string

	BaseURL   string
	UploadURL string
	UserAgent string
	Timeout   time.Duration
}

// Client SmugMug API v2 HTTP 客户端
type Client struct {
	opts   *Options
	http   *req.Client
	signer *signer
}

// NewClient 创建客户端
func NewClient(opts *Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = APIBaseURL
	}
	if opts.UploadURL == "" {
		opts.UploadURL = UploadURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "smugsync"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Minute // 上传大视频时由 ctx 控制
	}
	return &Client{
		opts: opts,
		http: req.C().
			SetTimeout(opts.Timeout).
			SetUserAgent(opts.UserAgent).
			SetCommonHeader("Accept", "application/json").
			SetJsonMarshal(json.Marshal).
			SetJsonUnmarshal(json.Unmarshal),
		signer: newSigner(opts),
	}
}

// AuthUser 返回当前认证用户
func (c *Client) AuthUser(ctx context.Context) (*User, error) {
	var out envelope[userResponse]
	if err := c.get(ctx, "/api/v2!authuser", &out); err != nil {
		return nil, err
	}
	return &out.Response.User, nil
}

// GetUser 按昵称查找用户
func (c *Client) GetUser(ctx context.Context, nick string) (*User, error) {
	var out envelope[userResponse]
	if err := c.get(ctx, "/api/v2/user/"+url.PathEscape(nick), &out); err != nil {
		return nil, err
	}
	return &out.Response.User, nil
}

// GetNode 获取单个节点
func (c *Client) GetNode(ctx context.Context, nodeURI string) (*NodeInfo, error) {
	var out envelope[nodeResponse]
	if err := c.get(ctx, nodeURI, &out); err != nil {
		return nil, err
	}
	return &out.Response.Node, nil
}

// ListChildren 列出文件夹的子节点 (自动翻页)
func (c *Client) ListChildren(ctx context.Context, nodeURI string) ([]NodeInfo, error) {
	var all []NodeInfo
	next := nodeURI + "!children?" + pageQuery(1)
	for next != "" {
		var out envelope[nodeListResponse]
		if err := c.get(ctx, next, &out); err != nil {
			return nil, err
		}
		all = append(all, out.Response.Node...)
		next = out.Response.Pages.NextPage
	}
	return all, nil
}

// ListImages 列出相册中的图片 (自动翻页)
func (c *Client) ListImages(ctx context.Context, albumURI string) ([]AlbumImage, error) {
	var all []AlbumImage
	next := albumURI + "!images?" + pageQuery(1)
	for next != "" {
		var out envelope[albumImagesResponse]
		if err := c.get(ctx, next, &out); err != nil {
			return nil, err
		}
		all = append(all, out.Response.AlbumImage...)
		next = out.Response.Pages.NextPage
	}
	return all, nil
}

// CreateNode 在 parentURI 下创建 Folder 或 Album
func (c *Client) CreateNode(ctx context.Context, parentURI string, body createNodeRequest) (*NodeInfo, error) {
	target := c.opts.BaseURL + parentURI + "!children"
	auth, err := c.signer.authorize(http.MethodPost, target)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", auth).
		SetBodyJsonMarshal(body).
		Post(target)
	if err := check(resp, err, "create "+body.Name); err != nil {
		return nil, err
	}

	var out envelope[nodeResponse]
	if err := json.Unmarshal(resp.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("decode create response: %w", err)
	}
	return &out.Response.Node, nil
}

// Upload 上传单个文件到相册, 返回图片 URI
func (c *Client) Upload(ctx context.Context, albumURI, fileName string, data []byte) (string, error) {
	auth, err := c.signer.authorize(http.MethodPost, c.opts.UploadURL)
	if err != nil {
		return "", err
	}

	sum := md5.Sum(data)
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(map[string]string{
			"Authorization":       auth,
			"Content-MD5":         hex.EncodeToString(sum[:]),
			"Content-Type":        "application/octet-stream",
			"X-Smug-AlbumUri":     albumURI,
			"X-Smug-FileName":     fileName,
			"X-Smug-ResponseType": "JSON",
			"X-Smug-Version":      "v2",
		}).
		SetBodyBytes(data).
		Post(c.opts.UploadURL)
	if err := check(resp, err, "upload "+fileName); err != nil {
		return "", err
	}

	var out uploadResponse
	if err := json.Unmarshal(resp.Bytes(), &out); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if out.Stat != "ok" {
		return "", fmt.Errorf("upload %s failed: %d %s", fileName, out.Code, out.Message)
	}
	return out.Image.ImageUri, nil
}

// get 发送签名的 GET 请求并解码 JSON; uri 为 /api/v2/... (可带查询参数)
func (c *Client) get(ctx context.Context, uri string, out any) error {
	target := c.opts.BaseURL + uri
	auth, err := c.signer.authorize(http.MethodGet, target)
	if err != nil {
		return err
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", auth).
		Get(target)
	if err := check(resp, err, "GET "+uri); err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Bytes(), out); err != nil {
		return fmt.Errorf("decode %s: %w", uri, err)
	}
	return nil
}

// check 将传输错误和 HTTP 状态码映射到 fs 的错误分类
func check(resp *req.Response, err error, op string) error {
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fs.NetworkError(fmt.Errorf("%s: %w", op, err))
	}
	if !resp.IsErrorState() {
		return nil
	}

	status := fmt.Errorf("%s: http %d %s", op, resp.StatusCode, apiMessage(resp))
	switch code := resp.StatusCode; {
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return fmt.Errorf("%w: %w", fs.ErrAuth, status)
	case code == http.StatusConflict:
		return fmt.Errorf("%w: %w", fs.ErrConflict, status)
	case code == http.StatusTooManyRequests, code >= 500:
		return fs.NetworkError(status)
	}
	return status
}

func apiMessage(resp *req.Response) string {
	var e envelope[json.RawMessage]
	if json.Unmarshal(resp.Bytes(), &e) == nil && e.Message != "" {
		return e.Message
	}
	return strings.TrimSpace(http.StatusText(resp.StatusCode))
}

func pageQuery(start int) string {
	q := url.Values{}
	q.Set("start", strconv.Itoa(start))
	q.Set("count", strconv.Itoa(PageSize))
	return q.Encode()
}

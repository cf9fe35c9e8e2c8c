package smugmug

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// signer 用 HMAC-SHA1 为请求生成 OAuth 1.0a Authorization 头
type signer struct {
	consumerKey    string
	consumerSecret string
	token          string
	tokenSecret    string

	now   func() time.Time
	nonce func() string
}

func newSigner(opts *Options) *signer {
	return &signer{
		consumerKey:    opts.APIKey,
		consumerSecret: opts.APISecret,
		token:          opts.AccessToken,
		tokenSecret:    opts.AccessTokenSecret,
		now:            time.Now,
		nonce:          func() string { return strings.ReplaceAll(uuid.NewString(), "-", "") },
	}
}

// authorize 返回 method + rawURL (可带查询参数) 的 Authorization 头.
// 非表单请求体不参与签名.
func (s *signer) authorize(method, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	oauth := map[string]string{
		"oauth_consumer_key":     s.consumerKey,
		"oauth_nonce":            s.nonce(),
		"oauth_signature_method": "HMAC-SHA1",
		"oauth_timestamp":        strconv.FormatInt(s.now().Unix(), 10),
		"oauth_version":          "1.0",
	}
	if s.token != "" {
		oauth["oauth_token"] = s.token
	}

	params := u.Query()
	for k, v := range oauth {
		params.Set(k, v)
	}
	oauth["oauth_signature"] = s.sign(baseString(method, u, params))

	keys := make([]string, 0, len(oauth))
	for k := range oauth {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf(`%s="%s"`, k, encode(oauth[k]))
	}
	return "OAuth " + strings.Join(parts, ", "), nil
}

func (s *signer) sign(base string) string {
	key := encode(s.consumerSecret) + "&" + encode(s.tokenSecret)
	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// baseString METHOD&encode(scheme://host/path)&encode(sorted params)
func baseString(method string, u *url.URL, params url.Values) string {
	type pair struct{ k, v string }
	var pairs []pair
	for k, vs := range params {
		for _, v := range vs {
			pairs = append(pairs, pair{encode(k), encode(v)})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].k != pairs[j].k {
			return pairs[i].k < pairs[j].k
		}
		return pairs[i].v < pairs[j].v
	})

	kv := make([]string, len(pairs))
	for i, p := range pairs {
		kv[i] = p.k + "=" + p.v
	}

	base := strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host) + u.EscapedPath()
	return strings.ToUpper(method) + "&" + encode(base) + "&" + encode(strings.Join(kv, "&"))
}

// encode RFC 3986 百分号编码 (空格为 %20)
func encode(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

package ignore

import (
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Rule 一条忽略/包含规则, 按注册顺序生效, 后面的覆盖前面的
type Rule struct {
	Pattern string
	Include bool
}

// Matcher 判断相对同步根的路径是否参与同步 (规则不可变)
type Matcher struct {
	rules []Rule
}

// New copies rules so later appends to the caller's slice do not leak in.
func New(rules []Rule) *Matcher {
	m := &Matcher{rules: make([]Rule, 0, len(rules))}
	for _, r := range rules {
		r.Pattern = Normalize(r.Pattern)
		if r.Pattern == "" {
			continue
		}
		m.rules = append(m.rules, r)
	}
	return m
}

// Len returns the number of active rules.
func (m *Matcher) Len() int {
	if m == nil {
		return 0
	}
	return len(m.rules)
}

// Included 最后一个匹配 p (或 p 的任一祖先目录) 的规则决定结果; 无匹配时包含
func (m *Matcher) Included(p string) bool {
	if m == nil || len(m.rules) == 0 {
		return true
	}
	p = Normalize(p)
	if p == "" {
		return true
	}
	candidates := withAncestors(p)

	included := true
	for _, r := range m.rules {
		for _, c := range candidates {
			// 模式已在 New 中校验过; 非法模式视为不匹配
			if ok, _ := doublestar.Match(r.Pattern, c); ok {
				included = r.Include
				break
			}
		}
	}
	return included
}

// Normalize converts a path or pattern to the slash-separated, root-relative
// form rules are matched against.
func Normalize(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean("/" + p)
	return strings.TrimPrefix(p, "/")
}

// Valid reports whether pattern is a well-formed glob.
func Valid(pattern string) bool {
	return Normalize(pattern) != "" && doublestar.ValidatePattern(Normalize(pattern))
}

// "a/b/c" -> ["a/b/c", "a/b", "a"]
func withAncestors(p string) []string {
	out := []string{p}
	for {
		i := strings.LastIndexByte(p, '/')
		if i < 0 {
			return out
		}
		p = p[:i]
		out = append(out, p)
	}
}

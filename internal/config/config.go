package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"

	"smugsync/internal/fs"
	"smugsync/internal/ignore"
)

// CurrentVersion 当前配置格式版本
const CurrentVersion = 2

const (
	DefaultPath        = "~/.smugsync.yaml"
	DefaultJournalPath = "~/.smugsync.db"
)

// Config 对应 ~/.smugsync.yaml 的根结构
type Config struct {
	Version int          `yaml:"version"`
	Auth    AuthConfig   `yaml:"auth"`
	Sync    SyncConfig   `yaml:"sync"`
	Ignore  []IgnoreRule `yaml:"ignore"`
	System  SystemConfig `yaml:"system"`
}

// AuthConfig OAuth 凭证
type AuthConfig struct {
	APIKey            string `yaml:"api_key"`
	APISecret         string `yaml:"api_secret"`
	AccessToken       string `yaml:"access_token"`
	AccessTokenSecret string `yaml:"access_token_secret"`
}

// LoggedIn reports whether all four credentials are present.
func (a AuthConfig) LoggedIn() bool {
	return a.APIKey != "" && a.APISecret != "" && a.AccessToken != "" && a.AccessTokenSecret != ""
}

// SyncConfig 同步相关配置
type SyncConfig struct {
	Concurrency    int    `yaml:"concurrency"`
	Privacy        string `yaml:"privacy"`
	MaxAttempts    int    `yaml:"max_attempts"`
	RetryDelay     string `yaml:"retry_delay"`
	MaxFolderDepth int    `yaml:"max_folder_depth"`

	// 解析后的值, 不导出到 yaml
	RetryDelayDuration time.Duration `yaml:"-"`
	PrivacyValue       fs.Privacy    `yaml:"-"`
}

// IgnoreRule 忽略列表中的一条, 按顺序匹配, 后者优先
type IgnoreRule struct {
	Pattern string `yaml:"pattern"`
	Include bool   `yaml:"include,omitempty"`
}

// SystemConfig 系统配置
type SystemConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFile     string `yaml:"log_file"`
	JournalPath string `yaml:"journal_path"`
}

// legacyConfig 版本 1 (无 version 字段): 扁平的凭证和两个路径列表
type legacyConfig struct {
	APIKey            string   `yaml:"api_key"`
	APISecret         string   `yaml:"api_secret"`
	AccessToken       string   `yaml:"access_token"`
	AccessTokenSecret string   `yaml:"access_token_secret"`
	Ignore            []string `yaml:"ignore"`
	Include           []string `yaml:"include"`
}

// CorruptError 配置文件无法解析或内容非法, 运行前即终止
type CorruptError struct {
	Path string
	Err  error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("config file %s is corrupt: %v", e.Path, e.Err)
}

func (e *CorruptError) Unwrap() error { return e.Err }

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		Sync: SyncConfig{
			Concurrency:        4,
			Privacy:            "public",
			MaxAttempts:        5,
			RetryDelay:         "1s",
			MaxFolderDepth:     5,
			RetryDelayDuration: time.Second,
			PrivacyValue:       fs.PrivacyPublic,
		},
		System: SystemConfig{
			LogLevel:    "info",
			JournalPath: DefaultJournalPath,
		},
	}
}

// ResolvePath 展开 ~, 为空时使用默认路径
func ResolvePath(p string) (string, error) {
	if p == "" {
		p = DefaultPath
	}
	return homedir.Expand(p)
}

// Load 读取并校验配置文件; 文件不存在时返回默认配置
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, &CorruptError{Path: path, Err: err}
	}
	return cfg, nil
}

// Parse 解析 YAML, 版本 1 在内存中迁移为当前版本
func Parse(data []byte) (*Config, error) {
	var head struct {
		Version *int `yaml:"version"`
	}
	if err := yaml.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("invalid yaml: %w", err)
	}

	var cfg *Config
	switch {
	case head.Version == nil || *head.Version == 1:
		var legacy legacyConfig
		if err := yaml.Unmarshal(data, &legacy); err != nil {
			return nil, fmt.Errorf("invalid version 1 config: %w", err)
		}
		cfg = migrate(&legacy)
	case *head.Version == CurrentVersion:
		cfg = Default()
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("invalid yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown config version %d", *head.Version)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// migrate 版本 1 -> 2: 先 ignore 条目再 include 条目, 保持各自顺序
func migrate(l *legacyConfig) *Config {
	cfg := Default()
	cfg.Auth = AuthConfig{
		APIKey:            l.APIKey,
		APISecret:         l.APISecret,
		AccessToken:       l.AccessToken,
		AccessTokenSecret: l.AccessTokenSecret,
	}
	for _, p := range l.Ignore {
		cfg.Ignore = append(cfg.Ignore, IgnoreRule{Pattern: p})
	}
	for _, p := range l.Include {
		cfg.Ignore = append(cfg.Ignore, IgnoreRule{Pattern: p, Include: true})
	}
	return cfg
}

func (c *Config) validate() error {
	c.Version = CurrentVersion

	if c.Sync.Concurrency <= 0 {
		return fmt.Errorf("sync.concurrency must be positive, got %d", c.Sync.Concurrency)
	}
	if c.Sync.MaxAttempts <= 0 {
		return fmt.Errorf("sync.max_attempts must be positive, got %d", c.Sync.MaxAttempts)
	}
	if c.Sync.MaxFolderDepth <= 0 {
		return fmt.Errorf("sync.max_folder_depth must be positive, got %d", c.Sync.MaxFolderDepth)
	}

	privacy, err := fs.ParsePrivacy(c.Sync.Privacy)
	if err != nil {
		return fmt.Errorf("sync.privacy: %w", err)
	}
	c.Sync.PrivacyValue = privacy

	d, err := time.ParseDuration(c.Sync.RetryDelay)
	if err != nil {
		return fmt.Errorf("sync.retry_delay: %w", err)
	}
	c.Sync.RetryDelayDuration = d

	for i, r := range c.Ignore {
		if ignore.Normalize(r.Pattern) == "" {
			return fmt.Errorf("ignore[%d]: empty pattern", i)
		}
		if !ignore.Valid(r.Pattern) {
			return fmt.Errorf("ignore[%d]: invalid pattern %q", i, r.Pattern)
		}
	}
	return nil
}

// Rules 按文件中的顺序返回忽略规则
func (c *Config) Rules() []ignore.Rule {
	out := make([]ignore.Rule, len(c.Ignore))
	for i, r := range c.Ignore {
		out[i] = ignore.Rule{Pattern: r.Pattern, Include: r.Include}
	}
	return out
}

// Save 原子写入 (临时文件 + rename), 权限 0600
func (c *Config) Save(path string) error {
	c.Version = CurrentVersion
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".smugsync-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write config: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close config: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// Update 在排他文件锁内 读取 -> 修改 -> 写回
func Update(path string, fn func(*Config) error) error {
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock config: %w", err)
	}
	defer lock.Unlock()

	cfg, err := Load(path)
	if err != nil {
		return err
	}
	if err := fn(cfg); err != nil {
		return err
	}
	return cfg.Save(path)
}

// AppendRules 追加忽略 (include=false) 或包含规则; 只追加, 不排序不去重
func AppendRules(path string, include bool, patterns []string) error {
	for _, p := range patterns {
		if ignore.Normalize(p) == "" || !ignore.Valid(p) {
			return fmt.Errorf("invalid pattern %q", p)
		}
	}
	return Update(path, func(c *Config) error {
		for _, p := range patterns {
			c.Ignore = append(c.Ignore, IgnoreRule{Pattern: ignore.Normalize(p), Include: include})
		}
		return nil
	})
}

// ExpandPath 展开 ~ 开头的路径
func ExpandPath(p string) string {
	if out, err := homedir.Expand(p); err == nil {
		return out
	}
	return p
}

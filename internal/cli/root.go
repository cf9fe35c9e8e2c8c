// Package cli wires the smugsync commands to the config, scanner, engine and journal.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"smugsync/internal/config"
	"smugsync/internal/fs"
	"smugsync/internal/fs/smugmug"
	"smugsync/pkg/logger"
)

const envPrefix = "SMUGSYNC"

// Version 由构建时 -ldflags 覆盖
var Version = "dev"

// ExitError 携带进程退出码
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }

func (e *ExitError) Unwrap() error { return e.Err }

func fatal(err error) error {
	return &ExitError{Code: 2, Err: err}
}

// RemoteFactory 根据凭证创建远端服务
type RemoteFactory func(auth config.AuthConfig, user string) fs.RemoteService

// app 命令共享的状态, 在 PersistentPreRunE 中初始化
type app struct {
	v           *viper.Viper
	in          io.Reader
	interactive func() bool
	newRemote   RemoteFactory
	setupLog    func(level, file string) error

	cfgPath string
	cfg     *config.Config
}

func newApp() *app {
	return &app{
		v:  viper.New(),
		in: os.Stdin,
		interactive: func() bool {
			return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
		},
		newRemote: func(auth config.AuthConfig, user string) fs.RemoteService {
			client := smugmug.NewClient(&smugmug.Options{
				APIKey:            auth.APIKey,
				APISecret:         auth.APISecret,
				AccessToken:       auth.AccessToken,
				AccessTokenSecret: auth.AccessTokenSecret,
				User:              user,
				UserAgent:         "smugsync/" + Version,
			})
			return smugmug.NewService(client, nil)
		},
		setupLog: logger.Setup,
	}
}

// Execute 运行根命令并返回退出码
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(newApp()).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		var ee *ExitError
		if errors.As(err, &ee) {
			return ee.Code
		}
		return 1
	}
	return 0
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:               "smugsync",
		Short:             "One-way sync of local photo directories to SmugMug",
		Version:           Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.init,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file (default "+config.DefaultPath+")")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("env-file", ".env", "file with SMUGSYNC_* credentials")

	_ = a.v.BindPFlag("config", flags.Lookup("config"))
	_ = a.v.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = a.v.BindPFlag("env_file", flags.Lookup("env-file"))
	a.v.SetEnvPrefix(envPrefix)
	a.v.AutomaticEnv()

	root.AddCommand(
		newSyncCmd(a),
		newRuleCmd(a, false),
		newRuleCmd(a, true),
		newMkdirCmd(a, fs.KindFolder),
		newMkdirCmd(a, fs.KindAlbum),
		newUploadCmd(a),
		newLoginCmd(a),
		newLogoutCmd(a),
		newHistoryCmd(a),
	)
	return root
}

// init 加载 .env, 配置文件和日志
func (a *app) init(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(a.v.GetString("env_file")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fatal(fmt.Errorf("load env file: %w", err))
	}

	p, err := config.ResolvePath(a.v.GetString("config"))
	if err != nil {
		return fatal(err)
	}
	a.cfgPath = p

	cfg, err := config.Load(p)
	if err != nil {
		return fatal(err)
	}
	a.cfg = cfg

	level := a.v.GetString("log_level")
	if level == "" {
		level = cfg.System.LogLevel
	}
	logFile := cfg.System.LogFile
	if logFile != "" {
		logFile = config.ExpandPath(logFile)
	}
	if err := a.setupLog(level, logFile); err != nil {
		return fatal(fmt.Errorf("日志初始化失败: %w", err))
	}

	slog.Debug("配置已加载", "config", p, "rules", len(cfg.Ignore))
	return nil
}

// credentials 配置文件中的凭证, 环境变量 SMUGSYNC_* 优先
func (a *app) credentials() config.AuthConfig {
	auth := a.cfg.Auth
	for key, dst := range map[string]*string{
		"api_key":             &auth.APIKey,
		"api_secret":          &auth.APISecret,
		"access_token":        &auth.AccessToken,
		"access_token_secret": &auth.AccessTokenSecret,
	} {
		if v := a.v.GetString(key); v != "" {
			*dst = v
		}
	}
	return auth
}

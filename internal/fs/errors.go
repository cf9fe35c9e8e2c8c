package fs

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNetwork 暂时性错误: 连接失败, 限流, 5xx
	ErrNetwork = errors.New("network error")
	// ErrAuth 凭证无效或过期, 整个运行终止
	ErrAuth = errors.New("authentication error")
	// ErrConflict 远端已存在同名节点
	ErrConflict = errors.New("conflict")
)

// Skip reasons shared by the walker, the planner and the executor.
const (
	ReasonAlreadyPresent   = "already present"
	ReasonKindConflict     = "kind conflict"
	ReasonNameConflict     = "name conflict"
	ReasonUnsupportedType  = "unsupported type"
	ReasonUnsupportedEntry = "unsupported entry"
	ReasonAncestorFailed   = "ancestor failed"
	ReasonFolderDepth      = "folder depth limit"
	ReasonNoMedia          = "no supported media"
	ReasonLocalIO          = "local io error"
	ReasonRemoteFetch      = "remote fetch failed"
	ReasonCancelled        = "cancelled"
)

// LocalIOError 本地文件系统访问失败, 只影响对应子树
type LocalIOError struct {
	Path string
	Err  error
}

func (e *LocalIOError) Error() string {
	return fmt.Sprintf("local io error %s: %v", e.Path, e.Err)
}

func (e *LocalIOError) Unwrap() error { return e.Err }

// NetworkError marks err as transient.
func NetworkError(err error) error {
	return fmt.Errorf("%w: %w", ErrNetwork, err)
}

// ErrorKind 错误分类
type ErrorKind int

const (
	ErrorNone ErrorKind = iota
	ErrorNetwork
	ErrorAuth
	ErrorLocalIO
	ErrorConflict
	ErrorCancelled
	ErrorOther
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorNone:
		return ""
	case ErrorNetwork:
		return "NetworkError"
	case ErrorAuth:
		return "AuthError"
	case ErrorLocalIO:
		return "LocalIOError"
	case ErrorConflict:
		return "Conflict"
	case ErrorCancelled:
		return "Cancelled"
	}
	return "Error"
}

// Classify maps an error onto the sync error taxonomy.
func Classify(err error) ErrorKind {
	var lio *LocalIOError
	switch {
	case err == nil:
		return ErrorNone
	case errors.Is(err, ErrAuth):
		return ErrorAuth
	case errors.As(err, &lio):
		return ErrorLocalIO
	case errors.Is(err, ErrConflict):
		return ErrorConflict
	case errors.Is(err, ErrNetwork):
		return ErrorNetwork
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrorCancelled
	}
	return ErrorOther
}

// IsConflict reports whether err is a remote name conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

package sync

import (
	"errors"
	"fmt"
	"path"
	"time"

	"smugsync/internal/fs"
)

// ErrMalformedPlan 计划违反祖先先于后代的顺序约束
var ErrMalformedPlan = errors.New("malformed plan")

// ActionType 定义同步动作类型
type ActionType int

const (
	ActionCreateFolder ActionType = iota // 创建文件夹
	ActionCreateAlbum                    // 创建相册
	ActionUploadImage                    // 上传图片
	ActionSkip                           // 跳过 (带原因)
)

func (t ActionType) String() string {
	switch t {
	case ActionCreateFolder:
		return "CreateFolder"
	case ActionCreateAlbum:
		return "CreateAlbum"
	case ActionUploadImage:
		return "UploadImage"
	}
	return "Skip"
}

// Action 一个可独立重试的远端变更
type Action struct {
	Type      ActionType
	Path      string     // 远端目标路径
	LocalPath string     // UploadImage 的本地文件
	Privacy   fs.Privacy // 仅 Create*
	Size      int64
	Reason    string // 仅 Skip
	Err       error  // 规划阶段发现的节点级错误 (LocalIOError 等)
}

// AlbumPath is the remote album an UploadImage targets.
func (a Action) AlbumPath() string {
	return path.Dir(a.Path)
}

func (a Action) String() string {
	switch a.Type {
	case ActionCreateFolder, ActionCreateAlbum:
		return fmt.Sprintf("%s(%q, %s)", a.Type, a.Path, a.Privacy)
	case ActionUploadImage:
		return fmt.Sprintf("%s(%q, %q)", a.Type, a.LocalPath, a.AlbumPath())
	}
	if a.Err != nil {
		return fmt.Sprintf("Skip(%q, %q: %v)", a.Path, a.Reason, a.Err)
	}
	return fmt.Sprintf("Skip(%q, %q)", a.Path, a.Reason)
}

func containerAction(kind fs.Kind, p string, privacy fs.Privacy) Action {
	t := ActionCreateFolder
	if kind == fs.KindAlbum {
		t = ActionCreateAlbum
	}
	return Action{Type: t, Path: p, Privacy: privacy}
}

func skipAction(p, reason string, err error) Action {
	return Action{Type: ActionSkip, Path: p, Reason: reason, Err: err}
}

// Plan 有序动作列表: 祖先路径的动作总在后代之前
type Plan []Action

// Validate checks the ordering invariant and that no target appears twice.
func (p Plan) Validate() error {
	seen := make(map[string]bool, len(p))
	ancestors := make(map[string]bool)
	for _, a := range p {
		if seen[a.Path] {
			return fmt.Errorf("%w: %s appears twice", ErrMalformedPlan, a.Path)
		}
		if ancestors[a.Path] {
			return fmt.Errorf("%w: %s follows one of its descendants", ErrMalformedPlan, a.Path)
		}
		seen[a.Path] = true
		for d := path.Dir(a.Path); d != "/" && d != "."; d = path.Dir(d) {
			ancestors[d] = true
		}
	}
	return nil
}

// Status 动作的终态
type Status int

const (
	StatusDone Status = iota
	StatusSkipped
	StatusFailed
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusDone:
		return "Done"
	case StatusSkipped:
		return "Skipped"
	case StatusFailed:
		return "Failed"
	}
	return "Cancelled"
}

// Outcome 单个动作的执行结果
type Outcome struct {
	Action   Action
	Status   Status
	Reason   string
	Kind     fs.ErrorKind
	Err      error
	Attempts int
}

// satisfied 后代可以继续执行
func (o Outcome) satisfied() bool {
	return o.Status == StatusDone || (o.Status == StatusSkipped && o.Reason == fs.ReasonAlreadyPresent)
}

// Result 一次运行的汇总
type Result struct {
	RunID    string
	Started  time.Time
	Duration time.Duration
	Outcomes []Outcome // 与计划下标一一对应

	Created       int
	Uploaded      int
	Skipped       int
	Failed        int
	Cancelled     int
	UploadedBytes int64
}

// Failures returns the failed outcomes in plan order.
func (r *Result) Failures() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed {
			out = append(out, o)
		}
	}
	return out
}

// OK is true when nothing failed or was cancelled.
func (r *Result) OK() bool {
	return r.Failed == 0 && r.Cancelled == 0
}

func (r *Result) tally() {
	r.Created, r.Uploaded, r.Skipped, r.Failed, r.Cancelled, r.UploadedBytes = 0, 0, 0, 0, 0, 0
	for _, o := range r.Outcomes {
		switch o.Status {
		case StatusDone:
			if o.Action.Type == ActionUploadImage {
				r.Uploaded++
				r.UploadedBytes += o.Action.Size
			} else {
				r.Created++
			}
		case StatusSkipped:
			r.Skipped++
		case StatusFailed:
			r.Failed++
		case StatusCancelled:
			r.Cancelled++
		}
	}
}

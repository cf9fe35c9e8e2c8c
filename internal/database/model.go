package database

import "time"

// RunRecord 一次同步运行的摘要, 序列化为 JSON 存入 journal
type RunRecord struct {
	ID       string        `json:"id"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Sources  []string      `json:"sources"`
	Target   string        `json:"target"`

	Created       int   `json:"created"`
	Uploaded      int   `json:"uploaded"`
	Skipped       int   `json:"skipped"`
	Failed        int   `json:"failed"`
	Cancelled     int   `json:"cancelled"`
	UploadedBytes int64 `json:"uploaded_bytes"`

	// Aborted 非空表示运行被致命错误中止
	Aborted  string    `json:"aborted,omitempty"`
	Failures []Failure `json:"failures,omitempty"`
}

// Failure 失败动作的路径和原因
type Failure struct {
	Path   string `json:"path"`
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

// OK 没有失败, 没有取消, 也没有中止
func (r *RunRecord) OK() bool {
	return r.Failed == 0 && r.Cancelled == 0 && r.Aborted == ""
}

package sync

import (
	"path"
	stdsync "sync"

	"smugsync/internal/fs"
)

// scheduler 按依赖关系分发动作: 每个动作依赖计划中位于它之前的最近祖先创建动作
type scheduler struct {
	plan     Plan
	outcomes []Outcome
	children [][]int

	mu      stdsync.Mutex
	pending int
	ready   chan int
}

func newScheduler(plan Plan, outcomes []Outcome) *scheduler {
	s := &scheduler{
		plan:     plan,
		outcomes: outcomes,
		children: make([][]int, len(plan)),
		pending:  len(plan),
		// 每个下标最多入队一次, 发送永远不会阻塞
		ready: make(chan int, len(plan)),
	}

	creates := make(map[string]int)
	for i, a := range plan {
		parent := -1
		for d := path.Dir(a.Path); ; d = path.Dir(d) {
			if j, ok := creates[d]; ok {
				parent = j
				break
			}
			if d == "/" || d == "." {
				break
			}
		}
		if parent < 0 {
			s.ready <- i
		} else {
			s.children[parent] = append(s.children[parent], i)
		}
		if a.Type == ActionCreateFolder || a.Type == ActionCreateAlbum {
			creates[a.Path] = i
		}
	}
	return s
}

// finish 记录终态并释放依赖它的动作
func (s *scheduler) finish(idx int, out Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.outcomes[idx] = out
	s.pending--

	for _, c := range s.children[idx] {
		if out.satisfied() {
			s.ready <- c
		} else {
			s.resolve(c, out.Status == StatusCancelled)
		}
	}
	if s.pending == 0 {
		close(s.ready)
	}
}

// resolve 祖先未满足时直接给出终态, 递归处理整棵子树
func (s *scheduler) resolve(idx int, cancelled bool) {
	out := Outcome{Action: s.plan[idx], Status: StatusSkipped, Reason: fs.ReasonAncestorFailed}
	if cancelled {
		out = Outcome{Action: s.plan[idx], Status: StatusCancelled, Reason: fs.ReasonCancelled, Kind: fs.ErrorCancelled}
	}
	s.outcomes[idx] = out
	s.pending--
	for _, c := range s.children[idx] {
		s.resolve(c, cancelled)
	}
}

package database

import "time"

// TransferRecord 一个远程文件最近一次的处理结果
// 只用于查询和排障，不参与同步决策 (决策只看本地文件大小)
type TransferRecord struct {
	// 远程绝对路径，作为数据库的 Key
	RemotePath string `json:"remote_path"`
	LocalPath  string `json:"local_path"`

	// 远程文件大小 (字节)
	Size int64 `json:"size"`

	// 决策: skip / download，以及原因 (same-size, filtered, missing ...)
	Op     string `json:"op"`
	Reason string `json:"reason"`

	// 任务终态: completed / failed
	State    string `json:"state"`
	ExitCode int    `json:"exit_code"`
	Error    string `json:"error,omitempty"`

	PassID    string `json:"pass_id"`
	UpdatedAt int64  `json:"updated_at"` // Unix Nano
}

// Failed 该记录是否为失败
func (r *TransferRecord) Failed() bool {
	return r.State == "failed"
}

// PassRecord 一轮完整扫描的汇总
type PassRecord struct {
	ID         string `json:"id"`
	RemoteDir  string `json:"remote_dir"`
	LocalDir   string `json:"local_dir"`
	StartedAt  int64  `json:"started_at"`  // Unix Nano
	FinishedAt int64  `json:"finished_at"` // Unix Nano

	Dirs       int `json:"dirs"`
	Files      int `json:"files"`
	Downloaded int `json:"downloaded"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
	ListErrors int `json:"list_errors"`

	Error string `json:"error,omitempty"`
}

// Duration 本轮耗时
func (p *PassRecord) Duration() time.Duration {
	return time.Duration(p.FinishedAt - p.StartedAt)
}

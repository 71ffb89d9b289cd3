package api

// CaseResult is the outcome of a single test case
type CaseResult struct {
	ID        int32  `json:"id,omitempty"`
	Status    int32  `json:"status"`
	Score     int32  `json:"score"`
	TimeMs    int64  `json:"time_ms"`
	MemoryKiB int64  `json:"memory_kib"`
	Message   string `json:"message,omitempty"`
}

// Result carries the fields of an incremental or terminal task report.
// A "pure per-case" result has only Case set; those are eligible for
// batching under performance mode.
type Result struct {
	Status       *int32       `json:"status,omitempty"`
	Score        *int32       `json:"score,omitempty"`
	TimeMs       *int64       `json:"time_ms,omitempty"`
	MemoryKiB    *int64       `json:"memory_kib,omitempty"`
	Progress     *float64     `json:"progress,omitempty"`
	CompilerText string       `json:"compiler_text,omitempty"`
	Message      string       `json:"message,omitempty"`
	Case         *CaseResult  `json:"case,omitempty"`
	Cases        []CaseResult `json:"cases,omitempty"`
}

// ResultMsg is a Result tagged with the originating task's request id
// and the next/end discriminator so the server can correlate it
type ResultMsg struct {
	Result
	RID string `json:"rid"`
	Key Key    `json:"key"`
}

func NewNext(rid string, res Result) ResultMsg {
	return ResultMsg{Result: res, RID: rid, Key: KeyNext}
}

func NewEnd(rid string, res Result) ResultMsg {
	return ResultMsg{Result: res, RID: rid, Key: KeyEnd}
}

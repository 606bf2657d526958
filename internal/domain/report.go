package domain

import "time"

// RunReport 汇总一次 run 的结果。只用于结束时展示，不落盘（断点由操作者手工给出）。
type RunReport struct {
	RunID        string       `json:"run_id"`
	URL          string       `json:"url"`
	BaseClassify string       `json:"base_classify"`
	Cursor       ResumeCursor `json:"cursor"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`
	Pools   []PoolReport  `json:"pools"`
}

type ReportSummary struct {
	Pools      int   `json:"pools"`
	Downloaded int   `json:"downloaded"`
	Failed     int   `json:"failed"`
	Bytes      int64 `json:"bytes"`
}

type PoolReport struct {
	Index         int           `json:"index"`
	Classify      string        `json:"classify"`
	ClassifyCount int           `json:"classify_count"`
	StartAsset    int           `json:"start_asset"`
	Results       []AssetResult `json:"-"`
}

// Finalize 统一时间为 UTC，并由 Pools 重新计算 Summary。
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	s := ReportSummary{Pools: len(r.Pools)}
	for _, p := range r.Pools {
		for _, res := range p.Results {
			if res.OK() {
				s.Downloaded++
				s.Bytes += res.Bytes
			} else {
				s.Failed++
			}
		}
	}
	r.Summary = s
}

// LastFailure 返回最后一个失败的资源及其所在分类下标，用于提示下一次的断点。
func (r *RunReport) LastFailure() (classifyIndex int, res AssetResult, ok bool) {
	for i := len(r.Pools) - 1; i >= 0; i-- {
		p := r.Pools[i]
		for j := len(p.Results) - 1; j >= 0; j-- {
			if !p.Results[j].OK() {
				return p.Index, p.Results[j], true
			}
		}
	}
	return 0, AssetResult{}, false
}

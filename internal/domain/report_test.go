package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunReport_FinalizeSummaryAndUTC(t *testing.T) {
	a := Asset{Title: "a", Path: "/assets/1.png", Ext: ExtPNG}
	r := RunReport{
		StartedAt:  time.Date(2026, 2, 9, 10, 0, 0, 0, time.FixedZone("X", 8*3600)),
		FinishedAt: time.Date(2026, 2, 9, 10, 0, 1, 0, time.FixedZone("X", 8*3600)),
		Pools: []PoolReport{
			{Index: 0, Results: []AssetResult{Ok(0, a, "out/a.png", 10), Ok(1, a, "out/b.png", 5)}},
			{Index: 2, Results: []AssetResult{Failed(3, a, errors.New("boom"))}},
		},
	}

	r.Finalize()

	assert.Equal(t, time.UTC, r.StartedAt.Location())
	assert.Equal(t, ReportSummary{Pools: 2, Downloaded: 2, Failed: 1, Bytes: 15}, r.Summary)

	ci, res, ok := r.LastFailure()
	require.True(t, ok)
	assert.Equal(t, 2, ci)
	assert.Equal(t, 3, res.Index)
}

func TestResumeCursor_AssetStartFor(t *testing.T) {
	c := ResumeCursor{ClassifyIndex: 2, AssetIndex: 7}

	assert.Equal(t, 7, c.AssetStartFor(2))
	assert.Equal(t, 0, c.AssetStartFor(3))
	assert.NoError(t, c.Validate())
	assert.Error(t, ResumeCursor{AssetIndex: -1}.Validate())
	assert.Error(t, ResumeCursor{ClassifyIndex: -1}.Validate())
}

func TestErrors_UnwrapAndClassify(t *testing.T) {
	cause := errors.New("HTTP 404")
	err := error(&DownloadError{AssetPath: "/assets/1.png", Err: cause})

	assert.True(t, IsDownloadError(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "/assets/1.png")

	se := &StructureError{Section: 1, Classify: "Enemies", Reason: "缺少 icondisplay"}
	assert.True(t, IsStructureError(se))
	assert.Contains(t, se.Error(), "Enemies")
}

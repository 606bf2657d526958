package spriters

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/spritegrab/internal/domain"
	providerx "github.com/John-Robertt/spritegrab/internal/provider"
)

func readFixture(t *testing.T) []byte {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("testdata", "listing.html"))
	require.NoError(t, err, "读取 fixture 失败")
	return b
}

func TestParse_Fixture(t *testing.T) {
	cat, err := Provider{}.Parse(readFixture(t))
	require.NoError(t, err)
	require.Len(t, cat, 3)

	assert.Equal(t, "Playable Characters", cat[0].Classify)
	assert.Equal(t, 3, cat[0].ClassifyCount)
	// 没有 img 的候选被跳过；声明数量与实际数量不一致是允许的
	assert.Equal(t, []domain.Asset{
		{Title: "Player Idle?v=2", Path: "/media/assets/1/100.png?updated=1700000000", Ext: "png"},
		{Title: "Player Run", Path: "/media/assets/1/101.png", Ext: "png"},
	}, cat[0].Assets)

	assert.Equal(t, "Sprites/Enemies", cat[1].Classify)
	assert.Equal(t, 2, cat[1].ClassifyCount)
	assert.Equal(t, []domain.Asset{
		{Title: "Slime", Path: "/media/assets/2/200.jpg", Ext: "jpg"},
		{Title: "Boss Pack", Path: "/media/assets/2/201.zip", Ext: "zip"},
	}, cat[1].Assets)

	// 无法解析的计数按 0；没有标题的候选被跳过
	assert.Equal(t, "Misc", cat[2].Classify)
	assert.Equal(t, 0, cat[2].ClassifyCount)
	assert.Empty(t, cat[2].Assets)
}

func TestParse_NeverKeepsThumbnailSegment(t *testing.T) {
	cat, err := Provider{}.Parse(readFixture(t))
	require.NoError(t, err)
	for _, p := range cat {
		for _, a := range p.Assets {
			assert.NotContains(t, a.Path, "asset_icons")
			assert.True(t, domain.IsSupportedExt(a.Ext), a.Ext)
		}
	}
}

func TestExtract_SectionCountAndOrder(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body>\n")
	names := []string{"A", "B", "C", "D"}
	for _, n := range names {
		b.WriteString(`<div class="section">` + n + "</div>\n")
		b.WriteString(`<div class="icondisplay"><div><div class="iconheader">` + n + `1</div><div class="iconbody"><img src="/media/asset_icons/` + n + `.png"></div></div></div>` + "\n")
	}
	b.WriteString("</body></html>")

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(b.String()))
	require.NoError(t, err)

	cat, err := Extract(doc)
	require.NoError(t, err)
	require.Len(t, cat, len(names))
	for i, n := range names {
		assert.Equal(t, n, cat[i].Classify)
		require.Len(t, cat[i].Assets, 1)
		assert.Equal(t, "/media/assets/"+n+".png", cat[i].Assets[0].Path)
	}
}

func TestExtract_MissingContainerIsStructureError(t *testing.T) {
	cases := map[string]string{
		"no sibling":      `<div class="section">A</div>`,
		"wrong class":     "<div class=\"section\">A</div>\n<div class=\"other\"></div>",
		"no whitespace":   `<div class="section">A</div><div class="icondisplay"></div>`,
		"second is wrong": "<div class=\"section\">A</div>\n<div class=\"icondisplay\"></div>\n<div class=\"section\">B</div>\n<p>x</p>",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			cat, err := Provider{}.Parse([]byte("<html><body>" + body + "</body></html>"))
			require.Error(t, err)
			assert.True(t, domain.IsStructureError(err), "%T %v", err, err)
			assert.Nil(t, cat)
		})
	}
}

func TestExtract_NoSectionsIsEmptyCatalog(t *testing.T) {
	cat, err := Provider{}.Parse([]byte("<html><body><p>nothing</p></body></html>"))
	require.NoError(t, err)
	assert.Empty(t, cat)
}

func TestParse_EmptyHTML(t *testing.T) {
	_, err := Provider{}.Parse(nil)
	assert.Error(t, err)
}

func TestParseCount(t *testing.T) {
	assert.Equal(t, 12, parseCount("[12]"))
	assert.Equal(t, 7, parseCount(" [ 7 ] "))
	assert.Equal(t, 0, parseCount("[?]"))
	assert.Equal(t, 0, parseCount(""))
}

func TestFetch_StatusAndChallenge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok/":
			_, _ = w.Write([]byte("<html></html>"))
		case "/challenge/":
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("<title>Just a moment...</title>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	b, err := Provider{}.Fetch(context.Background(), srv.URL+"/ok/", srv.Client())
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", string(b))

	_, err = Provider{}.Fetch(context.Background(), srv.URL+"/challenge/", srv.Client())
	var be *providerx.BlockedError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "challenge", be.Reason)

	_, err = Provider{}.Fetch(context.Background(), srv.URL+"/missing/", srv.Client())
	var hs *providerx.HTTPStatusError
	require.ErrorAs(t, err, &hs)
	assert.Equal(t, http.StatusNotFound, hs.StatusCode)
}

func TestParse_ClassifyIgnoresTrailingWhitespaceText(t *testing.T) {
	page := `<html><body>
<div class="section">Backgrounds <span class="asset-count">[1]</span>   
	</div>
<div class="icondisplay"><a><div class="iconheader">Sky</div><div class="iconbody"><img src="/media/asset_icons/9/1.png"></div></a></div>
<div class="section">Old Label <span class="asset-count">[0]</span> New Label </div>
<div class="icondisplay"></div>
</body></html>`

	cat, err := Provider{}.Parse([]byte(page))
	require.NoError(t, err)
	require.Len(t, cat, 2)
	// count 之后只有空白时保留前面的名字；有多个非空文本时最后一个为准
	assert.Equal(t, "Backgrounds", cat[0].Classify)
	assert.Equal(t, 1, cat[0].ClassifyCount)
	assert.Equal(t, "New Label", cat[1].Classify)
	assert.Empty(t, cat[1].Assets)
}

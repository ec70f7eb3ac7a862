package cmd

import (
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/shouni/go-news-harvest/internal/pipeline"
	"github.com/shouni/go-news-harvest/pkg/listing"
	"github.com/shouni/go-news-harvest/pkg/scraper"
	"github.com/shouni/go-news-harvest/pkg/storage"
)

func newTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	return t
}

// renderSectionReports はセクションごとの処理結果を表で出力します。
func renderSectionReports(out io.Writer, reports []scraper.SectionReport) {
	if len(reports) == 0 {
		return
	}
	t := newTable(out)
	t.AppendHeader(table.Row{"Section", "Discovered", "Skipped", "Parsed", "Dropped", "Failed", "Canceled", "Duration"})

	var total scraper.SectionReport
	for _, r := range reports {
		t.AppendRow(table.Row{r.Section, r.Discovered, r.Skipped, r.Parsed, r.Dropped, r.Failed, r.Canceled, r.Duration.Round(time.Millisecond)})
		total.Discovered += r.Discovered
		total.Skipped += r.Skipped
		total.Parsed += r.Parsed
		total.Dropped += r.Dropped
		total.Failed += r.Failed
		total.Canceled += r.Canceled
		total.Duration += r.Duration
	}
	t.AppendFooter(table.Row{"Total", total.Discovered, total.Skipped, total.Parsed, total.Dropped, total.Failed, total.Canceled, total.Duration.Round(time.Millisecond)})
	t.Render()
}

// renderPages は一覧ページごとの結果を表で出力します。
func renderPages(out io.Writer, res listing.Result) {
	t := newTable(out)
	t.AppendHeader(table.Row{"Page", "URL", "Found", "New", "Error"})
	for _, p := range res.Pages {
		errText := ""
		if p.Err != nil {
			errText = storage.Truncate(p.Err.Error(), 60)
		}
		t.AppendRow(table.Row{p.Page, p.URL, p.Found, p.New, errText})
	}
	t.AppendFooter(table.Row{"", "stop: " + res.Stop.String(), len(res.URLs), res.FeedLinks, ""})
	t.Render()
}

// renderStats はコーパスの集計結果を表で出力します。
func renderStats(out io.Writer, s pipeline.Stats) {
	t := newTable(out)
	t.SetTitle("Corpus")
	t.AppendHeader(table.Row{"Metric", "Count", "Share"})
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 3, Align: text.AlignRight}})
	t.AppendRow(table.Row{"articles", s.Articles, ""})
	t.AppendRow(table.Row{"with companies", s.WithCompanies, percent(s.Share(s.WithCompanies))})
	t.AppendRow(table.Row{"with money", s.WithMoney, percent(s.Share(s.WithMoney))})
	t.AppendRow(table.Row{"with people", s.WithPeople, percent(s.Share(s.WithPeople))})
	t.AppendRow(table.Row{"distinct companies", s.DistinctCompanies, ""})
	t.Render()

	renderCounts(out, "Content types", s.ByContentType)
	renderCounts(out, "Top companies", s.TopCompanies)
}

func renderCounts(out io.Writer, title string, counts []pipeline.Count) {
	if len(counts) == 0 {
		return
	}
	t := newTable(out)
	t.SetTitle(title)
	t.AppendHeader(table.Row{"#", "Name", "Articles"})
	for i, c := range counts {
		t.AppendRow(table.Row{i + 1, c.Name, c.N})
	}
	t.Render()
}

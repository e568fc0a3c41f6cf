package export

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"

	sitemapcsv "github.com/kotylevskiy/go-sitemap-csv"
)

// WriteReport writes a Markdown summary of a resolve run: totals, the
// sitemaps that were read and every failure.
func WriteReport(w io.Writer, roots []string, result *sitemapcsv.Result) error {
	md := markdown.NewMarkdown(w)

	md.H1("Sitemap Report")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Root", "`" + strings.Join(roots, "`, `") + "`"},
			{"Unique URLs", strconv.Itoa(len(result.URLs))},
			{"Sitemaps fetched", strconv.Itoa(result.Fetches)},
			{"Failures", strconv.Itoa(len(result.Failures))},
		},
	})
	md.PlainText("")

	if len(result.Failures) > 0 {
		md.Warningf("%d sitemap(s) could not be resolved; the URL list is partial.", len(result.Failures))
	} else {
		md.Tip("Every sitemap was resolved.")
	}
	md.PlainText("")

	md.H2("Sitemaps")
	md.PlainText("")
	if len(result.Sitemaps) == 0 {
		md.PlainText("No sitemap could be read.")
	} else {
		rows := make([][]string, 0, len(result.Sitemaps))
		for _, sm := range result.Sitemaps {
			rows = append(rows, []string{sm.URL, sm.Kind.String(), strconv.Itoa(sm.Depth), strconv.Itoa(sm.EntryCount)})
		}
		md.Table(markdown.TableSet{
			Header: []string{"Sitemap", "Kind", "Depth", "Entries"},
			Rows:   rows,
		})
	}
	md.PlainText("")

	md.H2("Failures")
	md.PlainText("")
	if len(result.Failures) == 0 {
		md.PlainText("None.")
	} else {
		rows := make([][]string, 0, len(result.Failures))
		for _, f := range result.Failures {
			rows = append(rows, []string{f.URL, string(f.Kind), escapeCell(f.Message)})
		}
		md.Table(markdown.TableSet{
			Header: []string{"Sitemap", "Error", "Detail"},
			Rows:   rows,
		})
	}

	return md.Build()
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

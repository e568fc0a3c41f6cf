package web

import "html/template"

var pageTemplate = template.Must(template.New("page").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Sitemap to CSV</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 52rem; margin: 2rem auto; padding: 0 1rem; }
label { display: block; margin: .6rem 0 .2rem; }
input[type=text] { width: 100%; padding: .4rem; }
.error { color: #b00020; }
.success { color: #1b5e20; }
table { border-collapse: collapse; width: 100%; }
td, th { border: 1px solid #ddd; padding: .3rem; text-align: left; font-size: .9rem; word-break: break-all; }
</style>
</head>
<body>
<h1>Sitemap to CSV</h1>
<p>Enter any sitemap root URL (including sitemap index files) and download a CSV of every child link.</p>
<form method="post" action="/collect">
  <label for="sitemap_url">Root sitemap URL</label>
  <input type="text" id="sitemap_url" name="sitemap_url" value="{{.Form.SitemapURL}}">
  <label for="file_name">CSV file name</label>
  <input type="text" id="file_name" name="file_name" value="{{.Form.FileName}}">
  {{if .CAAvailable}}<label><input type="checkbox" name="use_ca" value="1"{{if .Form.UseCA}} checked{{end}}> Use configured CA bundle</label>{{end}}
  <label><input type="checkbox" name="strip_domain" value="1"{{if .Form.StripDomain}} checked{{end}}> Strip scheme+host (keep only path/query/fragment)</label>
  <p><button type="submit">Collect URLs</button></p>
</form>
{{with .Error}}<p class="error">{{.}}</p>{{end}}
{{with .Collected}}
<p class="success">Discovered {{.Count}} URL(s)</p>
<p><a href="/download/{{.ID}}">Download CSV</a></p>
{{if .Sample}}
<h2>Sample URLs</h2>
<table><tr><th>url</th></tr>{{range .Sample}}<tr><td>{{.}}</td></tr>{{end}}</table>
{{end}}
{{if .Failures}}
<h2>Failures</h2>
<table><tr><th>Sitemap</th><th>Error</th><th>Detail</th></tr>
{{range .Failures}}<tr><td>{{.URL}}</td><td>{{.Kind}}</td><td>{{.Message}}</td></tr>{{end}}
</table>
{{end}}
{{end}}
</body>
</html>
`))

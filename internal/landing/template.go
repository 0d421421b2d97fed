package landing

import (
	"html/template"
	"io"
)

var pageTmpl = template.Must(template.New("landing").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Join us on WhatsApp</title>
<style>
body{font-family:system-ui,sans-serif;background:#f6f7f9;margin:0;display:flex;min-height:100vh;align-items:center;justify-content:center}
main{background:#fff;border-radius:12px;padding:32px;max-width:360px;text-align:center;box-shadow:0 2px 12px rgba(0,0,0,.08)}
a.button{display:inline-block;background:#25d366;color:#fff;padding:12px 20px;border-radius:8px;text-decoration:none;font-weight:600}
button{margin-top:12px;border:1px solid #ccc;background:#fff;border-radius:6px;padding:8px 14px;cursor:pointer}
img{margin:20px auto;display:block}
</style>
</head>
<body>
<main>
<h1>Message us on WhatsApp</h1>
<p>Send <strong>{{.Keyword}}</strong> to {{.Number}} to join.</p>
<a class="button" href="{{.URL}}">Open WhatsApp</a>
<img src="{{.QRPath}}" width="200" height="200" alt="QR code for {{.URL}}">
<button type="button" data-link="{{.URL}}" onclick="navigator.clipboard.writeText(this.dataset.link);this.textContent='Copied'">Copy link</button>
</main>
</body>
</html>
`))

// Render writes the HTML landing page.
func Render(w io.Writer, p Page) error {
	return pageTmpl.Execute(w, p)
}

package botfilter

import (
	"html/template"
	"strings"
)

var interstitialTemplate = template.Must(template.New("interstitial").Parse(`<!doctype html>
<html>
<head>
    <title>{{.Title}}</title>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <meta name="robots" content="noindex, follow">
    <script>
      window.addEventListener('load', () => {
        let delay = {{.Delay}};
        let delayView = document.getElementById('delay');

        let interval = setInterval(() => {
          delay--;

          if (delay < 1) {
            document.querySelector('#main p').textContent = {{.RedirectingText}};
            window.open({{.Destination}}, '_self');
            clearInterval(interval);
            return;
          }

          delayView.textContent = delay;
        }, 1000);

        document.getElementById('continue').addEventListener('click', () => {
          clearInterval(interval);
        });
      });
    </script>
    <style>
        html {
            background-color: #F6F9FB;
            font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Oxygen-Sans, Ubuntu, Cantarell, "Helvetica Neue", sans-serif;
            line-height: 1.6em;
            padding-top: 50px;
        }

        img {
            width: 300px;
            margin: 50px auto;
            display: block;
        }

        #main {
            max-width: 500px;
            margin: 0 auto;
            padding: 30px;
            background: #FFFFFF;
            box-shadow: 5px 5px 30px rgba(24, 45, 70, 0.05);
            border-radius: 5px;
        }

        #main p {
            font-size: 18px;
        }

        #delay {
            font-weight: bold;
        }

        body p {
            margin: 1.1em 0;
            text-align: center;
            font-size: 14px;
        }
    </style>
</head>
<body>
{{- if .LogoSrc}}
<img id="logo" src="{{.LogoSrc}}">
{{- end}}
<div id="main">
    <p>{{.Countdown}}</p>
</div>
<p>{{.Continue}}</p>
</body>
</html>
`))

// interstitialPage is the data the interstitial template is rendered with
type interstitialPage struct {
	Title           string
	LogoSrc         string
	Delay           int
	Destination     string
	RedirectingText string
	Countdown       template.HTML
	Continue        template.HTML
}

// fillHTML escapes format and replaces its %s placeholders in order with parts
func fillHTML(format string, parts ...template.HTML) template.HTML {
	pieces := strings.Split(format, "%s")

	var b strings.Builder
	for i, piece := range pieces {
		b.WriteString(template.HTMLEscapeString(piece))
		if i < len(pieces)-1 && i < len(parts) {
			b.WriteString(string(parts[i]))
		}
	}

	return template.HTML(b.String())
}

package mail

import (
	"bytes"
	"fmt"
	"html"
	"math/rand"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var openers = []string{
	"Thanks for taking a moment, here is a short brief I hope is useful.",
	"Appreciate you reading this, I did some digging and wrapped up the key points.",
	"Thanks for checking this out, here is a clear summary so you can skim and get the picture.",
	"Thanks for your time, I gathered the highlights so it is easy to follow.",
	"Here is a quick brief without the extra noise.",
	"Thanks for reading, the main points are all in one place.",
	"Here is a short, straight-to-the-point brief.",
}

var markdownRenderer = goldmark.New(goldmark.WithExtensions(extension.GFM))

// sanitizer keeps the HTML produced from model markdown down to links,
// headings, lists and basic formatting before it goes into an email body.
var sanitizer = bluemonday.UGCPolicy()

// RenderHTML converts the brief markdown into the sanitized HTML email
// body, wrapped in the standard card template.
func RenderHTML(topic, markdownBody string) (string, error) {
	var buf bytes.Buffer
	if err := markdownRenderer.Convert([]byte(markdownBody), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	bodyHTML := sanitizer.Sanitize(buf.String())
	opener := openers[rand.Intn(len(openers))]

	return fmt.Sprintf(emailTemplate, opener, html.EscapeString(topic), bodyHTML), nil
}

const emailTemplate = `<html>
  <head>
    <meta charset="utf-8" />
    <style>
      body {
        font-family: -apple-system, Segoe UI, Roboto, Arial, sans-serif;
        line-height: 1.6;
        background-color: #f9fafb; margin: 0; padding: 0;
      }
      .container {
        max-width: 700px; margin: 20px auto; padding: 24px;
        background: #ffffff; border-radius: 12px;
        box-shadow: 0 2px 8px rgba(0,0,0,0.08);
      }
      .opener { font-size: 15px; color: #444; margin-bottom: 20px; }
      .card {
        padding: 16px; border-left: 4px solid #2563eb;
        background: #f9f9ff; border-radius: 8px;
        font-size: 14px; color: #111827;
      }
      h1, h2, h3 { font-weight: bold; color: #111; }
      h1 { font-size: 20px; margin-top: 20px; }
      h2 { font-size: 18px; margin-top: 16px; }
      h3 { font-size: 16px; margin-top: 12px; }
      ul { margin: 8px 0 8px 20px; }
      .signoff { margin-top: 30px; font-size: 14px; color: #111; }
    </style>
  </head>
  <body>
    <div class="container">
      <div class="opener">Hi there,<br><br>%s</div>
      <div class="card">
        <p><strong>Topic:</strong> %s</p>
        %s
      </div>
      <div class="signoff">
        Warm regards,<br><strong>The Intel Brief Team</strong>
      </div>
    </div>
  </body>
</html>`

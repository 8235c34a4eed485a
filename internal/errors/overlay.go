package errors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"
)

const (
	overlayStyle = `position:fixed;inset:0;z-index:9999;background:rgba(0,0,0,0.85);` +
		`color:#f8fafc;font:14px Menlo,Monaco,monospace;padding:32px;overflow:auto`
	overlayPanelStyle = `max-width:960px;margin:0 auto;border-left:4px solid #ff6b6b;` +
		`background:#1e293b;padding:16px`
	overlayButtonStyle = `margin-top:16px;background:none;border:1px solid #94a3b8;` +
		`color:#f8fafc;padding:4px 12px;cursor:pointer`
)

// Overlay returns err as a dismissable full-page HTML overlay component for
// the development server. A nil error renders nothing.
func Overlay(err error) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err == nil {
			return nil
		}

		title, details := overlayHeading(err)

		var b strings.Builder
		b.WriteString(`<div id="shopfront-error-overlay" style="` + overlayStyle + `">`)
		b.WriteString(`<div style="` + overlayPanelStyle + `">`)
		b.WriteString(`<h2 style="margin:0 0 12px;color:#ff6b6b">` + templ.EscapeString(title) + `</h2>`)
		if len(details) > 0 {
			b.WriteString(`<div style="color:#94a3b8;margin-bottom:8px">` +
				templ.EscapeString(strings.Join(details, " · ")) + `</div>`)
		}
		b.WriteString(`<pre style="white-space:pre-wrap;margin:0">` + templ.EscapeString(err.Error()) + `</pre>`)
		b.WriteString(`<button onclick="document.getElementById('shopfront-error-overlay').remove()" ` +
			`style="` + overlayButtonStyle + `">Dismiss</button>`)
		b.WriteString(`</div></div>`)

		_, werr := io.WriteString(w, b.String())
		return werr
	})
}

// ErrorOverlay renders Overlay(err) to a string. It returns "" for a nil error.
func ErrorOverlay(err error) string {
	if err == nil {
		return ""
	}
	var b strings.Builder
	if rerr := Overlay(err).Render(context.Background(), &b); rerr != nil {
		return ""
	}
	return b.String()
}

func overlayHeading(err error) (string, []string) {
	title := "Build failed"
	var details []string

	var se *SiteError
	if errors.As(err, &se) {
		if se.Type != "" {
			title = fmt.Sprintf("%s error", strings.ToUpper(string(se.Type[:1]))+string(se.Type[1:]))
		}
		if se.Code != "" {
			details = append(details, se.Code)
		}
		if se.FilePath != "" {
			details = append(details, se.FilePath)
		}
	}
	return title, details
}

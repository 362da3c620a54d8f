// Package components draws the view pair and its control surface as HTML.
package components

import (
	"context"
	"io"
	"strconv"

	"github.com/a-h/templ"
)

const datastarScript = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0/bundles/datastar.js"

const pageStyle = `body { font-family: sans-serif; margin: 1rem; }
.controls { margin-bottom: 1rem; }
.controls fieldset { display: flex; flex-wrap: wrap; gap: 0.75rem; }
.controls .group { color: #666; font-size: 0.85em; }
.banner { padding: 0.5rem 0.75rem; margin-bottom: 0.5rem; border-radius: 4px; }
.banner-error { background: #fde2e2; color: #8a1f1f; }
.grid { margin-bottom: 1rem; }
.grid-viewport { overflow-x: auto; border: 1px solid #ccc; }
.grid-header { overflow: hidden; background: #f5f5f5; }
.grid-row { display: flex; }
.grid-cell { box-sizing: border-box; padding: 4px 8px; border-right: 1px solid #eee; white-space: nowrap; overflow: hidden; text-overflow: ellipsis; flex: none; }
.grid-group { font-weight: bold; text-align: center; }
`

// htmlWriter keeps the first write error so components can be written as a flat
// sequence of writes.
type htmlWriter struct {
	ctx context.Context
	w   io.Writer
	err error
}

func (hw *htmlWriter) raw(parts ...string) {
	for _, s := range parts {
		if hw.err != nil {
			return
		}

		_, hw.err = io.WriteString(hw.w, s)
	}
}

// text writes s escaped, usable both as element content and inside a quoted attribute.
func (hw *htmlWriter) text(s string) {
	hw.raw(templ.EscapeString(s))
}

func (hw *htmlWriter) number(n int) {
	hw.raw(strconv.Itoa(n))
}

func (hw *htmlWriter) child(c templ.Component) {
	if hw.err != nil {
		return
	}

	hw.err = c.Render(hw.ctx, hw.w)
}

func component(fn func(hw *htmlWriter)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := &htmlWriter{ctx: ctx, w: w}
		fn(hw)

		return hw.err
	})
}

// Page is the full document: control surface, both grids and the update stream.
func Page(rc *RenderContext) templ.Component {
	return component(func(hw *htmlWriter) {
		hw.raw("<!doctype html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n<title>")
		hw.text(rc.Title)
		hw.raw(" - gridsync</title>\n<script type=\"module\" src=\"", datastarScript, "\"></script>\n")
		hw.raw("<style>\n", pageStyle, "</style>\n</head>\n")
		hw.raw("<body data-signals=\"{scrollLeft: 0}\">\n")

		if rc.Dev {
			hw.raw("<div id=\"gridsync-reload\" data-init=\"@get('/reload')\"></div>\n")
		}

		hw.raw("<div id=\"gridsync-stream\" data-init=\"@get('/views/updates')\"></div>\n")
		hw.child(App(rc))
		hw.raw("</body>\n</html>\n")
	})
}

// App is the patchable part of the page, identified by #gridsync-app.
func App(rc *RenderContext) templ.Component {
	return component(func(hw *htmlWriter) {
		hw.raw("<main id=\"gridsync-app\" data-view=\"")
		hw.text(rc.ViewID)
		hw.raw("\" data-phase=\"")
		hw.text(rc.Phase)
		hw.raw("\">\n<section id=\"gridsync-controls\" class=\"controls\">\n")

		for _, b := range rc.Banners {
			hw.child(banner(b))
		}

		hw.raw("<fieldset>\n<legend>Columns</legend>\n")

		for _, cb := range rc.Controls {
			hw.child(checkbox(cb))
		}

		hw.raw("</fieldset>\n<p class=\"status\">Views ")
		hw.text(rc.Phase)

		if rc.Loading {
			hw.raw(", loading rows")
		}

		hw.raw("</p>\n")

		if rc.Mounted {
			hw.raw("<button id=\"unmount\" data-on:click=\"@post('/views/unmount')\">Unmount views</button>\n")
		}

		hw.raw("</section>\n")

		if rc.Primary.ID != "" {
			hw.child(Grid(rc.Primary))
		}

		if rc.Secondary.ID != "" {
			hw.child(Grid(rc.Secondary))
		}

		if !rc.Mounted {
			hw.raw("<p class=\"unmounted\">The views are not mounted. Reload the page to mount them again.</p>\n")
		}

		hw.raw("</main>\n")
	})
}

func banner(b Banner) templ.Component {
	return component(func(hw *htmlWriter) {
		hw.raw("<div class=\"banner banner-")
		hw.text(string(b.Kind))
		hw.raw("\" role=\"alert\">")
		hw.text(b.Message)

		if b.Retry {
			hw.raw(" <button id=\"retry\" data-on:click=\"@post('/views/retry')\">Retry</button>")
		}

		hw.raw("</div>\n")
	})
}

func checkbox(cb Checkbox) templ.Component {
	return component(func(hw *htmlWriter) {
		hw.raw("<label class=\"toggle\"><input type=\"checkbox\" id=\"toggle-")
		hw.text(string(cb.Key))
		hw.raw("\" name=\"")
		hw.text(string(cb.Key))
		hw.raw("\"")

		if cb.Checked {
			hw.raw(" checked")
		}

		hw.raw(" data-on:change=\"@post('")
		hw.text(cb.URL)
		hw.raw("?visible=' + el.checked)\"> ")

		if cb.Group != "" {
			hw.raw("<span class=\"group\">")
			hw.text(cb.Group)
			hw.raw("</span> ")
		}

		hw.text(cb.Label)
		hw.raw("</label>\n")
	})
}

func Grid(gv GridView) templ.Component {
	return component(func(hw *htmlWriter) {
		hw.raw("<div class=\"grid grid-")
		hw.text(gv.Role)
		hw.raw("\" id=\"grid-")
		hw.text(gv.Role)
		hw.raw("\" data-grid=\"")
		hw.text(gv.ID)
		hw.raw("\">\n<div class=\"grid-viewport\" style=\"width: ")
		hw.number(gv.ViewportWidth)
		hw.raw("px\" data-scroll-left=\"")
		hw.number(gv.ScrollLeft)
		hw.raw("\" data-init=\"el.scrollLeft = ")
		hw.number(gv.ScrollLeft)
		hw.raw("\" data-on:scroll__debounce.100ms=\"$scrollLeft = el.scrollLeft; @post('")
		hw.text(gv.ScrollURL)
		hw.raw("')\">\n<div class=\"grid-header\" style=\"width: ")
		hw.number(gv.TotalWidth)
		hw.raw("px; height: ")
		hw.number(gv.HeaderHeight)
		hw.raw("px\">\n<div class=\"grid-row grid-groups\">")

		for _, c := range gv.GroupCells {
			hw.child(groupCell(c))
		}

		hw.raw("</div>\n<div class=\"grid-row grid-headers\">")

		for _, c := range gv.HeaderCells {
			hw.raw("<div class=\"grid-cell\" data-col=\"")
			hw.text(string(c.Key))
			hw.raw("\" style=\"width: ")
			hw.number(c.Width)
			hw.raw("px\">")
			hw.text(c.Label)
			hw.raw("</div>")
		}

		hw.raw("</div>\n</div>\n<div class=\"grid-body\" style=\"width: ")
		hw.number(gv.TotalWidth)
		hw.raw("px\">\n")

		for _, row := range gv.Rows {
			hw.raw("<div class=\"grid-row\">")

			for _, cell := range row {
				hw.raw("<div class=\"grid-cell\" style=\"width: ")
				hw.number(cell.Width)
				hw.raw("px\">")
				hw.text(cell.Text)
				hw.raw("</div>")
			}

			hw.raw("</div>\n")
		}

		hw.raw("</div>\n</div>\n</div>\n")
	})
}

// groupCell draws one cell of the group header row; plain columns leave it empty.
func groupCell(c HeaderCell) templ.Component {
	return component(func(hw *htmlWriter) {
		hw.raw("<div class=\"grid-cell")

		if c.IsGroup {
			hw.raw(" grid-group")
		}

		hw.raw("\" style=\"width: ")
		hw.number(c.Width)
		hw.raw("px\">")

		if c.IsGroup {
			hw.text(c.Label)

			if c.Expandable {
				hw.raw(" <button class=\"group-toggle\" data-group=\"")
				hw.text(string(c.Key))
				hw.raw("\" data-on:click=\"@post('")
				hw.text(c.URL)
				hw.raw("')\">")
				hw.text(groupToggleText(c.Open))
				hw.raw("</button>")
			}
		}

		hw.raw("</div>")
	})
}

package topology

import (
	"fmt"
	"strings"
)

const (
	edgeGoodMs   = 20.0
	edgeMediumMs = 50.0
)

func edgeClass(latencyMs float64) string {
	switch {
	case latencyMs <= edgeGoodMs:
		return "good"
	case latencyMs <= edgeMediumMs:
		return "medium"
	default:
		return "bad"
	}
}

// RenderSVG renders snap as a self-contained interactive SVG document:
// three color classes per edge, circle nodes styled by node type, latency
// labels at edge midpoints, and an embedded script providing zoom buttons,
// click-drag pan, and hover tooltips. This is a pure function from
// topology state to a text document.
func RenderSVG(snap Snapshot, width, height int) string {
	positions := Layout(snap)
	scale := float64(width) / (2 * (locationRadius + 1.5))
	cx, cy := float64(width)/2, float64(height)/2

	project := func(p Point) (float64, float64) {
		return cx + p.X*scale, cy + p.Y*scale
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d" width="%d" height="%d">`, width, height, width, height)
	b.WriteString(`<style>
.edge-good { stroke: #2ecc71; stroke-width: 2; }
.edge-medium { stroke: #f39c12; stroke-width: 2; }
.edge-bad { stroke: #e74c3c; stroke-width: 3; }
.node-location { fill: #2c3e50; stroke: #ecf0f1; stroke-width: 2; }
.node-router { fill: #7f8c8d; stroke: #ecf0f1; stroke-width: 1; }
.label { font-family: sans-serif; font-size: 10px; fill: #2c3e50; }
.edge-label { font-family: sans-serif; font-size: 9px; fill: #7f8c8d; }
</style>`)
	fmt.Fprintf(&b, `<g id="topology-root" transform="translate(0,0) scale(1)">`)

	for _, e := range snap.Edges {
		fromP, ok1 := positions[e.From]
		toP, ok2 := positions[e.To]
		if !ok1 || !ok2 {
			continue
		}
		x1, y1 := project(fromP)
		x2, y2 := project(toP)
		fmt.Fprintf(&b, `<line class="edge-%s" x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" />`,
			edgeClass(e.LatencyMs), x1, y1, x2, y2)
		mx, my := (x1+x2)/2, (y1+y2)/2
		fmt.Fprintf(&b, `<text class="edge-label" x="%.2f" y="%.2f">%.1fms</text>`, mx, my, e.LatencyMs)
	}

	for _, n := range snap.Nodes {
		p, ok := positions[n.ID]
		if !ok {
			continue
		}
		x, y := project(p)
		radius := 6.0
		class := "node-router"
		if n.Type == NodeLocation {
			radius = 10.0
			class = "node-location"
		}
		fmt.Fprintf(&b, `<circle class="%s" cx="%.2f" cy="%.2f" r="%.2f" data-id="%s"><title>%s</title></circle>`,
			class, x, y, radius, escapeAttr(n.ID), escapeAttr(n.Name))
		fmt.Fprintf(&b, `<text class="label" x="%.2f" y="%.2f">%s</text>`, x+radius+2, y+4, escapeAttr(n.Name))
	}

	b.WriteString(`</g>`)
	b.WriteString(svgZoomControls(width))
	b.WriteString(svgInteractionScript())
	b.WriteString(`</svg>`)
	return b.String()
}

func escapeAttr(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return r.Replace(s)
}

func svgZoomControls(width int) string {
	x := width - 70
	return fmt.Sprintf(`<g id="zoom-controls">`+
		`<rect id="zoom-in" x="%d" y="20" width="24" height="24" rx="4" fill="#ecf0f1" stroke="#7f8c8d"/>`+
		`<text x="%d" y="37" text-anchor="middle" style="font-family:sans-serif;font-size:16px;pointer-events:none">+</text>`+
		`<rect id="zoom-out" x="%d" y="50" width="24" height="24" rx="4" fill="#ecf0f1" stroke="#7f8c8d"/>`+
		`<text x="%d" y="67" text-anchor="middle" style="font-family:sans-serif;font-size:16px;pointer-events:none">-</text>`+
		`</g>`, x, x+12, x, x+12)
}

func svgInteractionScript() string {
	return `<script><![CDATA[
(function() {
  var root = document.getElementById('topology-root');
  var scale = 1, tx = 0, ty = 0, dragging = false, lastX = 0, lastY = 0;
  function apply() {
    root.setAttribute('transform', 'translate(' + tx + ',' + ty + ') scale(' + scale + ')');
  }
  function zoom(delta) {
    scale = Math.max(0.2, Math.min(5, scale + delta));
    apply();
  }
  document.getElementById('zoom-in').addEventListener('click', function() { zoom(0.2); });
  document.getElementById('zoom-out').addEventListener('click', function() { zoom(-0.2); });
  document.addEventListener('wheel', function(ev) { zoom(ev.deltaY < 0 ? 0.1 : -0.1); });
  document.addEventListener('mousedown', function(ev) { dragging = true; lastX = ev.clientX; lastY = ev.clientY; });
  document.addEventListener('mouseup', function() { dragging = false; });
  document.addEventListener('mousemove', function(ev) {
    if (!dragging) return;
    tx += ev.clientX - lastX;
    ty += ev.clientY - lastY;
    lastX = ev.clientX; lastY = ev.clientY;
    apply();
  });
})();
]]></script>`
}

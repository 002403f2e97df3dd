package surface

import "html/template"

var funcs = template.FuncMap{
	"sub":     func(a, b int) int { return a - b },
	"opacity": func(pct int) float64 { return float64(pct) / 100 },
}

var templates = template.Must(template.New("surface").Funcs(funcs).Parse(`
{{define "placeholder"}}<div class="ts-placeholder">Select a comparison target on the timeline.</div>{{end}}

{{define "loading"}}<div class="ts-loading">Rendering comparison…</div>{{end}}

{{define "failed"}}<div class="ts-error">Comparison failed: {{.}}</div>{{end}}

{{define "side-by-side"}}<div class="ts-surface ts-side-by-side" data-mount="{{.MountKey}}">
<figure><figcaption>{{.From.Timestamp}}</figcaption><iframe key="from-{{.MountKey}}" src="{{.From.Src}}" title="{{.From.Timestamp}}"></iframe></figure>
<figure><figcaption>{{.To.Timestamp}}</figcaption><iframe key="to-{{.MountKey}}" src="{{.To.Src}}" title="{{.To.Timestamp}}"></iframe></figure>
</div>{{end}}

{{define "slider-overlay"}}<div class="ts-surface ts-slider" data-mount="{{.MountKey}}" style="position:relative">
<iframe key="from-{{.MountKey}}" src="{{.From.Src}}" title="{{.From.Timestamp}}" style="position:absolute;inset:0;width:100%;height:100%"></iframe>
<iframe key="to-{{.MountKey}}" src="{{.To.Src}}" title="{{.To.Timestamp}}" style="position:absolute;inset:0;width:100%;height:100%;clip-path:inset(0 {{sub 100 .Divider}}% 0 0)"></iframe>
<input type="range" min="0" max="100" value="{{.Divider}}" aria-label="divider">
</div>{{end}}

{{define "cross-fade"}}<div class="ts-surface ts-cross-fade" data-mount="{{.MountKey}}" style="position:relative">
<iframe key="from-{{.MountKey}}" src="{{.From.Src}}" title="{{.From.Timestamp}}" style="position:absolute;inset:0;width:100%;height:100%"></iframe>
<iframe key="to-{{.MountKey}}" src="{{.To.Src}}" title="{{.To.Timestamp}}" style="position:absolute;inset:0;width:100%;height:100%;opacity:{{opacity .Opacity}}"></iframe>
<input type="range" min="0" max="100" value="{{.Opacity}}" aria-label="opacity">
</div>{{end}}

{{define "pixel-diff"}}<div class="ts-surface ts-pixel-diff" data-mount="{{.MountKey}}">
<img src="{{.Image}}" alt="difference between {{.From.Timestamp}} and {{.To.Timestamp}}">
</div>{{end}}

{{define "dom-diff"}}<div class="ts-surface ts-dom-diff" data-mount="{{.MountKey}}">
{{template "dom-side" .Left}}
{{template "dom-side" .Right}}
</div>{{end}}

{{define "dom-side"}}{{if .Loaded}}<iframe sandbox="" srcdoc="{{.Markup}}"></iframe>{{else if .Err}}<div class="ts-error">Content unavailable: {{.Err}}</div>{{else}}<div class="ts-loading">Loading…</div>{{end}}{{end}}
`))

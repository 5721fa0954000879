package livebind

import (
	"html/template"
	"io"
	"sort"
	"strings"
)

// clientConfig tells the browser script which nodes to watch.
type clientConfig struct {
	Token  string              `json:"token"`
	Record string              `json:"record"`
	Events map[string][]string `json:"events"` // node -> DOM event names
	Inline map[string][]string `json:"inline"` // node -> DOM events carrying inline callbacks
	Attrs  map[string][]string `json:"attrs"`  // node -> bound attribute names
}

type pageData struct {
	Title  string
	Token  string
	Class  string
	Style  template.CSS
	Markup template.HTML
	Client clientConfig
}

func newClientConfig(def *Definition, events EventsSpec, recordID, tok string) clientConfig {
	cfg := clientConfig{
		Token:  tok,
		Record: recordID,
		Events: make(map[string][]string, len(events)),
		Inline: make(map[string][]string, len(def.Callbacks)),
		Attrs:  make(map[string][]string, len(def.Attrs)),
	}
	for node, evs := range events {
		cfg.Events[node] = sortedKeys(evs)
	}
	for node, cbs := range def.Callbacks {
		for _, cb := range cbs {
			cfg.Inline[node] = append(cfg.Inline[node], strings.TrimPrefix(cb.ID, "on"))
		}
		sort.Strings(cfg.Inline[node])
	}
	for node, bindings := range def.Attrs {
		for _, b := range bindings {
			cfg.Attrs[node] = append(cfg.Attrs[node], b.Attr)
		}
	}
	return cfg
}

func renderPage(w io.Writer, data pageData) error {
	return pageTemplate.Execute(w, data)
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="livebind-token" content="{{.Token}}">
<title>{{.Title}}</title>
</head>
<body>
<div id="livebind-root"{{with .Class}} class="{{.}}"{{end}}{{with .Style}} style="{{.}}"{{end}}>{{.Markup}}</div>
<script>
(function (cfg) {
  var root = document.getElementById("livebind-root");
  var proto = location.protocol === "https:" ? "wss:" : "ws:";
  var ws = new WebSocket(proto + "//" + location.host + location.pathname + "?token=" + encodeURIComponent(cfg.token));

  function node(name) {
    return document.getElementById(name + "-" + cfg.record);
  }

  function attrs(name, el) {
    var out = {};
    (cfg.attrs[name] || []).forEach(function (attr) {
      if (attr === "children") {
        out[attr] = el.innerHTML;
      } else if (attr === "value" && "value" in el) {
        out[attr] = String(el.value);
      } else if (attr === "checked" && "checked" in el) {
        if (el.checked) out[attr] = "";
      } else if (el.hasAttribute(attr)) {
        out[attr] = el.getAttribute(attr);
      }
    });
    return out;
  }

  function serialize(ev) {
    var data = {};
    ["key", "code", "button", "clientX", "clientY", "altKey", "ctrlKey", "shiftKey", "metaKey"].forEach(function (k) {
      if (ev[k] !== undefined) data[k] = ev[k];
    });
    if (ev.target && "value" in ev.target) data.value = String(ev.target.value);
    return data;
  }

  function send(msg) {
    if (ws.readyState === WebSocket.OPEN) ws.send(JSON.stringify(msg));
  }

  function bind() {
    var seen = {};
    function listen(name, event) {
      var el = node(name);
      if (!el || seen[name + ":" + event]) return;
      seen[name + ":" + event] = true;
      el.addEventListener(event, function (ev) {
        send({type: "event", node: name, event: event, data: serialize(ev), attrs: attrs(name, el)});
      });
    }
    [cfg.events, cfg.inline].forEach(function (spec) {
      Object.keys(spec).forEach(function (name) {
        spec[name].forEach(function (event) { listen(name, event); });
      });
    });
    Object.keys(cfg.attrs).forEach(function (name) {
      var el = node(name);
      if (!el) return;
      new MutationObserver(function () {
        send({type: "attr", node: name, attrs: attrs(name, el)});
      }).observe(el, {attributes: true});
    });
  }

  ws.onmessage = function (msg) {
    var f = JSON.parse(msg.data);
    if (f.type === "render") {
      Object.keys(f.root || {}).forEach(function (k) {
        if (f.root[k] === "") root.removeAttribute(k); else root.setAttribute(k, f.root[k]);
      });
      root.innerHTML = f.html;
      bind();
    } else if (f.type === "event") {
      root.dispatchEvent(new CustomEvent("livebind:event", {detail: f.event}));
    } else if (f.type === "error") {
      console.warn("livebind:", f.message);
    }
  };

  bind();
})({{.Client}});
</script>
</body>
</html>
`))

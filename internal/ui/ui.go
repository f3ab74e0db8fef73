// Package ui serves the browser dashboard for a running keyloop instance.
package ui

import (
	"fmt"
	"html/template"
	"net/http"
	"os/exec"
	"runtime"
)

// Page is the data rendered into the dashboard.
type Page struct {
	Title string
	// NeedsToken makes the page prompt for the API token.
	NeedsToken bool
}

// Handler serves the dashboard at "/". Anything else is a 404.
func Handler(page Page) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, page); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}

// URL returns the local dashboard address for port.
func URL(port int) string {
	return fmt.Sprintf("http://127.0.0.1:%d/", port)
}

// OpenBrowser opens url in the default browser.
func OpenBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open browser: %w", err)
	}
	return nil
}

var tmpl = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <style>
        * { box-sizing: border-box; margin: 0; padding: 0; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            background: linear-gradient(135deg, #1a1a2e 0%, #16213e 100%);
            color: #e2e8f0;
            min-height: 100vh;
            padding: 2rem;
        }
        .container { max-width: 900px; margin: 0 auto; }
        h1 { font-size: 2rem; margin-bottom: 1.5rem; color: #a5b4fc; }
        .card {
            background: rgba(255,255,255,0.05);
            border: 1px solid rgba(255,255,255,0.1);
            border-radius: 16px;
            padding: 1.5rem;
            margin-bottom: 1.5rem;
        }
        .card h2 { font-size: 1.2rem; margin-bottom: 1rem; color: #a5b4fc; }
        .macro {
            display: flex; justify-content: space-between; align-items: center;
            padding: 0.75rem 1rem; margin-bottom: 0.5rem;
            background: rgba(255,255,255,0.03); border-radius: 10px;
        }
        .meta { color: #94a3b8; font-size: 0.85rem; }
        button {
            background: #667eea; color: white; border: none; border-radius: 8px;
            padding: 0.5rem 1rem; cursor: pointer; font-weight: 600;
        }
        button.stop { background: #e53e3e; }
        #log {
            font-family: ui-monospace, Menlo, Consolas, monospace; font-size: 0.85rem;
            height: 240px; overflow-y: auto; white-space: pre-wrap; color: #cbd5e1;
        }
        #status { font-weight: 600; }
    </style>
</head>
<body>
<div class="container">
    <h1>{{.Title}}</h1>
    <div class="card">
        <h2>Status</h2>
        <span id="status">connecting...</span>
        <button class="stop" onclick="stopMacro()" style="float:right">Stop</button>
    </div>
    <div class="card">
        <h2>Macros</h2>
        <div id="macros"></div>
    </div>
    <div class="card">
        <h2>Progress</h2>
        <div id="log"></div>
    </div>
</div>
<script>
const needsToken = {{.NeedsToken}};
let token = localStorage.getItem('keyloop-token') || '';
if (needsToken && !token) {
    token = prompt('API token') || '';
    localStorage.setItem('keyloop-token', token);
}
const headers = token ? { 'Authorization': 'Bearer ' + token } : {};

function log(line) {
    const el = document.getElementById('log');
    el.textContent += line + '\n';
    el.scrollTop = el.scrollHeight;
}

function showStatus(st) {
    let text = st.running ? 'Running ' + st.macro : 'Idle';
    if (!st.running && st.last_error) text += ' (last error: ' + st.last_error + ')';
    document.getElementById('status').textContent = text;
}

async function call(method, path) {
    const resp = await fetch(path, { method, headers });
    const body = await resp.json().catch(() => ({}));
    if (!resp.ok) log('Error: ' + (body.error || resp.statusText));
    return body;
}

async function loadMacros() {
    const list = await call('GET', '/api/macros');
    const root = document.getElementById('macros');
    root.innerHTML = '';
    (list || []).forEach(m => {
        const row = document.createElement('div');
        row.className = 'macro';
        const info = document.createElement('div');
        info.innerHTML = '<div></div><div class="meta"></div>';
        info.children[0].textContent = m.name;
        info.children[1].textContent = (m.built_in ? 'built-in' : 'recorded') + ' · loop ' + m.loop + ' · ' + m.steps + ' steps';
        const btn = document.createElement('button');
        btn.textContent = 'Run';
        btn.onclick = () => call('POST', '/api/run?name=' + encodeURIComponent(m.name)).then(st => st.running !== undefined && showStatus(st));
        row.appendChild(info);
        row.appendChild(btn);
        root.appendChild(row);
    });
}

function stopMacro() {
    call('POST', '/api/stop').then(showStatus);
}

function connect() {
    const proto = location.protocol === 'https:' ? 'wss://' : 'ws://';
    const ws = new WebSocket(proto + location.host + '/ws' + (token ? '?token=' + encodeURIComponent(token) : ''));
    ws.onmessage = ev => {
        const msg = JSON.parse(ev.data);
        if (msg.type === 'status') showStatus(msg.payload);
        if (msg.type === 'progress' && msg.payload.message) log(msg.payload.message);
    };
    ws.onclose = () => {
        document.getElementById('status').textContent = 'disconnected, retrying...';
        setTimeout(connect, 2000);
    };
}

loadMacros();
connect();
</script>
</body>
</html>
`))

// Package autostart registers "keyloop serve" to launch at login.
package autostart

import (
	"bytes"
	"fmt"
	"os"
	"text/template"
)

const label = "keyloop"

// Entry describes the login item.
type Entry struct {
	ExecutablePath string
	Args           []string
}

// Current returns the entry for this executable running args.
func Current(args ...string) (Entry, error) {
	exe, err := os.Executable()
	if err != nil {
		return Entry{}, fmt.Errorf("failed to get executable path: %w", err)
	}
	return Entry{ExecutablePath: exe, Args: args}, nil
}

const macLaunchAgentPlist = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>com.keyloop.serve</string>
    <key>ProgramArguments</key>
    <array>
        <string>{{.ExecutablePath}}</string>
{{- range .Args}}
        <string>{{.}}</string>
{{- end}}
    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <false/>
</dict>
</plist>
`

const xdgDesktopEntry = `[Desktop Entry]
Type=Application
Name=keyloop
Comment=Keyboard macro player
Exec={{quote .ExecutablePath}}{{range .Args}} {{quote .}}{{end}}
Terminal=false
X-GNOME-Autostart-enabled=true
`

var funcs = template.FuncMap{
	"quote": func(s string) string {
		for _, r := range s {
			if r == ' ' || r == '"' || r == '\\' {
				return fmt.Sprintf("%q", s)
			}
		}
		return s
	},
}

func render(tmpl string, e Entry) ([]byte, error) {
	t, err := template.New("autostart").Funcs(funcs).Parse(tmpl)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// commandLine joins the entry for the Windows Run key.
func commandLine(e Entry) string {
	s := `"` + e.ExecutablePath + `"`
	for _, a := range e.Args {
		s += " " + a
	}
	return s
}

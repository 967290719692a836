package protocol

import (
	"bufio"
	"fmt"
	"html/template"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/MrSnakeDoc/npdstracker/internal/domain"
	"github.com/MrSnakeDoc/npdstracker/internal/logger"
	"github.com/MrSnakeDoc/npdstracker/internal/version"
)

var statusTemplate = template.Must(template.New("status").Parse(`<!DOCTYPE html>
<html>
<head>
<title>{{if .TrackerName}}{{.TrackerName}}{{else}}NPDS Tracker{{end}}</title>
<meta http-equiv="refresh" content="{{.Refresh}}; url={{.DocPath}}" />
{{if .Stylesheet}}<link rel="stylesheet" href="{{.Stylesheet}}" type="text/css" media="screen" />
{{end}}</head>
<body>
<h1>{{if .TrackerHost}}<a href="{{.TrackerHost}}">{{end}}{{if .TrackerName}}{{.TrackerName}}{{else}}NPDS Tracker{{end}}{{if .TrackerHost}}</a>{{end}}</h1>
<p>This tracker lives at <a href="{{.URL}}">{{.URL}}</a>. There {{.ServerVerb}} {{.ServerCount}} {{.ServerNoun}} registered.</p>
<table>
<tr>
<th>Status</th>
<th>Server</th>
<th>Last Verified</th>
</tr>
{{range .Rows}}<tr class="{{.Class}}">
<td><strong>{{.Label}}</strong></td>
<td><a href="http://{{.Name}}">{{.Description}}</a></td>
<td>{{.LastValidation}}</td>
</tr>
{{else}}<tr>
<td colspan="3"><em>No devices registered.</em></td>
</tr>
{{end}}</table>
<p>{{if .InProgress}}Validation is in progress.{{else}}<strong>Last validation:</strong> {{.LastValidation}}.{{end}}
Registered servers are checked every {{if ne .ValidateTime 1}}{{.ValidateTime}} minutes{{else}}minute{{end}}.</p>
{{if .Peers}}<p>Records are also shared from:</p>
<ul class="servers">
{{range .Peers}}<li><a href="http://{{.Host}}:{{.Port}}/">{{.Host}}</a></li>
{{end}}</ul>
{{end}}<p>This page has been served {{.Hits}} {{if eq .Hits 1}}time{{else}}times{{end}}. NPDS Tracker Server {{.Version}}</p>
</body>
</html>
`))

type pageRow struct {
	Class          string
	Label          string
	Name           string
	Description    string
	LastValidation string
}

type pageData struct {
	TrackerName    string
	TrackerHost    string
	Stylesheet     string
	Refresh        int
	DocPath        string
	URL            string
	ServerVerb     string
	ServerCount    string
	ServerNoun     string
	Rows           []pageRow
	InProgress     bool
	LastValidation string
	ValidateTime   int
	Peers          []domain.PeerTracker
	Hits           int64
	Version        string
}

func (h *Handler) get(fields []string, s *Session) (int, error) {
	if len(fields) < 2 {
		return 0, domain.ErrBadSyntax
	}
	path := fields[1]
	css := h.state.Info.CSSTemplate

	switch {
	case path == "/":
		return h.statusPage(path, s), nil
	case css != "" && path == "/"+filepath.Base(css) && fileExists(css):
		return h.stylesheet(css, s.Out), nil
	case strings.HasSuffix(path, ".gif"):
		image := filepath.Join(h.state.Info.ImageDir, filepath.Base(path))
		if fileExists(image) {
			return h.image(image, s.Out), nil
		}
	}

	h.logger.Info("file not found", logger.String("path", path))
	writeCode(s.Out, CodeNotFound, "")
	return CodeNotFound, nil
}

func (h *Handler) statusPage(path string, s *Session) int {
	hits := h.state.Hit()
	url := pageURL(hostHeader(s.In), s, path)

	set := h.state.Settings
	refresh := set.ValidateTime() * 60 / 2

	lastModified := h.state.LastCheck()
	if lastModified.IsZero() {
		lastModified = h.now()
	}

	fmt.Fprint(s.Out, "HTTP/1.0 ")
	writeCode(s.Out, CodeOK, "")
	fmt.Fprintf(s.Out, "Refresh: %d; url=%s\r\n", refresh, path)
	fmt.Fprintf(s.Out, "Server: %s\r\n", version.ServerString())
	fmt.Fprintf(s.Out, "Date: %s\r\n", domain.FormatTime(h.now()))
	fmt.Fprintf(s.Out, "Last-Modified: %s\r\n", domain.FormatTime(lastModified))
	fmt.Fprint(s.Out, "Content-type: text/html\r\n\r\n")

	recs := h.state.Registry.Snapshot()
	data := pageData{
		TrackerName:    h.state.Info.TrackerName,
		TrackerHost:    h.state.Info.TrackerHost,
		Refresh:        refresh,
		DocPath:        path,
		URL:            url,
		ServerVerb:     "are",
		ServerCount:    strconv.Itoa(len(recs)),
		ServerNoun:     "web servers",
		Rows:           make([]pageRow, 0, len(recs)),
		InProgress:     h.state.ValidationInProgress(),
		LastValidation: h.state.LastValidation(),
		ValidateTime:   set.ValidateTime(),
		Peers:          h.state.Peers.Snapshot(),
		Hits:           hits,
		Version:        version.Version,
	}
	if css := h.state.Info.CSSTemplate; css != "" {
		data.Stylesheet = filepath.Base(css)
	}
	switch len(recs) {
	case 0:
		data.ServerCount = "no"
	case 1:
		data.ServerVerb = "is"
		data.ServerNoun = "web server"
	}
	for _, r := range recs {
		data.Rows = append(data.Rows, pageRow{
			Class:          rowClass(r.Status),
			Label:          r.Status.String(),
			Name:           r.Name,
			Description:    r.Description,
			LastValidation: r.LastValidation,
		})
	}

	if err := statusTemplate.Execute(s.Out, data); err != nil {
		h.logger.Error("failed to render status page", logger.Error(err))
	}
	fmt.Fprint(s.Out, "\r\n\r\n")
	return CodeOK
}

func rowClass(st domain.Status) string {
	switch {
	case st.Federated() && st.Up():
		return "up-sharing"
	case st.Up():
		return "up"
	default:
		return "down"
	}
}

// hostHeader reads the request headers following a GET line and returns the
// Host value, if any.
func hostHeader(in *bufio.Reader) string {
	host := ""
	for {
		line, err := in.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			return host
		}
		if name, value, ok := strings.Cut(line, ":"); ok && host == "" &&
			strings.EqualFold(strings.TrimSpace(name), "host") {
			host = strings.TrimSpace(value)
		}
		if err != nil {
			return host
		}
	}
}

// pageURL is the address the status page is reachable at.
func pageURL(host string, s *Session, path string) string {
	if host == "" && s.Conn != nil {
		if h, _, err := net.SplitHostPort(s.Conn.LocalAddr().String()); err == nil {
			host = h
		}
	}
	if host == "" {
		host = "localhost"
	}
	if _, _, err := net.SplitHostPort(host); err != nil && s.LocalPort != 0 && s.LocalPort != 80 {
		host = net.JoinHostPort(host, strconv.Itoa(s.LocalPort))
	}
	return "http://" + host + path
}

func (h *Handler) stylesheet(path string, w io.Writer) int {
	data, err := os.ReadFile(path)
	if err != nil {
		h.logger.Error("failed to read stylesheet", logger.String("path", path), logger.Error(err))
		writeCode(w, CodeNotFound, "")
		return CodeNotFound
	}
	modified := h.now()
	if fi, err := os.Stat(path); err == nil {
		modified = fi.ModTime()
	}

	fmt.Fprint(w, "HTTP/1.0 ")
	writeCode(w, CodeOK, "")
	fmt.Fprintf(w, "Server: %s\r\n", version.ServerString())
	fmt.Fprintf(w, "Date: %s\r\n", domain.FormatTime(h.now()))
	fmt.Fprintf(w, "Last-Modified: %s\r\n", domain.FormatTime(modified))
	fmt.Fprint(w, "Content-type: text/css\r\n\r\n")
	_, _ = w.Write(data)
	return CodeOK
}

func (h *Handler) image(path string, w io.Writer) int {
	data, err := os.ReadFile(path)
	if err != nil {
		h.logger.Error("failed to read image", logger.String("path", path), logger.Error(err))
		writeCode(w, CodeNotFound, "")
		return CodeNotFound
	}

	fmt.Fprint(w, "HTTP/1.0 ")
	writeCode(w, CodeOK, "")
	fmt.Fprintf(w, "Server: %s\r\n", version.ServerString())
	fmt.Fprint(w, "Content-type: image/gif\r\n")
	fmt.Fprintf(w, "Content-length: %d\r\n\r\n", len(data))
	_, _ = w.Write(data)
	return CodeOK
}

func fileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}

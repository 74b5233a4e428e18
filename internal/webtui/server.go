package webtui

import (
	"context"
	"errors"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"
)

// ServerConfig describes the board session each browser tab gets.
type ServerConfig struct {
	Addr string

	// Board session settings, handed to the child through its environment.
	APIURL string
	WSURL  string
	Token  string
	Date   string
	View   string

	// Command builds the child process. Defaults to this executable running
	// "board".
	Command func() (*exec.Cmd, error)

	Logger *slog.Logger
}

type Server struct {
	cfg    ServerConfig
	logger *slog.Logger
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, errors.New("webtui: missing addr")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{cfg: cfg, logger: logger}
	if s.cfg.Command == nil {
		s.cfg.Command = s.boardCommand
	}
	return s, nil
}

func (s *Server) Addr() string {
	return strings.TrimSpace(s.cfg.Addr)
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/terminal", http.StatusFound)
	})
	mux.HandleFunc("GET /terminal", s.handleTerminal)
	mux.HandleFunc("GET /ws", s.handleWS)

	return mux
}

// ListenAndServe serves until ctx is canceled. Open sessions are killed on
// shutdown.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("web terminal listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// boardCommand runs this binary's board in the child. Settings travel in
// the environment so the token stays out of the process list.
func (s *Server) boardCommand() (*exec.Cmd, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, err
	}
	args := []string{"board"}
	if d := strings.TrimSpace(s.cfg.Date); d != "" {
		args = append(args, "--date", d)
	}
	if v := strings.TrimSpace(s.cfg.View); v != "" {
		args = append(args, "--view", v)
	}
	cmd := exec.Command(exe, args...)
	cmd.Env = append(os.Environ(),
		"TERM=xterm-256color",
		"COLORTERM=truecolor",
	)
	for k, v := range map[string]string{
		"DISPATCH_API_URL": s.cfg.APIURL,
		"DISPATCH_WS_URL":  s.cfg.WSURL,
		"DISPATCH_TOKEN":   s.cfg.Token,
	} {
		if strings.TrimSpace(v) != "" {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}
	return cmd, nil
}

type terminalVM struct {
	Title  string
	APIURL string
}

func (s *Server) handleTerminal(w http.ResponseWriter, r *http.Request) {
	vm := terminalVM{
		Title:  "Dispatch board",
		APIURL: strings.TrimSpace(s.cfg.APIURL),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := terminalTemplate.Execute(w, vm); err != nil {
		s.logger.Warn("rendering terminal page", "error", err)
	}
}

var terminalTemplate = template.Must(template.New("terminal").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/@xterm/xterm@5.5.0/css/xterm.css">
<script src="https://cdn.jsdelivr.net/npm/@xterm/xterm@5.5.0/lib/xterm.js"></script>
<script src="https://cdn.jsdelivr.net/npm/@xterm/addon-fit@0.10.0/lib/addon-fit.js"></script>
<style>
html, body { height: 100%; margin: 0; background: #111; }
#term { position: absolute; inset: 0; padding: 6px; }
</style>
</head>
<body data-api="{{.APIURL}}">
<div id="term"></div>
<script>
const term = new Terminal({ cursorBlink: true, fontSize: 14 });
const fit = new FitAddon.FitAddon();
term.loadAddon(fit);
term.open(document.getElementById("term"));
fit.fit();

const proto = location.protocol === "https:" ? "wss:" : "ws:";
const ws = new WebSocket(proto + "//" + location.host + "/ws");
ws.binaryType = "arraybuffer";
const resize = () => {
  fit.fit();
  if (ws.readyState === WebSocket.OPEN) {
    ws.send(JSON.stringify({ type: "resize", cols: term.cols, rows: term.rows }));
  }
};
ws.onopen = resize;
ws.onmessage = (ev) => term.write(typeof ev.data === "string" ? ev.data : new Uint8Array(ev.data));
ws.onclose = () => term.write("\r\n[session ended]\r\n");
term.onData((d) => ws.readyState === WebSocket.OPEN && ws.send(d));
window.addEventListener("resize", resize);
</script>
</body>
</html>
`))

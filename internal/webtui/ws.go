package webtui

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/creack/pty"
	"github.com/gorilla/websocket"
)

type wsMsg struct {
	Type string `json:"type"`
	Cols int    `json:"cols"`
	Rows int    `json:"rows"`
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  32 * 1024,
	WriteBufferSize: 32 * 1024,
	CheckOrigin:     sameOrigin,
}

func sameOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	host := strings.TrimSpace(r.Host)
	return strings.HasSuffix(origin, "://"+host)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ptmx, cmd, cleanup, err := s.startPTYSession()
	if err != nil {
		s.logger.Warn("starting board session", "error", err)
		_ = conn.WriteMessage(websocket.TextMessage, []byte("failed to start session: "+err.Error()+"\r\n"))
		return
	}
	defer cleanup()
	s.logger.Info("board session started", "pid", cmd.Process.Pid, "remote", r.RemoteAddr)

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		errCh <- pumpPTYToWS(ctx, ptmx, conn)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		errCh <- pumpWSToPTY(ctx, conn, ptmx)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			s.logger.Debug("board session pump stopped", "error", err)
		}
	}
	cancel()

	// Unblock both pumps: the child exits, the pty read fails, the socket
	// read fails on close.
	_ = cmd.Process.Kill()
	_ = ptmx.Close()
	_ = conn.Close()

	wg.Wait()
	s.logger.Info("board session ended", "pid", cmd.Process.Pid)
}

func (s *Server) startPTYSession() (*os.File, *exec.Cmd, func(), error) {
	cmd, err := s.cfg.Command()
	if err != nil {
		return nil, nil, nil, err
	}

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: 120, Rows: 40})
	if err != nil {
		return nil, nil, nil, err
	}

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			_ = ptmx.Close()
			_ = cmd.Process.Kill()
			_, _ = cmd.Process.Wait()
		})
	}

	return ptmx, cmd, cleanup, nil
}

func pumpPTYToWS(ctx context.Context, ptmx *os.File, conn *websocket.Conn) error {
	buf := make([]byte, 32*1024)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		n, err := ptmx.Read(buf)
		if n > 0 {
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if werr := conn.WriteMessage(websocket.BinaryMessage, buf[:n]); werr != nil {
				return werr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				return nil
			}
			return err
		}
	}
}

func pumpWSToPTY(ctx context.Context, conn *websocket.Conn, ptmx *os.File) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		// Control messages are JSON text; keystrokes are plain text or binary.
		if mt == websocket.TextMessage && len(data) > 0 && data[0] == '{' {
			var m wsMsg
			if jerr := json.Unmarshal(data, &m); jerr == nil && m.Type != "" {
				if strings.EqualFold(strings.TrimSpace(m.Type), "resize") && m.Cols > 0 && m.Rows > 0 {
					_ = pty.Setsize(ptmx, &pty.Winsize{Cols: uint16(m.Cols), Rows: uint16(m.Rows)})
				}
				continue
			}
		}

		if len(data) == 0 {
			continue
		}
		if _, err := ptmx.Write(data); err != nil {
			return err
		}
	}
}

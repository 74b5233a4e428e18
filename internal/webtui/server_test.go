package webtui

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTerminalPage(t *testing.T) {
	srv, err := NewServer(ServerConfig{Addr: "127.0.0.1:0", APIURL: "http://127.0.0.1:8787/api"})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
	resp, err := client.Get(ts.URL + "/")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/terminal", resp.Header.Get("Location"))

	resp, err = http.Get(ts.URL + "/terminal")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	page := string(body)
	assert.Contains(t, page, "<title>Dispatch board</title>")
	assert.Contains(t, page, "xterm.js")
	assert.Contains(t, page, `"/ws"`)
}

func TestNewServer_RequiresAddr(t *testing.T) {
	_, err := NewServer(ServerConfig{})
	require.Error(t, err)
}

func TestSameOrigin(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://127.0.0.1:9000/ws", nil)
	assert.True(t, sameOrigin(r))

	r.Header.Set("Origin", "http://127.0.0.1:9000")
	assert.True(t, sameOrigin(r))

	r.Header.Set("Origin", "http://evil.example")
	assert.False(t, sameOrigin(r))

	r.Header.Set("Origin", "http://127.0.0.1:9000.evil.example")
	assert.False(t, sameOrigin(r))
}

func TestBoardCommand_PassesSettingsThroughEnv(t *testing.T) {
	srv, err := NewServer(ServerConfig{
		Addr:   ":0",
		APIURL: "http://backend:8787/api",
		Token:  "s3cret",
		Date:   "2026-03-10",
		View:   "week",
	})
	require.NoError(t, err)

	cmd, err := srv.boardCommand()
	require.NoError(t, err)
	assert.Equal(t, []string{"board", "--date", "2026-03-10", "--view", "week"}, cmd.Args[1:])
	assert.Contains(t, cmd.Env, "DISPATCH_API_URL=http://backend:8787/api")
	assert.Contains(t, cmd.Env, "DISPATCH_TOKEN=s3cret")
	assert.Contains(t, cmd.Env, "TERM=xterm-256color")
	for _, a := range cmd.Args {
		assert.NotContains(t, a, "s3cret")
	}
}

func TestSession_RelaysKeystrokesAndOutput(t *testing.T) {
	catPath, err := exec.LookPath("cat")
	if err != nil {
		t.Skip("cat not available")
	}
	srv, err := NewServer(ServerConfig{
		Addr:    ":0",
		Command: func() (*exec.Cmd, error) { return exec.Command(catPath), nil },
	})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"resize","cols":100,"rows":30}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping\n")))

	var out strings.Builder
	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(out.String(), "ping") {
		require.NoError(t, conn.SetReadDeadline(deadline))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err, "output so far: %q", out.String())
		out.Write(data)
	}
	assert.NotContains(t, out.String(), "resize", "control frames must not reach the terminal")
}

package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"dispatch-cli/internal/cli"
)

func isWorkOrderID(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "wo-") && len(s) > len("wo-")
}

// rewriteDirectLookupArgs makes `dispatch <work-order-id>` behave like
// `dispatch show <work-order-id>`. Cobra treats the first non-flag token as a
// subcommand, so argv is rewritten before parsing. Persistent flags may come
// first, so the first positional token is what counts.
func rewriteDirectLookupArgs(argv []string) []string {
	if len(argv) < 2 {
		return argv
	}

	valueFlags := map[string]bool{
		"--config":     true,
		"--api-url":    true,
		"--ws-url":     true,
		"--token":      true,
		"--format":     true,
		"--log-level":  true,
		"--log-format": true,
		"--log-file":   true,
	}

	insertShow := func(i int) []string {
		out := make([]string, 0, len(argv)+1)
		out = append(out, argv[:i]...)
		out = append(out, "show")
		return append(out, argv[i:]...)
	}

	for i := 1; i < len(argv); i++ {
		a := strings.TrimSpace(argv[i])
		if a == "" {
			continue
		}
		if a == "--" {
			if i+1 < len(argv) && isWorkOrderID(argv[i+1]) {
				return insertShow(i + 1)
			}
			return argv
		}
		if strings.HasPrefix(a, "-") {
			// Unknown flags are skipped without consuming a value.
			if !strings.Contains(a, "=") && valueFlags[a] {
				i++
			}
			continue
		}
		if isWorkOrderID(a) {
			return insertShow(i)
		}
		return argv
	}
	return argv
}

func main() {
	os.Args = rewriteDirectLookupArgs(os.Args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := cli.NewRootCmd()
	if err := cmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

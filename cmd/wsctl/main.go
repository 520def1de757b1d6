// wsctl issues one message to the dashboard backend and prints the reply.
//
//	go run ./cmd/wsctl -type get_lpc -data '{"ski":"AB:CD"}'
//	go run ./cmd/wsctl -type stop_simulation -send
//	go run ./cmd/wsctl -watch 30s
//
// Exit status is 2 when the request timed out and 3 when the backend
// answered with an error.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rickgao/cem-dashboard/internal/config"
	"github.com/rickgao/cem-dashboard/internal/connection"
	"github.com/rickgao/cem-dashboard/internal/logging"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitTimeout = 2
	exitRemote  = 3
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to config file (built-in defaults when empty)")
	url := flag.String("url", "", "backend WebSocket URL (overrides config)")
	msgType := flag.String("type", "", "message type to send")
	data := flag.String("data", "", "JSON payload")
	send := flag.Bool("send", false, "fire and forget, do not wait for a reply")
	timeout := flag.Duration("timeout", 0, "request timeout (config default when zero)")
	watch := flag.Duration("watch", 0, "print every inbound message for this long")
	verbose := flag.Bool("verbose", false, "debug logging to stderr")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadAndValidate(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			return exitFailure
		}
	}
	if *url != "" {
		cfg.Backend.WSURL = *url
	}

	var logOut io.Writer = io.Discard
	if *verbose {
		logOut = os.Stderr
		cfg.Logging.Level = "debug"
	}
	logger := logging.New(cfg.Logging, logOut)

	payload, err := parsePayload(*data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -data: %v\n", err)
		return exitFailure
	}
	if *msgType == "" && *watch == 0 {
		fmt.Fprintln(os.Stderr, "one of -type or -watch is required")
		flag.Usage()
		return exitFailure
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	connCfg := connection.DefaultConfig()
	connCfg.URL = cfg.Backend.WSURL
	connCfg.HandshakeTimeout = cfg.Connection.HandshakeTimeout
	connCfg.RequestTimeout = cfg.Connection.RequestTimeout
	connCfg.CorrelationIDs = cfg.Connection.CorrelationIDs
	if *timeout > 0 {
		connCfg.RequestTimeout = *timeout
	}

	client := connection.NewClient(connCfg, logger)
	defer client.Close()

	if *watch > 0 {
		client.AddListener(envelopePrinter{out: os.Stdout})
	}

	if err := client.Connect(); err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		return exitFailure
	}

	openCtx, openCancel := context.WithTimeout(ctx, connCfg.HandshakeTimeout)
	err = client.WaitForState(openCtx, connection.StateOpen)
	openCancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "backend %s unreachable: %v\n", connCfg.URL, err)
		return exitFailure
	}

	code := exitOK
	if *msgType != "" {
		code = issue(ctx, client, *msgType, payload, *send)
	}

	if *watch > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(*watch):
		}
	}
	return code
}

func issue(ctx context.Context, client *connection.Client, msgType string, payload any, send bool) int {
	if send {
		if err := client.Send(msgType, payload); err != nil {
			fmt.Fprintf(os.Stderr, "send %s: %v\n", msgType, err)
			return exitFailure
		}
		return exitOK
	}

	resp, err := client.Request(ctx, msgType, payload)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitCode(err)
	}

	printJSON(os.Stdout, resp)
	return exitOK
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, connection.ErrTimeout):
		return exitTimeout
	case errors.Is(err, connection.ErrRemote):
		return exitRemote
	default:
		return exitFailure
	}
}

// parsePayload validates s as JSON. An empty string means no payload.
func parsePayload(s string) (any, error) {
	if s == "" {
		return nil, nil
	}
	if !json.Valid([]byte(s)) {
		return nil, errors.New("not valid JSON")
	}
	return json.RawMessage(s), nil
}

func printJSON(w io.Writer, data json.RawMessage) {
	if len(data) == 0 {
		fmt.Fprintln(w, "null")
		return
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		w.Write(data)
		fmt.Fprintln(w)
		return
	}
	buf.WriteByte('\n')
	buf.WriteTo(w)
}

// envelopePrinter writes each inbound envelope as one JSON line.
type envelopePrinter struct {
	out io.Writer
}

func (p envelopePrinter) HandleMessage(msgType string, data json.RawMessage) {
	p.HandleEnvelope(connection.Envelope{Type: msgType, Data: data})
}

func (p envelopePrinter) HandleEnvelope(env connection.Envelope) {
	line, err := json.Marshal(struct {
		At   string          `json:"at"`
		Type string          `json:"type"`
		ID   string          `json:"id,omitempty"`
		Data json.RawMessage `json:"data,omitempty"`
	}{
		At:   time.Now().Format(time.RFC3339Nano),
		Type: env.Type,
		ID:   env.ID,
		Data: env.Data,
	})
	if err != nil {
		slog.Default().Warn("print envelope", "error", err)
		return
	}
	fmt.Fprintf(p.out, "%s\n", line)
}

// Package main is the entry point for the lspbroker language server broker.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lspbroker/lspbroker/internal/broker"
	"github.com/lspbroker/lspbroker/internal/cliconfig"
	"github.com/lspbroker/lspbroker/internal/logging"
	"github.com/lspbroker/lspbroker/internal/lsp"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	v := viper.New()
	rootCmd := &cobra.Command{
		Use:     "lspbroker",
		Short:   "JSON-RPC broker between an editor and one or more language servers",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), v)
		},
	}
	cliconfig.BindFlags(rootCmd, v)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		cancel()
	}()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "lspbroker: %v\n", err)
		return 1
	}
	return 0
}

func serve(ctx context.Context, v *viper.Viper) error {
	cfg, err := cliconfig.Load(v)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logOutput := os.Stderr
	var logFile *os.File
	if cfg.LoggingFile != "" {
		f, err := os.OpenFile(cfg.LoggingFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		logFile = f
		defer logFile.Close()
	}

	logger := logging.New(logging.Config{
		Level:  logging.ParseLevel(cfg.LoggingLevel),
		Output: logOutputOrFile(logOutput, logFile),
		Prefix: "lspbroker",
	})
	logging.SetDefault(logger)

	b := broker.New(cfg, logger)

	conn, cleanup, err := editorConnection(v)
	if err != nil {
		return err
	}
	defer cleanup()

	codec := lsp.NewCodec(lsp.FramingBlankLine, conn, conn)
	editor := b.NewEditorClientFor(codec)

	logger.Info("lspbroker %s starting", version)
	return b.Serve(ctx, editor)
}

func logOutputOrFile(stderr *os.File, file *os.File) *os.File {
	if file != nil {
		return file
	}
	return stderr
}

// editorConn joins stdin and stdout into the duplex connection the editor
// peer reads/writes; an accepted TCP connection is used as-is instead.
type editorConn struct {
	r *os.File
	w *os.File
}

func (c editorConn) Read(p []byte) (int, error)  { return c.r.Read(p) }
func (c editorConn) Write(p []byte) (int, error) { return c.w.Write(p) }

func editorConnection(v *viper.Viper) (interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
}, func(), error) {
	addr := v.GetString("listen")
	if addr == "" {
		return editorConn{r: os.Stdin, w: os.Stdout}, func() {}, nil
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	conn, err := ln.Accept()
	if err != nil {
		ln.Close()
		return nil, nil, fmt.Errorf("accept on %s: %w", addr, err)
	}
	return conn, func() { conn.Close(); ln.Close() }, nil
}

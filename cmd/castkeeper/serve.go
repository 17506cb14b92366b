package main

import (
	"fmt"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"

	"github.com/castkeeper/castkeeper/internal/logging"
	castserver "github.com/castkeeper/castkeeper/internal/server"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server (stdio transport)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			// stdout carries the MCP transport; logs go to stderr only.
			logger, closeLog, err := logging.New(logging.Options{
				Level:  cfg.Logging.Level,
				Format: cfg.Logging.Format,
				Dir:    cfg.Logging.Dir,
			}, os.Stderr)
			if err != nil {
				return fmt.Errorf("creating logger: %w", err)
			}
			defer func() { _ = closeLog() }()

			logger.WithFields(logrus.Fields{
				"version": castserver.Version,
				"config":  ctx.configPath,
				"found":   ctx.configSeen,
			}).Info("starting castkeeper")

			s, cleanup, err := castserver.New(cfg, logger)
			if err != nil {
				return fmt.Errorf("creating server: %w", err)
			}
			defer cleanup()

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errWriter := logger.WriterLevel(logrus.ErrorLevel)
			defer errWriter.Close()

			stdio := server.NewStdioServer(s)
			stdio.SetErrorLogger(stdlog.New(errWriter, "", 0))

			err = stdio.Listen(runCtx, os.Stdin, os.Stdout)
			if runCtx.Err() != nil {
				logger.Info("shutting down")
				return nil
			}
			return err
		},
	}
}

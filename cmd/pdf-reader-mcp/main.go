// Command pdf-reader-mcp is an MCP (Model Context Protocol) server that lets
// AI assistants read text and metadata from PDF files.
//
// # Installation
//
//	go install github.com/lvillar/pdfreader-mcp/cmd/pdf-reader-mcp@latest
//
// # Configuration for Claude Desktop
//
// Add to ~/.config/claude/claude_desktop_config.json:
//
//	{
//	  "mcpServers": {
//	    "pdf-reader": {
//	      "command": "pdf-reader-mcp",
//	      "args": ["-root", "/home/me/Documents"]
//	    }
//	  }
//	}
//
// # Available Tools
//
//   - extract_pdf_text: Extract text content from a PDF file
//   - extract_pdf_metadata: Extract metadata information from a PDF file
//
// Paths are resolved against the root directory (-root, PDF_READER_ROOT,
// default the working directory) and may not leave it unless
// -allow-absolute is set and the path is given in absolute form.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/lvillar/pdfreader-mcp/internal/config"
	"github.com/lvillar/pdfreader-mcp/internal/telemetry"
	"github.com/lvillar/pdfreader-mcp/mcp"
)

var version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "pdf-reader-mcp: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	cfg, err := config.Parse(flag.NewFlagSet("pdf-reader-mcp", flag.ContinueOnError), args)
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}
	log, err := cfg.NewLogger()
	if err != nil {
		return err
	}

	shutdown, err := telemetry.Setup(ctx, mcp.ServerName, version, cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("otel shutdown")
		}
	}()

	policy, err := mcp.NewPathPolicy(cfg.Root, cfg.AllowAbsolute)
	if err != nil {
		return err
	}
	ex := mcp.NewExtractor(policy, mcp.WithLogger(log))
	server := mcp.NewServer(mcp.NewRegistry(ex), version)

	log.WithFields(logrus.Fields{
		"root":           policy.Root,
		"allow_absolute": policy.AllowAbsolute,
		"version":        version,
	}).Debug("configured")

	if cfg.Transport == config.TransportHTTP {
		return server.RunHTTP(ctx, cfg.HTTPAddr)
	}
	log.Info("PDF Reader MCP server running on stdio")
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}

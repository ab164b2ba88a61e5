// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/poiesic/docchat"
	"github.com/poiesic/docchat/chat"
	"github.com/poiesic/docchat/core"
	"github.com/poiesic/docchat/tools"
	"github.com/urfave/cli/v2"
)

func main() {
	// Provider keys usually live in .env during development.
	_ = godotenv.Load()

	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "docchat",
		Usage: "Index documents and chat with them",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to TOML configuration file",
				EnvVars: []string{"DOCCHAT_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory (overrides storage.path)",
				EnvVars: []string{"DOCCHAT_DB"},
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "upload",
				Usage:     "Upload documents and index them",
				ArgsUsage: "FILE...",
				Action:    uploadCommand,
			},
			{
				Name:   "list",
				Usage:  "List documents and their indexing status",
				Action: listCommand,
			},
			{
				Name:      "show",
				Usage:     "Show a document's details and summary",
				ArgsUsage: "DOCUMENT_ID",
				Action:    showCommand,
			},
			{
				Name:      "reindex",
				Usage:     "Index a failed document again",
				ArgsUsage: "DOCUMENT_ID",
				Action:    reindexCommand,
			},
			{
				Name:      "delete",
				Usage:     "Delete a document with its chunks and sessions",
				ArgsUsage: "DOCUMENT_ID",
				Action:    deleteCommand,
			},
			{
				Name:   "reembed",
				Usage:  "Rebuild the vectors of all completed documents after changing the embedding model",
				Action: reembedCommand,
			},
			{
				Name:      "sessions",
				Usage:     "List the chat sessions of a document",
				ArgsUsage: "DOCUMENT_ID",
				Action:    sessionsCommand,
			},
			{
				Name:      "history",
				Usage:     "Print the messages of a session",
				ArgsUsage: "SESSION_ID",
				Action:    historyCommand,
			},
			{
				Name:      "chat",
				Usage:     "Ask a question about a document",
				ArgsUsage: "MESSAGE...",
				Action:    chatCommand,
				Flags: []cli.Flag{
					&cli.Uint64Flag{
						Name:     "document",
						Usage:    "Document to chat with",
						Required: true,
					},
					&cli.Uint64Flag{
						Name:  "session",
						Usage: "Session to continue (a new one is created when omitted)",
					},
					&cli.StringFlag{
						Name:  "provider",
						Usage: "Provider ID (defaults to the first configured provider)",
					},
					&cli.StringFlag{
						Name:  "model",
						Usage: "Chat model (defaults to the provider's chat model)",
					},
					&cli.StringSliceFlag{
						Name:  "tool",
						Usage: "Tool to enable, repeatable (defaults to the tools enabled by default)",
					},
					&cli.IntFlag{
						Name:  "top-k",
						Usage: "Number of chunks to retrieve",
					},
				},
			},
			{
				Name:   "tools",
				Usage:  "List the available tools",
				Action: toolsCommand,
			},
		},
	}
}

func setupLogger(c *cli.Context) error {
	level := c.String("log-level")
	var logLevel slog.Level

	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn", "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", level)
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
	return nil
}

// openService loads the configuration and opens the document store.
func openService(c *cli.Context) (*docchat.Service, error) {
	cfg, err := LoadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}
	if db := c.String("db"); db != "" {
		cfg.Storage.Path = db
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts, err := cfg.serviceOptions()
	if err != nil {
		return nil, err
	}
	providers, err := cfg.buildProviders()
	if err != nil {
		return nil, err
	}
	opts = append(opts, docchat.WithProviders(providers...))

	svc, err := docchat.Open(cfg.Storage.Path, opts...)
	if err != nil {
		for _, p := range providers {
			p.Close()
		}
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return svc, nil
}

// idArg parses the positional argument at index i.
func idArg(c *cli.Context, i int, name string) (core.ID, error) {
	arg := c.Args().Get(i)
	if arg == "" {
		return 0, fmt.Errorf("%s is required", name)
	}
	id, err := core.ParseID(arg)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, arg, err)
	}
	return id, nil
}

func uploadCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("at least one file is required")
	}
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx := c.Context
	var uploaded []core.ID
	for _, path := range c.Args().Slice() {
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		doc, err := svc.UploadDocument(ctx, filepath.Base(path), raw)
		if err != nil {
			return fmt.Errorf("failed to upload %s: %w", path, err)
		}
		uploaded = append(uploaded, doc.ID)
	}

	// Closing the service cancels running indexing, so wait it out here.
	svc.Wait()

	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATUS\tCHUNKS\tERROR")
	for _, id := range uploaded {
		doc, err := svc.GetDocument(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n", doc.ID, doc.Name, doc.Status, doc.ChunkCount, doc.Error)
	}
	return w.Flush()
}

func listCommand(c *cli.Context) error {
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	docs, err := svc.ListDocuments(c.Context)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tSIZE\tSTATUS\tCHUNKS\tUPDATED")
	for _, doc := range docs {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%d\t%s\n",
			doc.ID, doc.Name, doc.FileType, doc.Size, doc.Status, doc.ChunkCount,
			doc.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func showCommand(c *cli.Context) error {
	id, err := idArg(c, 0, "document id")
	if err != nil {
		return err
	}
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	doc, err := svc.GetDocument(c.Context, id)
	if err != nil {
		return err
	}
	out := c.App.Writer
	fmt.Fprintf(out, "ID:       %d\n", doc.ID)
	fmt.Fprintf(out, "Name:     %s\n", doc.Name)
	fmt.Fprintf(out, "Type:     %s\n", doc.FileType)
	fmt.Fprintf(out, "Size:     %d\n", doc.Size)
	fmt.Fprintf(out, "Hash:     %s\n", doc.ContentHash)
	fmt.Fprintf(out, "Status:   %s\n", doc.Status)
	fmt.Fprintf(out, "Chunks:   %d\n", doc.ChunkCount)
	if doc.Error != "" {
		fmt.Fprintf(out, "Error:    %s\n", doc.Error)
	}
	if doc.Summary != "" {
		fmt.Fprintf(out, "\n%s\n", doc.Summary)
	}
	return nil
}

func reindexCommand(c *cli.Context) error {
	id, err := idArg(c, 0, "document id")
	if err != nil {
		return err
	}
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := svc.Reindex(c.Context, id); err != nil {
		return err
	}
	svc.Wait()

	doc, err := svc.GetDocument(c.Context, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "document %d is %s\n", doc.ID, doc.Status)
	if doc.Status == core.StatusFailed {
		return fmt.Errorf("indexing failed: %s", doc.Error)
	}
	return nil
}

func deleteCommand(c *cli.Context) error {
	id, err := idArg(c, 0, "document id")
	if err != nil {
		return err
	}
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := svc.DeleteDocument(c.Context, id); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "deleted document %d\n", id)
	return nil
}

func reembedCommand(c *cli.Context) error {
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := svc.Reembed(ctx, c.App.ErrWriter)
	if err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	for id, cause := range report.Failed {
		fmt.Fprintf(c.App.ErrWriter, "document %d: %v\n", id, cause)
	}
	if len(report.Failed) > 0 {
		return fmt.Errorf("%d documents could not be re-embedded", len(report.Failed))
	}
	return nil
}

func sessionsCommand(c *cli.Context) error {
	id, err := idArg(c, 0, "document id")
	if err != nil {
		return err
	}
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	sessions, err := svc.ListSessions(c.Context, id)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDOCUMENT\tCREATED")
	for _, s := range sessions {
		fmt.Fprintf(w, "%d\t%d\t%s\n", s.ID, s.DocumentID, s.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func historyCommand(c *cli.Context) error {
	id, err := idArg(c, 0, "session id")
	if err != nil {
		return err
	}
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	messages, err := svc.ListMessages(c.Context, id)
	if err != nil {
		return err
	}
	for _, msg := range messages {
		fmt.Fprintf(c.App.Writer, "[%d] %s", msg.Sequence, msg.Role)
		if msg.Role == core.RoleAgent {
			fmt.Fprintf(c.App.Writer, " (%s/%s)", msg.ProviderID, msg.ModelName)
		}
		fmt.Fprintf(c.App.Writer, ": %s\n", msg.Content)
	}
	return nil
}

func chatCommand(c *cli.Context) error {
	message := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if message == "" {
		return errors.New("a message is required")
	}
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	documentID := core.ID(c.Uint64("document"))
	sessionID := core.ID(c.Uint64("session"))
	if sessionID == 0 {
		session, err := svc.CreateSession(ctx, documentID)
		if err != nil {
			return err
		}
		sessionID = session.ID
		fmt.Fprintf(c.App.ErrWriter, "session %d\n", sessionID)
	}

	var toolIDs []tools.ID
	for _, id := range c.StringSlice("tool") {
		toolIDs = append(toolIDs, tools.ID(id))
	}

	events, err := svc.StreamReply(ctx, chat.Request{
		SessionID:  sessionID,
		DocumentID: documentID,
		Message:    message,
		ProviderID: c.String("provider"),
		ModelName:  c.String("model"),
		ToolIDs:    toolIDs,
		TopK:       c.Int("top-k"),
	})
	if err != nil {
		return err
	}
	return printReply(c.App.Writer, events)
}

// printReply writes streamed fragments as they arrive.
func printReply(out io.Writer, events <-chan chat.Event) error {
	var turnErr error
	for ev := range events {
		switch ev.Kind {
		case chat.EventFragment:
			fmt.Fprint(out, ev.Content)
		case chat.EventDone:
			fmt.Fprintln(out)
		case chat.EventError:
			turnErr = ev.Err
		}
	}
	if turnErr != nil {
		if errors.Is(turnErr, context.Canceled) {
			return errors.New("reply cancelled")
		}
		return turnErr
	}
	return nil
}

func toolsCommand(c *cli.Context) error {
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tDEFAULT\tDESCRIPTION")
	for _, t := range svc.Tools() {
		fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", t.ID(), t.Title(), t.EnabledByDefault(), t.Description())
	}
	return w.Flush()
}

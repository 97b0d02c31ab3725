package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/xmledit/internal"
	"github.com/starford/xmledit/internal/catalog"
	"github.com/starford/xmledit/internal/markup"
	"github.com/starford/xmledit/internal/storage"
	"github.com/starford/xmledit/internal/xmldoc"
	pkgconfig "github.com/starford/xmledit/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	found, err := pkgconfig.LoadOptional(configPath, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if !found {
		slog.Warn("config file not found, using defaults", slog.String("path", configPath))
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	// stdout carries the MCP protocol.
	if err := internal.RunMCP(ctx, internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr)); err != nil {
		return fmt.Errorf("mcp run error: %w", err)
	}
	return nil
}

func readDocument(cmd *cli.Command) (string, error) {
	if cmd.Args().Len() != 1 {
		return "", fmt.Errorf("expected exactly one file argument")
	}
	data, err := os.ReadFile(cmd.Args().First())
	if err != nil {
		return "", err
	}
	return xmldoc.Decode(data)
}

func validate(_ context.Context, cmd *cli.Command) error {
	doc, err := readDocument(cmd)
	if err != nil {
		return err
	}
	v := xmldoc.Validate(doc)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	if !v.Valid {
		return cli.Exit("", 2)
	}
	return nil
}

func scan(_ context.Context, cmd *cli.Command) error {
	dir := cmd.Args().First()
	if dir == "" {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		dir = cfg.Samples.Path
	}
	store, err := storage.NewFS(dir)
	if err != nil {
		return err
	}
	list, err := catalog.Scan(store, slog.Default())
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(list)
}

func transcode(_ context.Context, cmd *cli.Command) error {
	doc, err := readDocument(cmd)
	if err != nil {
		return err
	}
	tc := markup.New(markup.WithMode(markup.Mode(cmd.String("mode"))))

	var res markup.Result
	switch cmd.String("to") {
	case "markup":
		res = tc.XMLToMarkup(doc)
	case "xml":
		res = tc.MarkupToXML(doc)
	default:
		return fmt.Errorf("--to must be markup or xml, got %q", cmd.String("to"))
	}
	fmt.Fprintln(os.Stdout, res.Output)
	fmt.Fprintf(os.Stderr, "fidelity: %s\n", res.Fidelity)
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:   "xmledit",
		Usage:  "Backend for editing structured XML documents through a rich-text editor",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API (default)",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the MCP tools over stdio",
				Action: serveMCP,
			},
			{
				Name:      "validate",
				Usage:     "Check a document for well-formedness",
				ArgsUsage: "<file>",
				Action:    validate,
			},
			{
				Name:      "scan",
				Usage:     "Print the document index of a samples directory",
				ArgsUsage: "[dir]",
				Action:    scan,
			},
			{
				Name:      "transcode",
				Usage:     "Convert a document between XML and editor markup",
				ArgsUsage: "<file>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "to", Value: "markup", Usage: "Target format: markup or xml"},
					&cli.StringFlag{Name: "mode", Value: string(markup.ModeTree), Usage: "Transcoder mode: tree or legacy"},
				},
				Action: transcode,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

package mcpcmder

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/foodlens/pkg/analysis"
	"github.com/papercomputeco/foodlens/pkg/config"
	"github.com/papercomputeco/foodlens/pkg/logger"
	"github.com/papercomputeco/foodlens/pkg/version"
	"github.com/papercomputeco/foodlens/relay"
)

const mcpLongDesc string = `Serve the ingredient analyzer as an MCP tool over stdio.

The "analyze_ingredients" tool takes an ingredient list, sends it to the
configured upstream model with the active prompt revision and returns the
verdict. Configuration is read exactly as "foodlens serve" reads it.
Logs go to stderr since stdout carries the protocol.

Example MCP client entry:
  {"command": "foodlens", "args": ["mcp", "--config", "foodlens.toml"]}`

const mcpShortDesc string = "Serve the analyzer over MCP (stdio)"

const toolName = "analyze_ingredients"

type mcpCommander struct {
	configPath string
	upstream   string
	revision   string
	debug      bool
}

type analyzeInput struct {
	Ingredients string `json:"ingredients" jsonschema:"the ingredient list printed on a food label"`
}

type analyzeOutput struct {
	Verdict  string `json:"verdict" jsonschema:"the model's assessment of the ingredients"`
	Revision string `json:"revision" jsonschema:"prompt revision used for the analysis"`
	Cached   bool   `json:"cached" jsonschema:"whether a recorded verdict was reused"`
	Record   string `json:"record,omitempty" jsonschema:"hash of the recorded verdict"`
}

func NewMCPCmd() *cobra.Command {
	cmder := &mcpCommander{}

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: mcpShortDesc,
		Long:  mcpLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context(), cmd)
		},
	}

	cmd.Flags().StringVarP(&cmder.configPath, "config", "c", "", "Path to a TOML config file")
	cmd.Flags().StringVarP(&cmder.upstream, "upstream", "u", "", "Upstream language model API URL")
	cmd.Flags().StringVarP(&cmder.revision, "revision", "r", "", "Prompt revision")
	cmd.Flags().BoolVarP(&cmder.debug, "debug", "d", false, "Enable debug logging")

	return cmd
}

func (c *mcpCommander) run(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.upstream != "" {
		cfg.Upstream.URL = c.upstream
	}
	if c.revision != "" {
		cfg.Prompt.Revision = c.revision
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log := logger.New(logger.Options{
		Debug:  c.debug || cfg.Debug,
		JSON:   cfg.LogFormat == "json",
		Output: os.Stderr,
	})
	defer func() { _ = log.Sync() }()

	analyzer, storer, err := relay.NewAnalyzer(cfg, nil, log)
	if err != nil {
		return err
	}
	if storer != nil {
		defer storer.Close()
	}

	log.Info("serving MCP over stdio", zap.String("revision", analyzer.Profile().Revision.Name))
	return newServer(analyzer, log).Run(ctx, &mcp.StdioTransport{})
}

func newServer(analyzer *analysis.Service, log *zap.Logger) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "foodlens",
		Version: version.Version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        toolName,
		Description: "Assess how harmful a food product is from its ingredient list.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in analyzeInput) (*mcp.CallToolResult, analyzeOutput, error) {
		result, err := analyzer.Analyze(ctx, in.Ingredients)
		if err != nil {
			log.Error("analysis failed", zap.Error(err))
			return nil, analyzeOutput{}, err
		}

		out := analyzeOutput{
			Verdict:  verdictText(result.Body),
			Revision: result.Revision,
			Cached:   result.Cached,
			Record:   result.VerdictHash,
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: out.Verdict}},
		}, out, nil
	})

	return server
}

// verdictText unwraps {"content": ...} replies and leaves passthrough
// payloads as JSON text.
func verdictText(body json.RawMessage) string {
	var shaped struct {
		Content *string `json:"content"`
	}
	if err := json.Unmarshal(body, &shaped); err == nil && shaped.Content != nil {
		return *shaped.Content
	}
	return string(body)
}

package analyzecmder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/foodlens/pkg/llm"
)

const analyzeLongDesc string = `Send an ingredient list to a running foodlens server.

Ingredients are read from --text, from the named file, or from stdin when
no file (or "-") is given. On a terminal the verdict is rendered as
markdown; otherwise, or with --raw, the server's JSON is printed as is.

Examples:
  foodlens analyze --text "sugar, palm oil, E621"
  foodlens analyze label.txt
  pbpaste | foodlens analyze --server http://192.168.1.42:5000`

const analyzeShortDesc string = "Analyze an ingredient list"

// Fields the verdict text may arrive in, most specific first.
var textFields = []string{"content", "message", "result", "analysis"}

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)
	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

type analyzeCommander struct {
	server  string
	text    string
	raw     bool
	timeout time.Duration
}

type reply struct {
	body     []byte
	revision string
	cached   bool
}

func NewAnalyzeCmd() *cobra.Command {
	cmder := &analyzeCommander{}

	cmd := &cobra.Command{
		Use:   "analyze [file|-]",
		Short: analyzeShortDesc,
		Long:  analyzeLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd, args)
		},
	}

	cmd.Flags().StringVarP(&cmder.server, "server", "s", "http://localhost:5000", "foodlens server URL")
	cmd.Flags().StringVarP(&cmder.text, "text", "t", "", "Ingredient list to analyze")
	cmd.Flags().BoolVar(&cmder.raw, "raw", false, "Print the server's JSON response")
	cmd.Flags().DurationVar(&cmder.timeout, "timeout", 90*time.Second, "Request timeout")

	return cmd
}

func (c *analyzeCommander) run(ctx context.Context, cmd *cobra.Command, args []string) error {
	ingredients, err := c.readIngredients(cmd, args)
	if err != nil {
		return err
	}

	r, err := c.post(ctx, ingredients)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !c.raw && isTerminal(out) {
		if text, ok := extractText(r.body); ok {
			return render(out, r, text)
		}
	}

	_, err = fmt.Fprintln(out, strings.TrimSpace(string(r.body)))
	return err
}

func (c *analyzeCommander) readIngredients(cmd *cobra.Command, args []string) (string, error) {
	if c.text != "" {
		if len(args) > 0 {
			return "", errors.New("use either --text or a file, not both")
		}
		return c.text, nil
	}

	var (
		data []byte
		err  error
	)
	if len(args) == 0 || args[0] == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return "", fmt.Errorf("could not read ingredients: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (c *analyzeCommander) post(ctx context.Context, ingredients string) (*reply, error) {
	body, err := json.Marshal(llm.AnalysisRequest{Ingredients: ingredients})
	if err != nil {
		return nil, fmt.Errorf("could not marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := strings.TrimRight(c.server, "/") + "/analyze"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("could not build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("could not read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp llm.ErrorResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, errResp.Error)
		}
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(respBody))
	}

	return &reply{
		body:     respBody,
		revision: resp.Header.Get("X-Foodlens-Revision"),
		cached:   resp.Header.Get("X-Foodlens-Cache") == "hit",
	}, nil
}

// extractText finds the verdict text in a response body. Passthrough
// revisions return whatever the upstream sent, so several field names are
// tried.
func extractText(body []byte) (string, bool) {
	var s string
	if err := json.Unmarshal(body, &s); err == nil {
		return s, s != ""
	}

	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return "", false
	}
	for _, name := range textFields {
		if v, ok := fields[name].(string); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

func render(w io.Writer, r *reply, text string) error {
	header := headerStyle.Render("foodlens")
	var meta []string
	if r.revision != "" {
		meta = append(meta, "revision "+r.revision)
	}
	if r.cached {
		meta = append(meta, "cached")
	}
	if len(meta) > 0 {
		header = lipgloss.JoinHorizontal(lipgloss.Center, header, " ", metaStyle.Render(strings.Join(meta, " · ")))
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithColorProfile(colorProfile(w)),
		glamour.WithWordWrap(terminalWidth(w)),
	)
	if err != nil {
		return fmt.Errorf("could not create renderer: %w", err)
	}
	md, err := renderer.Render(text)
	if err != nil {
		return fmt.Errorf("could not render verdict: %w", err)
	}

	_, err = fmt.Fprintf(w, "%s\n%s", header, md)
	return err
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func colorProfile(w io.Writer) termenv.Profile {
	if f, ok := w.(*os.File); ok {
		return termenv.NewOutput(f).EnvColorProfile()
	}
	return termenv.Ascii
}

func terminalWidth(w io.Writer) int {
	if f, ok := w.(*os.File); ok {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 0 {
			return min(width, 100)
		}
	}
	return 80
}

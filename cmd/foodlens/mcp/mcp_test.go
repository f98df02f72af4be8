package mcpcmder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/foodlens/pkg/config"
	"github.com/papercomputeco/foodlens/relay"
)

var _ = Describe("MCP Server", func() {
	var (
		ctx     context.Context
		session *mcp.ClientSession
		status  int
		reply   any
	)

	BeforeEach(func() {
		ctx = context.Background()
		status = http.StatusOK
		reply = map[string]string{"content": "Moderate, 6/10"}

		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(reply)
		}))
		DeferCleanup(upstream.Close)

		cfg := config.Default()
		cfg.Upstream.URL = upstream.URL

		analyzer, storer, err := relay.NewAnalyzer(cfg, nil, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(storer.Close)

		clientTransport, serverTransport := mcp.NewInMemoryTransports()
		serverSession, err := newServer(analyzer, zap.NewNop()).Connect(ctx, serverTransport, nil)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(serverSession.Close)

		client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
		session, err = client.Connect(ctx, clientTransport, nil)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(session.Close)
	})

	It("lists the analysis tool", func() {
		res, err := session.ListTools(ctx, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Tools).To(HaveLen(1))
		Expect(res.Tools[0].Name).To(Equal(toolName))
	})

	It("returns the verdict text", func() {
		res, err := session.CallTool(ctx, &mcp.CallToolParams{
			Name:      toolName,
			Arguments: map[string]any{"ingredients": "sugar, palm oil"},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.IsError).To(BeFalse())
		Expect(res.Content).To(HaveLen(1))
		Expect(res.Content[0].(*mcp.TextContent).Text).To(Equal("Moderate, 6/10"))

		structured, err := json.Marshal(res.StructuredContent)
		Expect(err).NotTo(HaveOccurred())
		var out analyzeOutput
		Expect(json.Unmarshal(structured, &out)).To(Succeed())
		Expect(out.Revision).To(Equal("v4"))
		Expect(out.Record).NotTo(BeEmpty())
	})

	It("reports upstream failures as tool errors", func() {
		status = http.StatusBadGateway
		reply = map[string]string{"error": "bad gateway"}

		res, err := session.CallTool(ctx, &mcp.CallToolParams{
			Name:      toolName,
			Arguments: map[string]any{"ingredients": "sugar"},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.IsError).To(BeTrue())
	})
})

var _ = Describe("verdictText", func() {
	It("unwraps the content field", func() {
		Expect(verdictText(json.RawMessage(`{"content":"Harmful, 2/10"}`))).To(Equal("Harmful, 2/10"))
	})

	It("keeps passthrough payloads as JSON", func() {
		Expect(verdictText(json.RawMessage(`{"choices":[]}`))).To(Equal(`{"choices":[]}`))
	})
})

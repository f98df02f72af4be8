package analyzecmder

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/x/ansi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/foodlens/pkg/config"
	"github.com/papercomputeco/foodlens/relay"
)

var _ = Describe("Analyze Command", func() {
	var (
		ctx     context.Context
		addr    string
		mu      sync.Mutex
		prompts []string
	)

	BeforeEach(func() {
		ctx = context.Background()
		prompts = nil

		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			prompts = append(prompts, r.URL.Query().Get("prompt"))
			mu.Unlock()
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]string{"content": "**Verdict:** 7/10"})
		}))
		DeferCleanup(upstream.Close)

		cfg := config.Default()
		cfg.Upstream.URL = upstream.URL
		cfg.Storage.Backend = config.StorageNone

		r, err := relay.New(cfg, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		go func() {
			_ = r.RunWithListener(listener)
		}()
		DeferCleanup(func() {
			_ = r.Shutdown(context.Background())
			_ = r.Close()
		})

		addr = "http://" + listener.Addr().String()
	})

	execute := func(stdin string, args ...string) (string, error) {
		var out bytes.Buffer
		cmd := NewAnalyzeCmd()
		cmd.SetOut(&out)
		cmd.SetIn(strings.NewReader(stdin))
		cmd.SetArgs(append([]string{"--server", addr}, args...))
		err := cmd.ExecuteContext(ctx)
		return out.String(), err
	}

	lastPrompt := func() string {
		mu.Lock()
		defer mu.Unlock()
		Expect(prompts).NotTo(BeEmpty())
		return prompts[len(prompts)-1]
	}

	It("sends --text and prints the JSON reply when not on a terminal", func() {
		out, err := execute("", "--text", "sugar, salt")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(MatchJSON(`{"content": "**Verdict:** 7/10"}`))
		Expect(lastPrompt()).To(HaveSuffix("sugar, salt"))
	})

	It("reads ingredients from a file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "label.txt")
		Expect(os.WriteFile(path, []byte("water, E621\n"), 0o600)).To(Succeed())

		_, err := execute("", path)
		Expect(err).NotTo(HaveOccurred())
		Expect(lastPrompt()).To(HaveSuffix("water, E621"))
	})

	It("reads ingredients from stdin", func() {
		_, err := execute("oats, honey\n", "-")
		Expect(err).NotTo(HaveOccurred())
		Expect(lastPrompt()).To(HaveSuffix("oats, honey"))
	})

	It("rejects --text together with a file", func() {
		_, err := execute("", "--text", "sugar", "label.txt")
		Expect(err).To(MatchError(ContainSubstring("not both")))
	})

	It("reports server errors", func() {
		var out bytes.Buffer
		cmd := NewAnalyzeCmd()
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"--server", "http://127.0.0.1:1", "--text", "sugar"})
		err := cmd.ExecuteContext(ctx)
		Expect(err).To(MatchError(ContainSubstring("HTTP request failed")))
	})

	It("surfaces the error message from a failed analysis", func() {
		failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"upstream request failed: upstream returned 503"}`))
		}))
		defer failing.Close()

		cmd := NewAnalyzeCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetArgs([]string{"--server", failing.URL, "--text", "sugar"})
		err := cmd.ExecuteContext(ctx)
		Expect(err).To(MatchError("server returned 500: upstream request failed: upstream returned 503"))
	})
})

var _ = Describe("extractText", func() {
	DescribeTable("finds the verdict text",
		func(body, want string, found bool) {
			got, ok := extractText([]byte(body))
			Expect(ok).To(Equal(found))
			Expect(got).To(Equal(want))
		},
		Entry("content field", `{"content":"a"}`, "a", true),
		Entry("message field", `{"message":"b"}`, "b", true),
		Entry("result field", `{"result":"c"}`, "c", true),
		Entry("analysis field", `{"analysis":"d"}`, "d", true),
		Entry("content wins", `{"message":"b","content":"a"}`, "a", true),
		Entry("bare string", `"plain"`, "plain", true),
		Entry("no text field", `{"score":7}`, "", false),
		Entry("non-string field", `{"content":7}`, "", false),
		Entry("not JSON", `nope`, "", false),
	)
})

var _ = Describe("render", func() {
	It("writes a header and the rendered markdown", func() {
		var out bytes.Buffer
		err := render(&out, &reply{revision: "v4", cached: true}, "# Verdict\n\nMostly **harmless**.")
		Expect(err).NotTo(HaveOccurred())

		plain := ansi.Strip(out.String())
		Expect(plain).To(ContainSubstring("foodlens"))
		Expect(plain).To(ContainSubstring("revision v4"))
		Expect(plain).To(ContainSubstring("cached"))
		Expect(plain).To(ContainSubstring("harmless"))
	})
})

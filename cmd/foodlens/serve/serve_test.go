package servecmder

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/foodlens/pkg/config"
)

func noEnv(string) (string, bool) { return "", false }

var _ = Describe("Serve Command", func() {
	var (
		cmd   *cobra.Command
		cmder *serveCommander
	)

	parse := func(args ...string) {
		cmder = &serveCommander{}
		cmd = newServeCmd(cmder)
		Expect(cmd.ParseFlags(args)).To(Succeed())
	}

	It("requires an upstream URL", func() {
		parse()
		_, err := cmder.loadConfig(cmd, noEnv)
		Expect(err).To(MatchError(ContainSubstring("upstream url is required")))
	})

	It("keeps defaults for flags that were not set", func() {
		parse("--upstream", "https://llm.example.com/api")
		cfg, err := cmder.loadConfig(cmd, noEnv)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Listen).To(Equal(":5000"))
		Expect(cfg.Upstream.Model).To(Equal("gpt-3.5-turbo"))
		Expect(cfg.Prompt.Revision).To(Equal("v4"))
		Expect(cfg.Storage.Backend).To(Equal(config.StorageMemory))
		Expect(cfg.Cache.Enabled).To(BeFalse())
	})

	It("lets flags override the file and environment", func() {
		path := filepath.Join(GinkgoT().TempDir(), "foodlens.toml")
		Expect(os.WriteFile(path, []byte(`
listen = ":6000"

[upstream]
url = "https://file.example.com"
model = "file-model"

[prompt]
revision = "v2"
`), 0o600)).To(Succeed())

		env := func(key string) (string, bool) {
			if key == config.EnvModel {
				return "env-model", true
			}
			return "", false
		}

		parse("--config", path, "--revision", "v3", "--listen", "127.0.0.1:7000")
		cfg, err := cmder.loadConfig(cmd, env)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Listen).To(Equal("127.0.0.1:7000"))
		Expect(cfg.Upstream.URL).To(Equal("https://file.example.com"))
		Expect(cfg.Upstream.Model).To(Equal("env-model"))
		Expect(cfg.Prompt.Revision).To(Equal("v3"))
	})

	It("selects the backend implied by --db and --redis", func() {
		parse("--upstream", "https://llm.example.com", "--db", "/tmp/foodlens.db")
		cfg, err := cmder.loadConfig(cmd, noEnv)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Storage.Backend).To(Equal(config.StorageSQLite))
		Expect(cfg.Storage.Path).To(Equal("/tmp/foodlens.db"))

		parse("--upstream", "https://llm.example.com", "--redis", "redis://localhost:6379/0")
		cfg, err = cmder.loadConfig(cmd, noEnv)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Storage.Backend).To(Equal(config.StorageRedis))
	})

	It("rejects an unknown revision", func() {
		parse("--upstream", "https://llm.example.com", "--revision", "v9")
		_, err := cmder.loadConfig(cmd, noEnv)
		Expect(err).To(MatchError(ContainSubstring("v9")))
	})

	It("refuses --watch without --config", func() {
		c := NewServeCmd()
		c.SetArgs([]string{"--watch", "--upstream", "https://llm.example.com"})
		err := c.ExecuteContext(context.Background())
		Expect(err).To(MatchError(ContainSubstring("--watch needs --config")))
	})
})

package upstream_test

import (
	"net/url"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/foodlens/pkg/upstream"
)

var _ = Describe("BuildURL", func() {
	It("encodes prompt, api_key and model as query parameters", func() {
		prompt := "Rate these: sugar & salt, E211 (5%) / water?"
		raw, err := upstream.BuildURL("http://llm.example.com/gpt/api.php", prompt, "s3cr3t+key", "gpt-3.5-turbo")
		Expect(err).NotTo(HaveOccurred())

		u, err := url.Parse(raw)
		Expect(err).NotTo(HaveOccurred())
		Expect(u.Host).To(Equal("llm.example.com"))
		Expect(u.Path).To(Equal("/gpt/api.php"))
		Expect(u.Query().Get("prompt")).To(Equal(prompt))
		Expect(u.Query().Get("api_key")).To(Equal("s3cr3t+key"))
		Expect(u.Query().Get("model")).To(Equal("gpt-3.5-turbo"))
		Expect(u.RawQuery).NotTo(ContainSubstring("&salt"))
	})

	It("keeps existing query parameters", func() {
		raw, err := upstream.BuildURL("https://llm.example.com/api?format=json", "p", "k", "m")
		Expect(err).NotTo(HaveOccurred())

		u, _ := url.Parse(raw)
		Expect(u.Query().Get("format")).To(Equal("json"))
		Expect(u.Query().Get("prompt")).To(Equal("p"))
	})

	It("omits api_key when empty", func() {
		raw, err := upstream.BuildURL("https://llm.example.com/api", "p", "", "m")
		Expect(err).NotTo(HaveOccurred())

		u, _ := url.Parse(raw)
		Expect(u.Query().Has("api_key")).To(BeFalse())
	})

	It("rejects non-http URLs", func() {
		_, err := upstream.BuildURL("ftp://llm.example.com", "p", "k", "m")
		Expect(err).To(HaveOccurred())

		_, err = upstream.BuildURL("llm.example.com/api", "p", "k", "m")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Redact", func() {
	It("drops the query, credentials and fragment", func() {
		raw, err := upstream.BuildURL("https://user:pw@llm.example.com/gpt/api.php", "sugar", "s3cr3t", "m")
		Expect(err).NotTo(HaveOccurred())

		Expect(upstream.Redact(raw + "#frag")).To(Equal("https://llm.example.com/gpt/api.php"))
	})

	It("falls back to a placeholder for unparseable URLs", func() {
		Expect(upstream.Redact("http://[::1")).To(Equal("upstream"))
	})
})

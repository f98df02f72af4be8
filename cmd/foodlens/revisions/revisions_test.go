package revisionscmder

import (
	"bytes"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Revisions Command", func() {
	execute := func(args ...string) string {
		var out bytes.Buffer
		cmd := NewRevisionsCmd()
		cmd.SetOut(&out)
		cmd.SetArgs(args)
		Expect(cmd.Execute()).To(Succeed())
		return out.String()
	}

	It("lists every revision with its shape", func() {
		out := execute()
		for _, name := range []string{"v1", "v2", "v3", "v4"} {
			Expect(out).To(ContainSubstring(name))
		}
		Expect(out).To(ContainSubstring("passthrough"))
		Expect(out).To(ContainSubstring("content"))
	})

	It("marks the default revision", func() {
		var defaultLine string
		for _, line := range strings.Split(execute(), "\n") {
			if strings.Contains(line, "*") {
				defaultLine = line
			}
		}
		Expect(defaultLine).To(ContainSubstring("v4"))
	})

	It("prints instructions on request", func() {
		out := execute("--instructions")
		Expect(out).To(ContainSubstring("v1 (passthrough)"))
		Expect(out).To(ContainSubstring("Return a rating on scale of 1-10"))
	})
})

package analysis

import (
	"unicode/utf8"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("truncate", func() {
	It("leaves short text alone apart from newlines", func() {
		Expect(truncate("sugar,\nsalt", 50)).To(Equal("sugar, salt"))
	})

	It("cuts on a rune boundary", func() {
		got := truncate("crème brûlée, açúcar, café", 4)
		Expect(utf8.ValidString(got)).To(BeTrue())
		Expect(got).To(Equal("crèm..."))
	})

	It("counts runes, not bytes", func() {
		Expect(truncate("çççç", 4)).To(Equal("çççç"))
	})
})

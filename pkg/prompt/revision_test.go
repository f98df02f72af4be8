package prompt_test

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/foodlens/pkg/prompt"
)

var _ = Describe("Revision", func() {
	Describe("Lookup", func() {
		It("selects the default revision for an empty name", func() {
			r, err := prompt.Lookup("")
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Name).To(Equal(prompt.DefaultRevision))
		})

		It("is case-insensitive", func() {
			r, err := prompt.Lookup("V2")
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Name).To(Equal("v2"))
		})

		It("rejects unknown revisions and lists the known ones", func() {
			_, err := prompt.Lookup("v9")
			Expect(err).To(MatchError(ContainSubstring("v1, v2, v3, v4")))
		})
	})

	It("passes early revisions through and extracts content in later ones", func() {
		shapes := map[string]prompt.Shape{}
		for _, r := range prompt.All() {
			shapes[r.Name] = r.Shape
		}
		Expect(shapes).To(Equal(map[string]prompt.Shape{
			"v1": prompt.Passthrough,
			"v2": prompt.Passthrough,
			"v3": prompt.ExtractContent,
			"v4": prompt.ExtractContent,
		}))
	})

	Describe("Build", func() {
		It("concatenates instruction and ingredients without a separator", func() {
			r, _ := prompt.Lookup("v1")
			built := r.Build("sugar, E211")

			Expect(built).To(HavePrefix(r.Instruction))
			Expect(built).To(HaveSuffix("according to yousugar, E211"))
		})

		It("keeps an empty ingredient list as the bare instruction", func() {
			r, _ := prompt.Lookup("v4")
			Expect(r.Build("")).To(Equal(r.Instruction))
		})

		It("does not alter special characters in the ingredients", func() {
			r, _ := prompt.Lookup("v3")
			text := "E330 & E211 / 5% sugar?\nwater=yes"
			Expect(strings.TrimPrefix(r.Build(text), r.Instruction)).To(Equal(text))
		})
	})

	Describe("WithInstruction", func() {
		It("replaces the template but keeps the shape", func() {
			r, _ := prompt.Lookup("v4")
			custom := r.WithInstruction("Rate this: ")

			Expect(custom.Build("salt")).To(Equal("Rate this: salt"))
			Expect(custom.Shape).To(Equal(prompt.ExtractContent))
		})

		It("ignores an empty override", func() {
			r, _ := prompt.Lookup("v2")
			Expect(r.WithInstruction("")).To(Equal(r))
		})
	})

	It("names shapes", func() {
		Expect(prompt.Passthrough.String()).To(Equal("passthrough"))
		Expect(prompt.ExtractContent.String()).To(Equal("content"))
	})
})

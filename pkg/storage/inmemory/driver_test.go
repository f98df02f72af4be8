package inmemory_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/foodlens/pkg/merkle"
	"github.com/papercomputeco/foodlens/pkg/storage/inmemory"
	"github.com/papercomputeco/foodlens/pkg/storage/storagetest"
)

var _ = Describe("Driver", func() {
	storagetest.Behaves(func() merkle.Storer {
		return inmemory.NewDriver()
	})

	It("hands out copies so callers cannot mutate stored nodes", func() {
		ctx := context.Background()
		d := inmemory.NewDriver()
		node := storagetest.PromptNode("sugar")
		_, err := d.Put(ctx, node)
		Expect(err).NotTo(HaveOccurred())

		got, err := d.Get(ctx, node.Hash)
		Expect(err).NotTo(HaveOccurred())
		got.Bucket.Ingredients = "changed"

		again, err := d.Get(ctx, node.Hash)
		Expect(err).NotTo(HaveOccurred())
		Expect(again.Bucket.Ingredients).To(Equal("sugar"))
	})
})

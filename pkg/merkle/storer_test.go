package merkle_test

import (
	"context"
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/foodlens/pkg/merkle"
	"github.com/papercomputeco/foodlens/pkg/storage/inmemory"
)

var _ = Describe("Traversal helpers", func() {
	var (
		ctx    context.Context
		storer *inmemory.Driver
		root   *merkle.Node
	)

	BeforeEach(func() {
		ctx = context.Background()
		storer = inmemory.NewDriver()
		root = merkle.NewNode(merkle.PromptBucket("v4", "m", "sugar", "Rate: sugar"), nil)
		_, err := storer.Put(ctx, root)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Ancestry", func() {
		It("returns path from node to root", func() {
			verdict := merkle.NewNode(merkle.VerdictBucket(json.RawMessage(`{"content":"ok"}`)), root)
			_, err := storer.Put(ctx, verdict)
			Expect(err).NotTo(HaveOccurred())

			ancestry, err := merkle.Ancestry(ctx, storer, verdict.Hash)
			Expect(err).NotTo(HaveOccurred())
			Expect(ancestry).To(HaveLen(2))
			Expect(ancestry[0].Hash).To(Equal(verdict.Hash))
			Expect(ancestry[1].Hash).To(Equal(root.Hash))
		})

		It("returns ErrNotFound for an unknown hash", func() {
			_, err := merkle.Ancestry(ctx, storer, "nonexistent")
			Expect(err).To(BeAssignableToTypeOf(merkle.ErrNotFound{}))
		})
	})

	Describe("Latest", func() {
		It("returns nil when the node has no children", func() {
			latest, err := merkle.Latest(ctx, storer, root.Hash)
			Expect(err).NotTo(HaveOccurred())
			Expect(latest).To(BeNil())
		})

		It("returns the most recently created child", func() {
			older := merkle.NewNode(merkle.VerdictBucket(json.RawMessage(`{"content":"old"}`)), root)
			newer := merkle.NewNode(merkle.VerdictBucket(json.RawMessage(`{"content":"new"}`)), root)
			newer.CreatedAt = older.CreatedAt.Add(1000)

			_, err := storer.Put(ctx, newer)
			Expect(err).NotTo(HaveOccurred())
			_, err = storer.Put(ctx, older)
			Expect(err).NotTo(HaveOccurred())

			latest, err := merkle.Latest(ctx, storer, root.Hash)
			Expect(err).NotTo(HaveOccurred())
			Expect(latest.Hash).To(Equal(newer.Hash))
		})
	})
})

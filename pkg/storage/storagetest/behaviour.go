// Package storagetest holds the behavioural specs every merkle.Storer
// backend must satisfy.
package storagetest

import (
	"context"
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/foodlens/pkg/merkle"
)

// PromptNode builds a root node for the given ingredients.
func PromptNode(ingredients string) *merkle.Node {
	return merkle.NewNode(merkle.PromptBucket("v4", "test-model", ingredients, "Rate: "+ingredients), nil)
}

// VerdictNode builds a verdict node under parent.
func VerdictNode(content string, parent *merkle.Node) *merkle.Node {
	payload, _ := json.Marshal(map[string]string{"content": content})
	return merkle.NewNode(merkle.VerdictBucket(payload), parent)
}

// Behaves registers the shared Storer specs in the enclosing container.
// newStorer is called before each spec and the result is closed after it.
func Behaves(newStorer func() merkle.Storer) {
	var (
		ctx    context.Context
		storer merkle.Storer
	)

	BeforeEach(func() {
		ctx = context.Background()
		storer = newStorer()
	})

	AfterEach(func() {
		if storer != nil {
			Expect(storer.Close()).To(Succeed())
		}
	})

	put := func(nodes ...*merkle.Node) {
		for _, n := range nodes {
			_, err := storer.Put(ctx, n)
			Expect(err).NotTo(HaveOccurred())
		}
	}

	Describe("Put and Get", func() {
		It("stores and retrieves a root node", func() {
			node := PromptNode("sugar, salt")

			created, err := storer.Put(ctx, node)
			Expect(err).NotTo(HaveOccurred())
			Expect(created).To(BeTrue())

			retrieved, err := storer.Get(ctx, node.Hash)
			Expect(err).NotTo(HaveOccurred())
			Expect(retrieved.Hash).To(Equal(node.Hash))
			Expect(retrieved.Bucket).To(Equal(node.Bucket))
			Expect(retrieved.ParentHash).To(BeNil())
			Expect(retrieved.CreatedAt).To(BeTemporally("~", node.CreatedAt, time.Millisecond))
			Expect(retrieved.Verify()).To(BeTrue())
		})

		It("stores and retrieves a verdict with its parent link", func() {
			prompt := PromptNode("sugar")
			verdict := VerdictNode("Harmful, 3/10", prompt)
			put(prompt, verdict)

			retrieved, err := storer.Get(ctx, verdict.Hash)
			Expect(err).NotTo(HaveOccurred())
			Expect(retrieved.ParentHash).NotTo(BeNil())
			Expect(*retrieved.ParentHash).To(Equal(prompt.Hash))
			Expect(retrieved.Bucket.Type).To(Equal(merkle.TypeVerdict))
			Expect(string(retrieved.Bucket.Payload)).To(Equal(`{"content":"Harmful, 3/10"}`))
		})

		It("returns ErrNotFound for non-existent hash", func() {
			_, err := storer.Get(ctx, "nonexistent")
			Expect(err).To(HaveOccurred())
			Expect(err).To(BeAssignableToTypeOf(merkle.ErrNotFound{}))
		})

		It("is idempotent for duplicate puts and keeps the first timestamp", func() {
			node := PromptNode("water")
			put(node)

			again := *node
			again.CreatedAt = node.CreatedAt.Add(time.Hour)
			created, err := storer.Put(ctx, &again)
			Expect(err).NotTo(HaveOccurred())
			Expect(created).To(BeFalse())

			nodes, err := storer.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(nodes).To(HaveLen(1))
			Expect(nodes[0].CreatedAt).To(BeTemporally("~", node.CreatedAt, time.Millisecond))
		})

		It("rejects nil nodes", func() {
			_, err := storer.Put(ctx, nil)
			Expect(err).To(MatchError(merkle.ErrNilNode))
		})
	})

	Describe("Has", func() {
		It("returns true for an existing node", func() {
			node := PromptNode("test")
			put(node)

			exists, err := storer.Has(ctx, node.Hash)
			Expect(err).NotTo(HaveOccurred())
			Expect(exists).To(BeTrue())
		})

		It("returns false for a non-existent hash", func() {
			exists, err := storer.Has(ctx, "nonexistent")
			Expect(err).NotTo(HaveOccurred())
			Expect(exists).To(BeFalse())
		})
	})

	Describe("GetByParent", func() {
		It("returns every verdict recorded for a prompt", func() {
			prompt := PromptNode("sugar")
			put(prompt, VerdictNode("first", prompt), VerdictNode("second", prompt))

			children, err := storer.GetByParent(ctx, &prompt.Hash)
			Expect(err).NotTo(HaveOccurred())
			Expect(children).To(HaveLen(2))
		})

		It("returns root nodes when parentHash is nil", func() {
			root1 := PromptNode("sugar")
			root2 := PromptNode("salt")
			put(root1, root2, VerdictNode("ok", root1))

			roots, err := storer.GetByParent(ctx, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(roots).To(HaveLen(2))
		})

		It("returns an empty slice for a node without children", func() {
			prompt := PromptNode("sugar")
			put(prompt)

			children, err := storer.GetByParent(ctx, &prompt.Hash)
			Expect(err).NotTo(HaveOccurred())
			Expect(children).To(BeEmpty())
		})
	})

	Describe("List, Roots and Leaves", func() {
		It("returns an empty slice for an empty store", func() {
			nodes, err := storer.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(nodes).To(BeEmpty())
		})

		It("separates prompts from their verdicts", func() {
			sugar := PromptNode("sugar")
			salt := PromptNode("salt")
			sugarVerdict := VerdictNode("ok", sugar)
			put(sugar, salt, sugarVerdict)

			nodes, err := storer.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(nodes).To(HaveLen(3))

			roots, err := storer.Roots(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(roots).To(HaveLen(2))

			leaves, err := storer.Leaves(ctx)
			Expect(err).NotTo(HaveOccurred())
			hashes := make([]string, 0, len(leaves))
			for _, l := range leaves {
				hashes = append(hashes, l.Hash)
			}
			Expect(hashes).To(ConsistOf(salt.Hash, sugarVerdict.Hash))
		})
	})

	Describe("Content-addressable deduplication", func() {
		It("branches differing verdicts from one prompt", func() {
			prompt := PromptNode("sugar")
			again := PromptNode("sugar")
			Expect(again.Hash).To(Equal(prompt.Hash))

			put(prompt, again, VerdictNode("Healthy, 8/10", prompt), VerdictNode("Harmful, 2/10", again))

			roots, err := storer.Roots(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(roots).To(HaveLen(1))

			leaves, err := storer.Leaves(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(leaves).To(HaveLen(2))
		})
	})
}

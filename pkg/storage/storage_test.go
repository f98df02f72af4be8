package storage_test

import (
	"context"
	"path/filepath"

	miniredis "github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/foodlens/pkg/config"
	"github.com/papercomputeco/foodlens/pkg/storage"
	"github.com/papercomputeco/foodlens/pkg/storage/inmemory"
	"github.com/papercomputeco/foodlens/pkg/storage/redis"
	"github.com/papercomputeco/foodlens/pkg/storage/sqlite"
)

var _ = Describe("Open", func() {
	ctx := context.Background()

	It("returns nil for the none backend", func() {
		s, err := storage.Open(ctx, config.Storage{Backend: config.StorageNone})
		Expect(err).NotTo(HaveOccurred())
		Expect(s).To(BeNil())
	})

	It("opens the in-memory backend", func() {
		s, err := storage.Open(ctx, config.Storage{Backend: config.StorageMemory})
		Expect(err).NotTo(HaveOccurred())
		Expect(s).To(BeAssignableToTypeOf(&inmemory.Driver{}))
	})

	It("opens the sqlite backend", func() {
		path := filepath.Join(GinkgoT().TempDir(), "records.db")
		s, err := storage.Open(ctx, config.Storage{Backend: config.StorageSQLite, Path: path})
		Expect(err).NotTo(HaveOccurred())
		defer s.Close()
		Expect(s).To(BeAssignableToTypeOf(&sqlite.Driver{}))
	})

	It("opens the redis backend", func() {
		mr, err := miniredis.Run()
		Expect(err).NotTo(HaveOccurred())
		defer mr.Close()

		s, err := storage.Open(ctx, config.Storage{Backend: config.StorageRedis, RedisURL: "redis://" + mr.Addr()})
		Expect(err).NotTo(HaveOccurred())
		defer s.Close()
		Expect(s).To(BeAssignableToTypeOf(&redis.Driver{}))
	})

	It("rejects unknown backends", func() {
		_, err := storage.Open(ctx, config.Storage{Backend: "etcd"})
		Expect(err).To(HaveOccurred())
	})
})

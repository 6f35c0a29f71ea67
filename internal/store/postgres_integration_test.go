// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package store_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/sessionauth/internal/store"
	"github.com/holomush/sessionauth/internal/store/storetest"
)

var _ = Describe("Migrator", func() {
	var (
		connStr   string
		terminate func()
		migrator  *store.Migrator
	)

	BeforeEach(func() {
		var err error
		connStr, terminate, err = storetest.StartPostgres(context.Background())
		Expect(err).NotTo(HaveOccurred())

		migrator, err = store.NewMigrator(connStr)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(migrator.Close()).To(Succeed())
		terminate()
	})

	It("reports version 0 on an empty database", func() {
		version, dirty, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(BeZero())
		Expect(dirty).To(BeFalse())

		pending, err := migrator.Pending()
		Expect(err).NotTo(HaveOccurred())
		Expect(pending).To(ContainElement(uint(1)))
	})

	It("creates and drops the users table", func() {
		ctx := context.Background()
		Expect(migrator.Up()).To(Succeed())
		Expect(migrator.Up()).To(Succeed(), "second Up is a no-op")

		pool, err := store.Connect(ctx, connStr, store.ConnectOptions{Attempts: 3, Backoff: 100 * time.Millisecond})
		Expect(err).NotTo(HaveOccurred())
		defer pool.Close()

		var exists bool
		Expect(pool.QueryRow(ctx, `SELECT to_regclass('public.users') IS NOT NULL`).Scan(&exists)).To(Succeed())
		Expect(exists).To(BeTrue())

		pending, err := migrator.Pending()
		Expect(err).NotTo(HaveOccurred())
		Expect(pending).To(BeEmpty())

		Expect(migrator.Down()).To(Succeed())
		Expect(pool.QueryRow(ctx, `SELECT to_regclass('public.users') IS NOT NULL`).Scan(&exists)).To(Succeed())
		Expect(exists).To(BeFalse())
	})

	It("enforces unique emails", func() {
		ctx := context.Background()
		Expect(migrator.Up()).To(Succeed())

		pool, err := store.Connect(ctx, connStr, store.DefaultConnectOptions())
		Expect(err).NotTo(HaveOccurred())
		defer pool.Close()

		insert := `INSERT INTO users (id, email, hashed_password) VALUES ($1, 'a@example.com', 'h')`
		_, err = pool.Exec(ctx, insert, "01")
		Expect(err).NotTo(HaveOccurred())
		_, err = pool.Exec(ctx, insert, "02")
		Expect(err).To(MatchError(ContainSubstring("users_email_key")))
	})
})

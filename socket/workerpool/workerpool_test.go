/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 */

package workerpool_test

import (
	"sync/atomic"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/tcpcore/socket/workerpool"
)

func TestWorkerpool(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Workerpool Suite")
}

var _ = Describe("Pool", func() {
	var pool *workerpool.Pool

	AfterEach(func() {
		if pool != nil {
			pool.Close()
			pool = nil
		}
	})

	It("reports a Result carrying the submitted fd and disconnect flag", func() {
		pool = workerpool.New(2)

		pool.Submit(7, func() (bool, any) {
			return true, nil
		})

		var res workerpool.Result
		Eventually(pool.Results(), time.Second).Should(Receive(&res))
		Expect(res.FD).To(Equal(7))
		Expect(res.Disconnect).To(BeTrue())
		Expect(res.Payload).To(BeNil())
	})

	It("carries an opaque payload back for the caller to type-assert", func() {
		pool = workerpool.New(1)

		type marker struct{ n int }
		pool.Submit(3, func() (bool, any) {
			return false, &marker{n: 42}
		})

		var res workerpool.Result
		Eventually(pool.Results(), time.Second).Should(Receive(&res))
		Expect(res.Disconnect).To(BeFalse())
		m, ok := res.Payload.(*marker)
		Expect(ok).To(BeTrue())
		Expect(m.n).To(Equal(42))
	})

	It("runs submitted jobs concurrently across its worker goroutines", func() {
		pool = workerpool.New(4)

		var inFlight atomic.Int32
		var maxSeen atomic.Int32
		release := make(chan struct{})

		for i := 0; i < 4; i++ {
			pool.Submit(i, func() (bool, any) {
				n := inFlight.Add(1)
				for {
					cur := maxSeen.Load()
					if n <= cur || maxSeen.CompareAndSwap(cur, n) {
						break
					}
				}
				<-release
				inFlight.Add(-1)
				return false, nil
			})
		}

		Eventually(func() int32 { return maxSeen.Load() }, time.Second).Should(BeNumerically(">=", 2))
		close(release)

		for i := 0; i < 4; i++ {
			Eventually(pool.Results(), time.Second).Should(Receive())
		}
	})

	It("drains in-flight jobs before Close returns", func() {
		pool = workerpool.New(1)

		var ran atomic.Bool
		pool.Submit(1, func() (bool, any) {
			time.Sleep(20 * time.Millisecond)
			ran.Store(true)
			return false, nil
		})

		pool.Close()
		Expect(ran.Load()).To(BeTrue())
		pool = nil
	})
})

/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 */

package reactor_test

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/tcpcore/socket/reactor"
)

func TestReactor(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Reactor Suite")
}

var _ = Describe("Loop", func() {
	var loop *reactor.Loop

	BeforeEach(func() {
		l, err := reactor.New(8)
		Expect(err).ToNot(HaveOccurred())
		loop = l
	})

	AfterEach(func() {
		Expect(loop.Close()).To(Succeed())
	})

	It("dispatches a readable event for a pipe with data written to it", func() {
		fds := make([]int, 2)
		Expect(unix.Pipe(fds)).To(Succeed())
		defer func() {
			_ = unix.Close(fds[0])
			_ = unix.Close(fds[1])
		}()

		Expect(unix.SetNonblock(fds[0], true)).To(Succeed())
		Expect(loop.Add(fds[0], reactor.Read|reactor.EdgeTriggered)).To(Succeed())

		_, err := unix.Write(fds[1], []byte("hi"))
		Expect(err).ToNot(HaveOccurred())

		var seen []reactor.Event
		done := make(chan error, 1)
		go func() {
			done <- loop.WaitAndDispatch(func(ev reactor.Event) {
				seen = append(seen, ev)
			})
		}()

		Eventually(done, time.Second).Should(Receive(BeNil()))
		Expect(seen).To(HaveLen(1))
		Expect(seen[0].FD).To(Equal(fds[0]))
		Expect(seen[0].Readable).To(BeTrue())
	})

	It("Wake interrupts a blocked WaitAndDispatch without surfacing an event", func() {
		var seen []reactor.Event
		done := make(chan error, 1)
		go func() {
			done <- loop.WaitAndDispatch(func(ev reactor.Event) {
				seen = append(seen, ev)
			})
		}()

		Consistently(done, 100*time.Millisecond).ShouldNot(Receive())

		Expect(loop.Wake()).To(Succeed())
		Eventually(done, time.Second).Should(Receive(BeNil()))
		Expect(seen).To(BeEmpty())
	})

	It("Remove tolerates a descriptor that was never added", func() {
		Expect(loop.Remove(99999)).To(Succeed())
	})

	It("Add then Remove then Remove again is idempotent", func() {
		fds := make([]int, 2)
		Expect(unix.Pipe(fds)).To(Succeed())
		defer func() {
			_ = unix.Close(fds[0])
			_ = unix.Close(fds[1])
		}()

		Expect(loop.Add(fds[0], reactor.Read)).To(Succeed())
		Expect(loop.Remove(fds[0])).To(Succeed())
		Expect(loop.Remove(fds[0])).To(Succeed())
	})
})

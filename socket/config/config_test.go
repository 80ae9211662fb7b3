/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
 */

package config_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/tcpcore/socket"
	"github.com/sabouaram/tcpcore/socket/config"
)

func TestConfig(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Socket Config Suite")
}

var _ = Describe("Server", func() {
	Context("BufferSizeOrDefault", func() {
		It("returns the configured size when positive", func() {
			s := config.Server{BufferSize: 4096}
			Expect(s.BufferSizeOrDefault()).To(Equal(4096))
		})

		It("falls back to socket.DefaultBufferSize when unset", func() {
			s := config.Server{}
			Expect(s.BufferSizeOrDefault()).To(Equal(socket.DefaultBufferSize))
		})

		It("falls back when the configured size is non-positive", func() {
			s := config.Server{BufferSize: -1}
			Expect(s.BufferSizeOrDefault()).To(Equal(socket.DefaultBufferSize))
		})
	})

	Context("MaxEventSizeOrDefault", func() {
		It("returns the configured size when positive", func() {
			s := config.Server{MaxEventSize: 256}
			Expect(s.MaxEventSizeOrDefault()).To(Equal(256))
		})

		It("falls back to 128 when unset", func() {
			s := config.Server{}
			Expect(s.MaxEventSizeOrDefault()).To(Equal(128))
		})
	})
})

var _ = Describe("TLS", func() {
	It("reports disabled when either file is empty", func() {
		Expect(config.TLS{}.Enabled()).To(BeFalse())
		Expect(config.TLS{CertFile: "cert.pem"}.Enabled()).To(BeFalse())
		Expect(config.TLS{KeyFile: "key.pem"}.Enabled()).To(BeFalse())
	})

	It("reports enabled once both files are set", func() {
		t := config.TLS{CertFile: "cert.pem", KeyFile: "key.pem"}
		Expect(t.Enabled()).To(BeTrue())
	})
})

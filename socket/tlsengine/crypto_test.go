/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 */

package tlsengine_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"os"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/tcpcore/socket/tlsengine"
)

func TestTlsengine(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Tlsengine Suite")
}

func selfSignedServerConfig() *tls.Config {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	Expect(err).ToNot(HaveOccurred())

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "tcpcore-test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	Expect(err).ToNot(HaveOccurred())

	cert := tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  key,
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}}
}

// pumpServerRead drives eng.Read to completion in the background: each call
// both advances a not-yet-finished handshake and attempts to fetch
// application data, exactly as the loop goroutine would between readiness
// notifications. It reports the first successful read, or a fatal error.
func pumpServerRead(eng tlsengine.Engine, sess tlsengine.Session) (<-chan []byte, <-chan error) {
	data := make(chan []byte, 1)
	errs := make(chan error, 1)

	go func() {
		buf := make([]byte, 256)
		for {
			n, status, err := eng.Read(sess, buf)
			switch status {
			case tlsengine.StatusOK:
				out := make([]byte, n)
				copy(out, buf[:n])
				data <- out
				return
			case tlsengine.StatusWantRead, tlsengine.StatusWantWrite, tlsengine.StatusWouldBlock, tlsengine.StatusInterrupted:
				time.Sleep(2 * time.Millisecond)
				continue
			default:
				errs <- err
				return
			}
		}
	}()

	return data, errs
}

var _ = Describe("cryptoEngine", func() {
	It("completes a server-side handshake and exchanges application data with a standard crypto/tls client", func() {
		fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
		Expect(err).ToNot(HaveOccurred())

		serverFD, clientFD := fds[0], fds[1]
		Expect(unix.SetNonblock(serverFD, true)).To(Succeed())

		clientFile := os.NewFile(uintptr(clientFD), "tlsengine-test-client")
		clientConn, err := net.FileConn(clientFile)
		Expect(err).ToNot(HaveOccurred())
		Expect(clientFile.Close()).To(Succeed())
		defer func() { _ = clientConn.Close() }()

		clientTLS := tls.Client(clientConn, &tls.Config{InsecureSkipVerify: true})

		eng := tlsengine.NewCryptoEngine(selfSignedServerConfig())
		Expect(eng.IsOK()).To(BeTrue())

		sess, err := eng.Attach(serverFD)
		Expect(err).ToNot(HaveOccurred())
		defer func() { _ = sess.Close() }()

		serverData, serverErr := pumpServerRead(eng, sess)

		handshakeErr := make(chan error, 1)
		go func() { handshakeErr <- clientTLS.Handshake() }()
		Eventually(handshakeErr, 5*time.Second).Should(Receive(BeNil()))

		_, writeErr := clientTLS.Write([]byte("ping"))
		Expect(writeErr).ToNot(HaveOccurred())

		var got []byte
		Eventually(serverData, 5*time.Second).Should(Receive(&got))
		Expect(serverErr).ToNot(Receive())
		Expect(string(got)).To(Equal("ping"))

		wn, status, werr := eng.Write(sess, []byte("pong"))
		Expect(werr).ToNot(HaveOccurred())
		Expect(status).To(Equal(tlsengine.StatusOK))
		Expect(wn).To(Equal(4))

		Expect(clientConn.SetReadDeadline(time.Now().Add(5 * time.Second))).To(Succeed())
		reply := make([]byte, 256)
		rn, rerr := clientTLS.Read(reply)
		Expect(rerr).ToNot(HaveOccurred())
		Expect(string(reply[:rn])).To(Equal("pong"))
	})

	It("reports IsOK false for a nil config", func() {
		eng := tlsengine.NewCryptoEngine(nil)
		Expect(eng.IsOK()).To(BeFalse())
	})
})

package httpserver_test

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/oracle-gateway/internal/httpserver"
)

var _ = Describe("HTTP Server", func() {
	noop := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	Context("server creation", func() {
		It("creates server with valid address", func() {
			srv, err := httpserver.New("localhost:9999", noop, httpserver.Timeouts{}, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(srv).NotTo(BeNil())
		})

		It("creates server with IP address", func() {
			srv, err := httpserver.New("127.0.0.1:9999", noop, httpserver.Timeouts{}, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(srv).NotTo(BeNil())
		})

		It("handles port-only address", func() {
			srv, err := httpserver.New(":3000", noop, httpserver.Timeouts{}, slog.New(slog.DiscardHandler))
			Expect(err).NotTo(HaveOccurred())
			Expect(srv).NotTo(BeNil())
		})

		It("rejects invalid address", func() {
			srv, err := httpserver.New("invalid:host:port", noop, httpserver.Timeouts{}, nil)
			Expect(err).To(HaveOccurred())
			Expect(srv).To(BeNil())
		})

		It("rejects address without port", func() {
			srv, err := httpserver.New("localhost", noop, httpserver.Timeouts{}, nil)
			Expect(err).To(HaveOccurred())
			Expect(srv).To(BeNil())
		})
	})

	Context("server lifecycle", func() {
		var (
			testServer *httpserver.Server
			listener   net.Listener
			served     chan error
		)

		start := func(handler http.Handler, timeouts httpserver.Timeouts) {
			var err error
			testServer, err = httpserver.New("127.0.0.1:0", handler, timeouts, nil)
			Expect(err).NotTo(HaveOccurred())

			listener, err = net.Listen("tcp", "127.0.0.1:0")
			Expect(err).NotTo(HaveOccurred())

			served = make(chan error, 1)
			go func() {
				served <- testServer.Serve(listener)
			}()
		}

		AfterEach(func() {
			if testServer != nil {
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				_ = testServer.Shutdown(ctx)
				testServer = nil
			}
		})

		It("starts and handles requests", func() {
			start(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("test"))
			}), httpserver.Timeouts{})

			resp, err := http.Get("http://" + listener.Addr().String())
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			body, _ := io.ReadAll(resp.Body)
			Expect(string(body)).To(Equal("test"))
		})

		It("shuts down gracefully", func() {
			start(noop, httpserver.Timeouts{Shutdown: 2 * time.Second})

			Expect(testServer.Shutdown(context.Background())).To(Succeed())
			Eventually(served).Should(Receive(BeNil()))
		})

		It("gives up on in-flight requests after the shutdown timeout", func() {
			release := make(chan struct{})
			defer close(release)

			start(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				<-release
			}), httpserver.Timeouts{Shutdown: 50 * time.Millisecond})

			go func() {
				defer GinkgoRecover()
				resp, err := http.Get("http://" + listener.Addr().String())
				if err == nil {
					resp.Body.Close()
				}
			}()
			time.Sleep(50 * time.Millisecond)

			err := testServer.Shutdown(context.Background())
			Expect(err).To(MatchError(context.DeadlineExceeded))
		})
	})
})

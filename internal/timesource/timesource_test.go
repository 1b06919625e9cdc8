package timesource_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/oracle-gateway/internal/timesource"
)

var _ = Describe("Client", func() {
	var (
		server  *httptest.Server
		handler http.HandlerFunc
	)

	BeforeEach(func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"timezone":"Asia/Riyadh","datetime":"2026-10-14T09:30:00.123456+03:00"}`))
		}
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handler(w, r)
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	It("should return the datetime field", func() {
		now, err := timesource.New(server.URL, time.Second).Now(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(now).To(Equal("2026-10-14T09:30:00.123456+03:00"))
	})

	It("should fail on a non-200 status", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_, err := timesource.New(server.URL, time.Second).Now(context.Background())
		Expect(err).To(MatchError(ContainSubstring("status 503")))
	})

	It("should fail when datetime is missing", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"timezone":"Asia/Riyadh"}`))
		}
		_, err := timesource.New(server.URL, time.Second).Now(context.Background())
		Expect(err).To(MatchError(timesource.ErrNoDatetime))
	})

	It("should fail on an invalid body", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		}
		_, err := timesource.New(server.URL, time.Second).Now(context.Background())
		Expect(err).To(HaveOccurred())
	})

	It("should fail when the service is unreachable", func() {
		url := server.URL
		server.Close()
		_, err := timesource.New(url, time.Second).Now(context.Background())
		Expect(err).To(MatchError(ContainSubstring("query time service")))
	})

	It("should apply defaults", func() {
		Expect(timesource.New("", 0)).NotTo(BeNil())
	})
})

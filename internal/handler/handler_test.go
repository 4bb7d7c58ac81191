package handler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/go-chi/chi/v5"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/upstream-selector/internal/engine"
	"github.com/angeloszaimis/upstream-selector/internal/handler"
	"github.com/angeloszaimis/upstream-selector/internal/health"
	"github.com/angeloszaimis/upstream-selector/pkg/logger"
)

// stubService returns canned engine answers.
type stubService struct {
	records []health.Record
	best    health.Record
	bestOK  bool
	one     health.Record
	oneErr  error
}

func (s *stubService) Snapshot(ctx context.Context) []health.Record {
	return s.records
}

func (s *stubService) Best(ctx context.Context) (health.Record, bool) {
	return s.best, s.bestOK
}

func (s *stubService) One(ctx context.Context, name string) (health.Record, error) {
	if s.oneErr != nil {
		return health.Record{}, s.oneErr
	}
	return s.one, nil
}

func healthyRecord(name string, score float64) health.Record {
	ms := 42.5
	code := 200
	return health.Record{
		Name:         name,
		URL:          "http://" + name + ".internal:8080",
		Status:       health.StatusHealthy,
		ResponseTime: &ms,
		Score:        score,
		StatusCode:   &code,
		LastChecked:  time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
	}
}

var _ = Describe("Handler", func() {
	var (
		service *stubService
		router  *chi.Mux
	)

	BeforeEach(func() {
		service = &stubService{}

		h := handler.New(logger.Nop(), service)
		router = chi.NewRouter()
		router.Get("/server", h.BestServer)
		router.Get("/health", h.Overview)
		router.Get("/servers/{name}/health", h.UpstreamHealth)
		router.NotFound(h.NotFound)
	})

	get := func(path string) (*httptest.ResponseRecorder, map[string]any) {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		var body map[string]any
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		return rec, body
	}

	Describe("GET /server", func() {
		It("should return the selected upstream", func() {
			service.best = healthyRecord("server2", 95)
			service.bestOK = true

			rec, body := get("/server")

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("Content-Type")).To(Equal("application/json"))
			Expect(body["server"]).To(Equal("server2"))
			Expect(body["server_url"]).To(Equal("http://server2.internal:8080"))
			Expect(body["health"]).To(Equal("healthy"))
			Expect(body["score"]).To(BeNumerically("==", 95))
			Expect(body["response_time"]).To(BeNumerically("==", 42.5))
			Expect(body).To(HaveKey("last_checked"))
		})

		It("should answer 503 with an explicit body when nothing is healthy", func() {
			service.bestOK = false

			rec, body := get("/server")

			Expect(rec.Code).To(Equal(http.StatusServiceUnavailable))
			Expect(body["error"]).To(Equal("No healthy servers available"))
			Expect(body).To(HaveKey("server"))
			Expect(body["server"]).To(BeNil())
			Expect(body["health"]).To(Equal("unavailable"))
		})
	})

	Describe("GET /health", func() {
		It("should report the aggregate pool state", func() {
			service.records = []health.Record{
				healthyRecord("server1", 70),
				healthyRecord("server2", 95),
				{Name: "server3", URL: "http://server3.internal:8080", Status: health.StatusError},
			}

			rec, body := get("/health")

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(body["status"]).To(Equal("healthy"))
			Expect(body["total_servers"]).To(BeNumerically("==", 3))
			Expect(body["healthy_servers"]).To(BeNumerically("==", 2))
			Expect(body).To(HaveKey("timestamp"))

			best, ok := body["best_server"].(map[string]any)
			Expect(ok).To(BeTrue())
			Expect(best["name"]).To(Equal("server2"))

			all, ok := body["all_servers"].([]any)
			Expect(ok).To(BeTrue())
			Expect(all).To(HaveLen(3))

			first, ok := all[0].(map[string]any)
			Expect(ok).To(BeTrue())
			Expect(first["name"]).To(Equal("server1"))
			Expect(first["health"]).To(Equal("healthy"))
		})

		It("should degrade with a null best pick when nothing is healthy", func() {
			service.records = []health.Record{
				{Name: "server1", Status: health.StatusUnhealthy},
				{Name: "server2", Status: health.StatusError},
			}

			rec, body := get("/health")

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(body["status"]).To(Equal("degraded"))
			Expect(body["healthy_servers"]).To(BeNumerically("==", 0))
			Expect(body).To(HaveKey("best_server"))
			Expect(body["best_server"]).To(BeNil())
		})

		It("should handle an empty pool snapshot", func() {
			service.records = nil

			rec, body := get("/health")

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(body["status"]).To(Equal("degraded"))
			Expect(body["total_servers"]).To(BeNumerically("==", 0))
		})
	})

	Describe("GET /servers/{name}/health", func() {
		It("should return the record for a known upstream", func() {
			service.one = healthyRecord("server1", 88)

			rec, body := get("/servers/server1/health")

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(body["name"]).To(Equal("server1"))
			Expect(body["health"]).To(Equal("healthy"))
			Expect(body["score"]).To(BeNumerically("==", 88))
			Expect(body["status_code"]).To(BeNumerically("==", 200))
			Expect(body).To(HaveKey("error"))
			Expect(body["error"]).To(BeNil())
		})

		It("should answer 404 for an unknown upstream", func() {
			service.oneErr = fmt.Errorf("%w: %q", engine.ErrUnknownUpstream, "server9")

			rec, body := get("/servers/server9/health")

			Expect(rec.Code).To(Equal(http.StatusNotFound))
			Expect(body["error"]).To(Equal("Server not found"))
		})

		It("should answer 500 for unexpected failures", func() {
			service.oneErr = fmt.Errorf("boom")

			rec, body := get("/servers/server1/health")

			Expect(rec.Code).To(Equal(http.StatusInternalServerError))
			Expect(body["error"]).To(Equal("Internal server error"))
		})
	})

	Describe("unknown routes", func() {
		It("should answer 404 as JSON", func() {
			rec, body := get("/nope")

			Expect(rec.Code).To(Equal(http.StatusNotFound))
			Expect(rec.Header().Get("Content-Type")).To(Equal("application/json"))
			Expect(body["error"]).To(Equal("Endpoint not found"))
		})
	})
})

package middleware_test

import (
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"airoi.app/assessor/internal/http/middleware"
)

var _ = Describe("Middleware", func() {
	var router *gin.Engine

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
	})

	serve := func(method, path, origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		if origin != "" {
			req.Header.Set("Origin", origin)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	Describe("Recovery", func() {
		It("answers 500 when a handler panics", func() {
			router.Use(middleware.Recovery(), middleware.Logger())
			router.GET("/panic", func(*gin.Context) { panic("boom") })

			w := serve(http.MethodGet, "/panic", "")
			Expect(w.Code).To(Equal(http.StatusInternalServerError))
			Expect(w.Body.String()).To(ContainSubstring("internal server error"))
		})
	})

	Describe("CORS", func() {
		BeforeEach(func() {
			router.Use(middleware.CORS([]string{"https://app.airoi.example"}))
			router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
		})

		It("allows listed origins", func() {
			w := serve(http.MethodGet, "/ping", "https://app.airoi.example")
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Header().Get("Access-Control-Allow-Origin")).To(Equal("https://app.airoi.example"))
		})

		It("does not echo unknown origins", func() {
			w := serve(http.MethodGet, "/ping", "https://evil.example")
			Expect(w.Header().Get("Access-Control-Allow-Origin")).To(BeEmpty())
		})

		It("short-circuits preflight requests", func() {
			w := serve(http.MethodOptions, "/ping", "https://app.airoi.example")
			Expect(w.Code).To(Equal(http.StatusNoContent))
		})
	})

	It("allows any origin with a wildcard", func() {
		router.Use(middleware.CORS([]string{"*"}))
		router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

		w := serve(http.MethodGet, "/ping", "https://anywhere.example")
		Expect(w.Header().Get("Access-Control-Allow-Origin")).To(Equal("*"))
	})
})

package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"campcart/internal/auth"
	cartctrl "campcart/internal/cart/controller"
	checkoutctrl "campcart/internal/checkout/controller"
)

const requestTimeout = 30 * time.Second

func NewRouter(cartCtrl *cartctrl.CartController, checkoutCtrl *checkoutctrl.CheckoutController, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))
		r.Use(auth.Middleware)

		r.Get("/availability/services/{serviceId}", cartCtrl.CheckAvailability)

		r.Route("/carts/{cartId}", func(r chi.Router) {
			r.Get("/", cartCtrl.GetCart)
			r.Post("/items", cartCtrl.AddItem)
			r.Patch("/items/{itemId}", cartCtrl.UpdateItem)
			r.Delete("/items/{itemId}", cartCtrl.RemoveItem)
			r.Put("/promo", cartCtrl.ApplyPromo)
			r.Delete("/promo", cartCtrl.RemovePromo)

			r.Post("/checkout", checkoutCtrl.Submit)
			r.Get("/checkout", checkoutCtrl.LatestRecord)
			r.Delete("/checkout", checkoutCtrl.Abandon)
			r.Post("/checkout/payment", checkoutCtrl.ResumePayment)
		})
	})

	return r
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("request served",
				zap.String("requestId", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lending-engine/internal/api/handler"
	mw "lending-engine/internal/api/middleware"
	"lending-engine/internal/config"
	"lending-engine/internal/domain/emi"
	"lending-engine/internal/domain/loan"
)

func SetupRouter(loanService loan.LoanService, emiService emi.EMIService, clock emi.Clock, cfg *config.Config, logger *slog.Logger) *chi.Mux {
	router := chi.NewRouter()

	setupMiddleware(router, cfg, logger)
	setupMetricsEndpoint(router, cfg, logger)

	loanHandler := handler.NewLoanHandler(loanService, logger)
	emiHandler := handler.NewEMIHandler(emiService, clock, logger)

	setupLoanRoutes(router, loanHandler, emiHandler)
	setupEMIRoutes(router, emiHandler)
	setupAdminRoutes(router, emiHandler)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	return router
}

func setupMiddleware(router *chi.Mux, cfg *config.Config, logger *slog.Logger) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(mw.StructuredLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(middleware.Timeout(60 * time.Second))
	router.Use(mw.NewRateLimiterMiddleware(cfg.Server.RateLimit, logger).Middleware)
	router.Use(mw.MetricsMiddleware())
}

func setupMetricsEndpoint(router *chi.Mux, cfg *config.Config, logger *slog.Logger) {
	metricsPath := cfg.Metrics.Path
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	logger.Info("Setting up Prometheus metrics endpoint", "path", metricsPath)
	router.Handle(metricsPath, promhttp.Handler())
}

func setupLoanRoutes(router *chi.Mux, loanHandler *handler.LoanHandler, emiHandler *handler.EMIHandler) {
	router.Route("/loans", func(r chi.Router) {
		r.Post("/", loanHandler.CreateLoan)
		r.Route("/{loanID}", func(r chi.Router) {
			r.Get("/", loanHandler.GetLoan)
			r.Post("/approve", loanHandler.ApproveLoan)
			r.Post("/reject", loanHandler.RejectLoan)
			r.Get("/schedule", emiHandler.GetSchedule)
			r.Get("/stats", emiHandler.GetLoanStats)
		})
	})

	router.Get("/users/{userID}/loans", loanHandler.ListLoansByUser)
}

func setupEMIRoutes(router *chi.Mux, emiHandler *handler.EMIHandler) {
	router.Route("/emis/{emiID}", func(r chi.Router) {
		r.Post("/payment-request", emiHandler.RequestPayment)
		r.Delete("/payment-request", emiHandler.CancelPaymentRequest)
		r.Post("/payment", emiHandler.ConfirmPayment)
		r.Delete("/penalty", emiHandler.ClearPenalty)
	})
}

func setupAdminRoutes(router *chi.Mux, emiHandler *handler.EMIHandler) {
	router.Route("/admin/sweeps", func(r chi.Router) {
		r.Post("/overdue", emiHandler.RunOverdueSweep)
		r.Post("/correction", emiHandler.RunCorrectionSweep)
	})
}

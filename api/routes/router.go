package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tbraams/barkeep-backend/api/controllers"
	"github.com/tbraams/barkeep-backend/api/middleware"
	"github.com/tbraams/barkeep-backend/internal/authz"
	containersvc "github.com/tbraams/barkeep-backend/internal/containers"
	depositsvc "github.com/tbraams/barkeep-backend/internal/deposits"
	finesvc "github.com/tbraams/barkeep-backend/internal/fines"
	invoicesvc "github.com/tbraams/barkeep-backend/internal/invoices"
	ledgersvc "github.com/tbraams/barkeep-backend/internal/ledger"
	payoutsvc "github.com/tbraams/barkeep-backend/internal/payouts"
	possvc "github.com/tbraams/barkeep-backend/internal/pointsofsale"
	productsvc "github.com/tbraams/barkeep-backend/internal/products"
	"github.com/tbraams/barkeep-backend/internal/users"
	"github.com/tbraams/barkeep-backend/pkg/config"
	"github.com/tbraams/barkeep-backend/pkg/logger"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	readiness map[string]controllers.Pinger,
	auth authz.Authorizer,
	userRepo *users.Repository,
	productService productsvc.Service,
	containerService containersvc.Service,
	posService possvc.Service,
	ledgerService ledgersvc.Service,
	fineService finesvc.Service,
	depositService depositsvc.Service,
	invoiceService invoicesvc.Service,
	payoutService payoutsvc.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Actor(userRepo, logg))

		r.Route("/users", func(r chi.Router) {
			r.Get("/{userId}", controllers.GetUser(userRepo, auth, logg))
			r.Get("/{userId}/balance", controllers.GetBalance(ledgerService, auth, logg))
		})

		r.Route("/products", func(r chi.Router) {
			r.Post("/", controllers.CreateProduct(productService, auth, cfg.Ledger, logg))
			r.Get("/", controllers.ListProducts(productService, logg))
			r.Get("/{productId}", controllers.GetProduct(productService, logg))
			r.Get("/{productId}/revisions/{revision}", controllers.GetProductRevision(productService, logg))
			r.Put("/{productId}/draft", controllers.SaveProductDraft(productService, auth, cfg.Ledger, logg))
			r.Delete("/{productId}/draft", controllers.DiscardProductDraft(productService, auth, logg))
		})

		r.Route("/containers", func(r chi.Router) {
			r.Post("/", controllers.CreateContainer(containerService, auth, logg))
			r.Get("/", controllers.ListContainers(containerService, logg))
			r.Get("/{containerId}", controllers.GetContainer(containerService, logg))
			r.Get("/{containerId}/revisions/{revision}", controllers.GetContainerRevision(containerService, logg))
			r.Put("/{containerId}/draft", controllers.SaveContainerDraft(containerService, auth, logg))
			r.Delete("/{containerId}/draft", controllers.DiscardContainerDraft(containerService, auth, logg))
		})

		r.Route("/points-of-sale", func(r chi.Router) {
			r.Post("/", controllers.CreatePointOfSale(posService, auth, logg))
			r.Get("/", controllers.ListPointsOfSale(posService, logg))
			r.Get("/{posId}", controllers.GetPointOfSale(posService, logg))
			r.Get("/{posId}/revisions/{revision}", controllers.GetPointOfSaleRevision(posService, logg))
			r.Put("/{posId}/draft", controllers.SavePointOfSaleDraft(posService, auth, logg))
			r.Delete("/{posId}/draft", controllers.DiscardPointOfSaleDraft(posService, auth, logg))
		})

		r.Route("/transfers", func(r chi.Router) {
			r.Get("/", controllers.ListTransfers(ledgerService, auth, logg))
			r.Get("/{transferId}", controllers.GetTransfer(ledgerService, auth, logg))
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Post("/", controllers.RecordTransaction(ledgerService, auth, logg))
			r.Get("/", controllers.ListTransactions(ledgerService, auth, logg))
			r.Get("/{transactionId}", controllers.GetTransaction(ledgerService, auth, logg))
		})

		r.Route("/deposits", func(r chi.Router) {
			r.Post("/", controllers.CreateDeposit(depositService, auth, cfg.Ledger, logg))
			r.Get("/", controllers.ListDeposits(depositService, auth, logg))
			r.Get("/{depositId}", controllers.GetDeposit(depositService, auth, logg))
		})

		r.Route("/invoices", func(r chi.Router) {
			r.Get("/", controllers.ListInvoices(invoiceService, auth, logg))
			r.Get("/{invoiceId}", controllers.GetInvoice(invoiceService, auth, logg))
		})

		r.Route("/payouts", func(r chi.Router) {
			r.Post("/", controllers.CreatePayout(payoutService, auth, cfg.Ledger, logg))
			r.Get("/", controllers.ListPayouts(payoutService, auth, logg))
			r.Get("/{payoutId}", controllers.GetPayout(payoutService, auth, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Actor(userRepo, logg))
		r.Use(middleware.RequireAdmin(logg))

		r.Route("/users", func(r chi.Router) {
			r.Post("/", controllers.CreateUser(userRepo, logg))
			r.Get("/", controllers.ListUsers(userRepo, logg))
		})

		r.Post("/products/{productId}/approve", controllers.ApproveProduct(productService, logg))
		r.Post("/containers/{containerId}/approve", controllers.ApproveContainer(containerService, logg))
		r.Post("/points-of-sale/{posId}/approve", controllers.ApprovePointOfSale(posService, logg))

		r.Post("/transfers", controllers.CreateTransfer(ledgerService, cfg.Ledger, logg))

		r.Route("/fines", func(r chi.Router) {
			r.Post("/calculate", controllers.CalculateFines(fineService, logg))
			r.Post("/handout", controllers.HandOutFines(fineService, logg))
			r.Post("/warnings", controllers.SendFineWarnings(fineService, logg))
			r.Post("/waive/{userId}", controllers.WaiveFines(fineService, logg))
			r.Delete("/{fineId}", controllers.DeleteFine(fineService, logg))
		})

		r.Post("/deposits/{depositId}/state", controllers.AdvanceDeposit(depositService, logg))

		r.Route("/invoices", func(r chi.Router) {
			r.Post("/", controllers.CreateInvoice(invoiceService, cfg.Ledger, logg))
			r.Post("/{invoiceId}/state", controllers.AdvanceInvoice(invoiceService, logg))
			r.Delete("/{invoiceId}", controllers.DeleteInvoice(invoiceService, logg))
		})

		r.Route("/payouts", func(r chi.Router) {
			r.Post("/{payoutId}/approve", controllers.ApprovePayout(payoutService, logg))
			r.Post("/{payoutId}/deny", controllers.DenyPayout(payoutService, logg))
		})
	})

	return r
}

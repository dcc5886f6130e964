// main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"

	"cedarbackend/internal/cart"
	"cedarbackend/internal/catalog"
	"cedarbackend/internal/checkout"
	"cedarbackend/internal/commerce"
	"cedarbackend/internal/config"
	"cedarbackend/internal/data"
	"cedarbackend/internal/form"
	"cedarbackend/internal/logger"
	"cedarbackend/internal/middleware"
	"cedarbackend/internal/money"
	"cedarbackend/internal/payment"
)

type App struct {
	addr          string
	handler       http.Handler
	connections   sync.WaitGroup
	totalRequests int64
}

func main() {
	// Step 1: Environment first, then logging; nothing logs before Setup.
	config.LoadEnv()
	if err := logger.Setup(config.LoggerConfig()); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	logger.LogInfo("Environment loaded. Logger ready.")

	// Step 2: Remaining configuration
	config.LoadStoreConfig()
	config.LoadCORSConfig()
	config.LoadDataConfig()
	config.LogCurrentEnvironment()

	// Step 3: Local database
	if err := data.InitDB(config.DBPath()); err != nil {
		logger.LogFatal("Failed to initialize database: %v", err)
	}
	defer data.CloseDB()

	// Step 4: Product catalog, from file and/or the commerce backend
	cat := catalog.NewService()
	if path := config.CatalogPath(); path != "" {
		if err := cat.LoadFromFile(path); err != nil {
			logger.LogFatal("Failed to load catalog from %s: %v", path, err)
		}
	}
	if config.CheckoutConfigured() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		products, err := catalog.FetchMedusaProducts(ctx,
			config.MedusaBackendURL(), config.MedusaPublishableKey(), config.MedusaRegionID())
		cancel()
		if err != nil {
			logger.LogWarn("Could not fetch products from Medusa, serving local catalog only: %v", err)
		} else {
			cat.Merge(products)
		}
	}
	logger.LogInfo("Catalog ready with %d products", cat.Count())

	// Step 5: Sessions, commerce client, checkout
	registry := cart.NewRegistry(config.SessionTTL())
	stopSweeper := registry.StartSweeper(5 * time.Minute)
	defer stopSweeper()

	client := commerce.NewClient(config.MedusaBackendURL(), config.MedusaPublishableKey(), config.MedusaRegionID())
	confirmer := payment.NewStripeConfirmer(config.StripeSecretKey())

	cartHandlers := &cart.Handlers{Registry: registry, Catalog: cat}
	checkoutHandlers := checkout.NewHandlers(registry, cat, client, confirmer, config.CheckoutConfigured)
	checkoutHandlers.OnOrderPlaced = recordOrder

	// Step 6: Run server
	app := &App{
		addr:    serverAddress(),
		handler: routes(cat, cartHandlers, checkoutHandlers),
	}
	app.Run()
}

// recordOrder writes the local completion record. The commerce backend owns
// the order; a failed insert is logged, never surfaced to the customer.
func recordOrder(orderID string, remoteCart *commerce.Cart, subtotalMinor int64) {
	record := data.CompletedOrder{
		ID:          uuid.NewString(),
		OrderID:     orderID,
		AmountMinor: subtotalMinor,
		Currency:    money.DefaultCurrency,
		CompletedAt: time.Now(),
	}
	if remoteCart != nil {
		record.RemoteCartID = remoteCart.ID
		record.Email = remoteCart.Email
		if remoteCart.CurrencyCode != "" {
			record.Currency = remoteCart.CurrencyCode
		}
	}
	if err := data.SaveCompletedOrder(record); err != nil {
		logger.LogError("Failed to record completed order %s: %v", orderID, err)
	}
}

func serverAddress() string {
	host := os.Getenv("SERVER_HOST")
	if host == "" {
		host = "127.0.0.1"
	}
	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "5051"
	}
	return host + ":" + port
}

// routes sets up all API routes.
func routes(cat *catalog.Service, carts *cart.Handlers, co *checkout.Handlers) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.Handle("GET /metrics", middleware.MetricsHandler())

	// Public endpoints
	mux.HandleFunc("GET /api/products", middleware.PublicMiddleware(cat.ListHandler))
	mux.HandleFunc("GET /api/products/{slug}", middleware.PublicMiddleware(cat.DetailHandler))
	mux.HandleFunc("POST /api/contact", middleware.PublicMiddleware(form.ContactHandler))
	mux.HandleFunc("POST /api/newsletter", middleware.PublicMiddleware(form.SubscribeHandler))

	// Session creation needs no token yet
	mux.HandleFunc("POST /api/cart", middleware.PublicMiddleware(carts.NewSession))

	// Session-scoped cart endpoints
	mux.HandleFunc("GET /api/cart", middleware.APIMiddleware(carts.State))
	mux.HandleFunc("POST /api/cart/items", middleware.APIMiddleware(carts.AddItem))
	mux.HandleFunc("POST /api/cart/items/update", middleware.APIMiddleware(carts.UpdateItem))
	mux.HandleFunc("POST /api/cart/items/remove", middleware.APIMiddleware(carts.RemoveItem))
	mux.HandleFunc("POST /api/cart/open", middleware.APIMiddleware(carts.OpenPanel))
	mux.HandleFunc("POST /api/cart/close", middleware.APIMiddleware(carts.ClosePanel))

	// Session-scoped checkout endpoints
	mux.HandleFunc("POST /api/checkout/start", middleware.APIMiddleware(co.Start))
	mux.HandleFunc("GET /api/checkout/state", middleware.APIMiddleware(co.State))
	mux.HandleFunc("POST /api/checkout/email", middleware.APIMiddleware(co.SubmitEmail))
	mux.HandleFunc("POST /api/checkout/address", middleware.APIMiddleware(co.SubmitAddress))
	mux.HandleFunc("POST /api/checkout/shipping", middleware.APIMiddleware(co.SubmitShipping))
	mux.HandleFunc("POST /api/checkout/pay", middleware.APIMiddleware(co.Pay))
	mux.HandleFunc("POST /api/checkout/retry", middleware.APIMiddleware(co.Retry))

	return middleware.CORS(config.AllowedOrigin(), middleware.Metrics(mux))
}

// Run starts the HTTP server and blocks until shutdown.
func (a *App) Run() {
	server := &http.Server{
		Addr:         a.addr,
		Handler:      a.trackConnections(a.handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.LogInfo("Starting server on %s", a.addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.LogFatal("Server failed: %v", err)
		}
	}()

	<-stop
	logger.LogInfo("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.LogError("Server shutdown error: %v", err)
	}

	logger.LogInfo("Waiting for active connections to finish...")
	a.connections.Wait()
	logger.LogInfo("All connections closed. Total requests handled: %d", atomic.LoadInt64(&a.totalRequests))
	logger.LogInfo("Server shut down gracefully")
}

// trackConnections counts active connections and total requests.
func (a *App) trackConnections(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.connections.Add(1)
		atomic.AddInt64(&a.totalRequests, 1)
		defer a.connections.Done()

		h.ServeHTTP(w, r)
	})
}

// Package app wires repositories and services for the binaries.
package app

import (
	"context"
	"time"

	"backoffice/internal/cache"
	"backoffice/internal/config"
	"backoffice/internal/events"
	"backoffice/internal/external"
	"backoffice/internal/logger"
	"backoffice/internal/repository"
	"backoffice/internal/service"

	"gorm.io/gorm"
)

// Services is the set of application services built over one database.
type Services struct {
	Catalog    service.CatalogService
	Prices     service.PriceService
	Contracts  service.ContractService
	Invoices   service.InvoiceService
	Payments   service.PaymentService
	BillingRun service.BillingRunService
	Audit      service.AuditService
}

// NewServices builds every service. publisher receives committed events in
// addition to the audit log.
func NewServices(cfg *config.Config, db *gorm.DB, priceCache cache.PriceCache, publisher events.Publisher) *Services {
	tm := repository.NewTransactionManager(db)
	serviceRepo := repository.NewServiceRepository(db)
	priceRepo := repository.NewPriceRepository(db)
	contractRepo := repository.NewContractRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	sequenceRepo := repository.NewSequenceRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	pub := events.Multi{events.NewAuditPublisher(auditRepo)}
	if publisher != nil {
		pub = append(pub, publisher)
	}
	ncf := external.NewSequenceNCFIssuer(cfg.NCFSeries, sequenceRepo)

	prices := service.NewPriceService(tm, serviceRepo, priceRepo, priceCache, pub)
	contracts := service.NewContractService(tm, contractRepo, serviceRepo, sequenceRepo, prices,
		external.NewDBDocumentStore(contractRepo), pub, cfg.DefaultCurrency)

	return &Services{
		Catalog:   service.NewCatalogService(tm, serviceRepo, priceRepo, pub),
		Prices:    prices,
		Contracts: contracts,
		Invoices: service.NewInvoiceService(tm, invoiceRepo, paymentRepo, serviceRepo, sequenceRepo, prices, ncf, pub,
			service.InvoiceSettings{DueDays: cfg.InvoiceDueDays, DefaultCurrency: cfg.DefaultCurrency}),
		Payments:   service.NewPaymentService(tm, paymentRepo, invoiceRepo, sequenceRepo, pub, cfg.DefaultCurrency),
		BillingRun: service.NewBillingRunService(tm, contractRepo, invoiceRepo, sequenceRepo, ncf, pub, cfg.InvoiceDueDays),
		Audit:      service.NewAuditService(auditRepo),
	}
}

// NewPriceCache prefers Redis when configured and falls back to an in-process
// cache when Redis is unreachable. The returned func releases the connection.
func NewPriceCache(ctx context.Context, cfg *config.Config) (cache.PriceCache, func()) {
	log := logger.WithComponent("cache")
	if cfg.PriceCacheTTL <= 0 {
		return cache.Nop{}, func() {}
	}
	if cfg.RedisAddr == "" {
		return cache.NewMemory(cfg.PriceCacheTTL), func() {}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	client, err := cache.NewRedisClient(pingCtx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis unavailable, using in-memory price cache")
		return cache.NewMemory(cfg.PriceCacheTTL), func() {}
	}
	log.Info().Str("addr", cfg.RedisAddr).Msg("Using Redis price cache")
	return cache.NewRedisPriceCache(client, cfg.PriceCacheTTL), func() { _ = client.Close() }
}

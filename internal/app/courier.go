package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/samvad-hq/samvad-kindle-courier/internal/assembler"
	"github.com/samvad-hq/samvad-kindle-courier/internal/config"
	"github.com/samvad-hq/samvad-kindle-courier/internal/delivery"
	"github.com/samvad-hq/samvad-kindle-courier/internal/extractor"
	"github.com/samvad-hq/samvad-kindle-courier/internal/fetcher"
	"github.com/samvad-hq/samvad-kindle-courier/internal/httpapi"
	"github.com/samvad-hq/samvad-kindle-courier/internal/logger"
	"github.com/samvad-hq/samvad-kindle-courier/internal/packager"
	"github.com/samvad-hq/samvad-kindle-courier/internal/pipeline"
	"github.com/samvad-hq/samvad-kindle-courier/internal/storage"
	"github.com/samvad-hq/samvad-kindle-courier/pkg/mailer"
	"github.com/samvad-hq/samvad-kindle-courier/pkg/mailer/resend"
	"github.com/samvad-hq/samvad-kindle-courier/pkg/mailer/smtp"
	"github.com/samvad-hq/samvad-kindle-courier/pkg/publishers"
)

const shutdownTimeout = 15 * time.Second

// Courier represents the article courier runtime. It owns the HTTP server,
// the delivery pipeline and the resources the pipeline reports into.
type Courier struct {
	cfg    *config.Config
	server *http.Server
	fanout *publishers.Fanout
	store  storage.Store
	log    logger.Logger
}

// NewCourier builds a courier runtime from config.
func NewCourier(ctx context.Context, cfg *config.Config, log logger.Logger) (*Courier, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = &logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if !cfg.HasMailCredentials() {
		log.WarnObj("mail credentials missing; deliveries will fail until configured", "mail_config", map[string]any{
			"provider": cfg.MailProvider,
		})
	}
	sender := newMailSender(cfg)

	fanout, err := buildFanout(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	storeOpts := storage.Options{
		RecordTTL:       cfg.StorageTTL,
		CleanupInterval: cfg.StorageCleanupInterval,
	}
	store, err := storage.NewStore(cfg.StorageType, cfg.BBoltPath, storeOpts)
	if err != nil {
		_ = fanout.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type":                     cfg.StorageType,
		"path":                     cfg.BBoltPath,
		"record_ttl_seconds":       int(cfg.StorageTTL.Seconds()),
		"cleanup_interval_seconds": int(cfg.StorageCleanupInterval.Seconds()),
	})

	p, err := pipeline.New(pipeline.Stages{
		Fetcher:   fetcher.New(nil, cfg.FetchTimeout),
		Extractor: extractor.New(),
		Assembler: assembler.New(),
		Packager:  packager.New(cfg.UploadsDir),
		Deliverer: delivery.NewAgent(sender, cfg.DeliveryTimeout, log),
	},
		pipeline.WithEmailSuffixes(cfg.AcceptedEmailSuffixes),
		pipeline.WithObservers(storage.NewAuditObserver(store), fanout),
		pipeline.WithLogger(log),
	)
	if err != nil {
		_ = fanout.Close()
		_ = store.Close()
		return nil, fmt.Errorf("build pipeline: %w", err)
	}

	router := httpapi.NewRouter(p, store, httpapi.Options{
		StaticDir:          cfg.StaticDir,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		Development:        cfg.IsDevelopment(),
		Log:                log,
	})

	// WriteTimeout leaves room for a full fetch plus delivery.
	server := &http.Server{
		Addr:              net.JoinHostPort("", strconv.Itoa(cfg.Port)),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.FetchTimeout + cfg.DeliveryTimeout + 30*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &Courier{
		cfg:    cfg,
		server: server,
		fanout: fanout,
		store:  store,
		log:    log,
	}, nil
}

// Handler exposes the HTTP handler tree, mostly for tests.
func (c *Courier) Handler() http.Handler {
	if c == nil || c.server == nil {
		return nil
	}
	return c.server.Handler
}

// Run serves HTTP until the context is cancelled, then drains in-flight requests.
func (c *Courier) Run(ctx context.Context) error {
	if c == nil || c.server == nil {
		return fmt.Errorf("courier is not initialized")
	}
	defer c.closeResources()

	errCh := make(chan error, 1)
	go func() {
		c.log.InfoObj("http server listening", "server_state", map[string]any{
			"addr":           c.server.Addr,
			"env":            c.cfg.Env,
			"mail_provider":  c.cfg.MailProvider,
			"publishers":     c.fanout.Size(),
			"uploads_dir":    c.cfg.UploadsDir,
			"static_dir":     c.cfg.StaticDir,
			"rate_limit_rpm": c.cfg.RateLimitPerMinute,
		})
		errCh <- c.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		c.log.InfoObj("http server shutting down", "reason", ctx.Err().Error())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := c.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// closeResources safely closes storage and publishers, logging any errors encountered.
func (c *Courier) closeResources() {
	if c.fanout != nil {
		if err := c.fanout.Close(); err != nil {
			c.log.ErrorObj("publishers close failed", "error", err.Error())
		}
	}
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			c.log.ErrorObj("storage close failed", "error", err.Error())
		}
	}
}

// newMailSender builds the configured mail transport once for the process.
func newMailSender(cfg *config.Config) mailer.Sender {
	if cfg.MailProvider == config.MailProviderResend {
		return resend.New(resend.Config{
			APIKey:      cfg.ResendAPIKey,
			SenderEmail: cfg.MailFrom,
			SenderName:  cfg.AppName,
		})
	}
	return smtp.New(smtp.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.GmailUser,
		Password: cfg.GmailAppPassword,
		From:     cfg.MailFrom,
		Timeout:  cfg.DeliveryTimeout,
	})
}

// buildFanout loads event publishers. No publishers file means no publishers.
func buildFanout(ctx context.Context, cfg *config.Config, log logger.Logger) (*publishers.Fanout, error) {
	if strings.TrimSpace(cfg.PublishersFile) == "" {
		log.InfoObj("no publishers file configured; delivery events disabled", "publishers_meta", map[string]any{})
		return publishers.NewFanout(nil, log), nil
	}

	publisherReg, err := publishers.LoadRegistry(cfg.PublishersFile)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}

	enabledPublishers := publisherReg.Enabled()
	pubClients, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabledPublishers, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}

	publisherSummaries := make([]map[string]string, 0, len(enabledPublishers))
	for _, pubCfg := range enabledPublishers {
		publisherSummaries = append(publisherSummaries, map[string]string{
			"id":   pubCfg.ID,
			"type": pubCfg.Type,
		})
	}
	log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(publisherSummaries),
		"publishers": publisherSummaries,
	})
	return publishers.NewFanout(pubClients, log), nil
}

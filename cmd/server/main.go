package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/redis/go-redis/v9"

	"github.com/lawsonmobiletax/crm-server/internal/api"
	"github.com/lawsonmobiletax/crm-server/internal/assistant"
	"github.com/lawsonmobiletax/crm-server/internal/auth"
	"github.com/lawsonmobiletax/crm-server/internal/config"
	"github.com/lawsonmobiletax/crm-server/internal/notify"
	"github.com/lawsonmobiletax/crm-server/internal/repository/postgres"
	"github.com/lawsonmobiletax/crm-server/internal/service/campaign"
	"github.com/lawsonmobiletax/crm-server/internal/service/lead"
	"github.com/lawsonmobiletax/crm-server/internal/service/payment"
	"github.com/lawsonmobiletax/crm-server/internal/storage"
	"github.com/lawsonmobiletax/crm-server/internal/stripe"
)

// platformSlug names the organization that receives anonymous public
// payments. It is seeded by the migrations.
const platformSlug = "lawson-mobile-tax"

func main() {
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	db, err := postgres.Open(cfg.Database)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer db.Close()

	userRepo := postgres.NewUserRepo(db)
	leadRepo := postgres.NewLeadRepo(db)
	clientRepo := postgres.NewClientRepo(db)
	returnRepo := postgres.NewReturnRepo(db)
	paymentRepo := postgres.NewPaymentRepo(db)
	campaignRepo := postgres.NewCampaignRepo(db)
	documentRepo := postgres.NewDocumentRepo(db)
	chatRepo := postgres.NewChatRepo(db)
	statsRepo := postgres.NewStatsRepo(db)

	var cache *redis.Client
	if cfg.Redis.Enabled {
		cache = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer cache.Close()
	}

	ctx := context.Background()

	// One AWS config serves SES, S3, and Bedrock; per-service regions are
	// applied at client construction.
	baseAWS, awsErr := awsconfig.LoadDefaultConfig(ctx)
	if awsErr != nil && (cfg.Email.Enabled || cfg.Storage.Type == "s3" || cfg.Assistant.Enabled) {
		log.Fatalf("load aws config: %v", awsErr)
	}

	// Notifications: SES for email, Twilio for SMS, both degrade to
	// logging when unconfigured.
	var sesClient *sesv2.Client
	if cfg.Email.Enabled {
		sesClient = sesv2.NewFromConfig(baseAWS, func(o *sesv2.Options) {
			o.Region = cfg.Email.Region
		})
	}
	mailer := notify.NewSESMailer(sesClient, cfg.Email)
	sms := notify.NewTwilioClient(cfg.SMS)
	dispatcher := notify.NewDispatcher(mailer, sms)
	defer dispatcher.Close()

	// Document storage backend.
	var files storage.Backend
	switch cfg.Storage.Type {
	case "s3":
		s3Client := s3.NewFromConfig(baseAWS, func(o *s3.Options) {
			o.Region = cfg.Storage.AWSRegion
		})
		files = storage.NewS3(s3Client, cfg.Storage.S3Bucket)
	default:
		files, err = storage.NewLocal(cfg.Storage.LocalPath)
		if err != nil {
			log.Fatalf("init local storage: %v", err)
		}
	}

	// Payment provider: live Stripe only when credentials were present at
	// startup; otherwise the mock strategy settles locally.
	var provider payment.CheckoutProvider
	if cfg.Payment.Mode == config.PaymentModeLive {
		provider = stripe.NewClient(cfg.Payment.SecretKey, cfg.Payment.Timeout())
	}
	log.Printf("payment mode: %s", cfg.Payment.Mode)

	var bedrock *bedrockruntime.Client
	if cfg.Assistant.Enabled {
		bedrock = bedrockruntime.NewFromConfig(baseAWS, func(o *bedrockruntime.Options) {
			o.Region = cfg.Assistant.Region
		})
	}

	authMgr := auth.NewManager(cfg.Auth, userRepo)
	leadSvc := lead.NewService(leadRepo, dispatcher)
	paySvc := payment.NewService(paymentRepo, provider, cfg.Payment)
	campSvc := campaign.NewService(campaignRepo, campaignRepo, mailer, cfg.Server.BaseURL)
	chatSvc := assistant.NewService(bedrock, chatRepo, cfg.Assistant)

	// Resolve the tenant for anonymous payments once at startup.
	anonOrgID := ""
	if org, err := userRepo.GetOrganizationBySlug(ctx, platformSlug); err == nil {
		anonOrgID = org.ID
	} else {
		log.Printf("platform organization %q not found, anonymous checkout disabled: %v", platformSlug, err)
	}

	handlers := api.NewHandlers(api.HandlersConfig{
		Cfg:        cfg,
		Auth:       authMgr,
		Leads:      leadSvc,
		Payments:   paySvc,
		Campaigns:  campSvc,
		Assistant:  chatSvc,
		Clients:    clientRepo,
		Returns:    returnRepo,
		Documents:  documentRepo,
		Stats:      statsRepo,
		Accounts:   userRepo,
		Files:      files,
		Dispatcher: dispatcher,
		Cache:      cache,
		AnonOrgID:  anonOrgID,
	})

	hc := api.NewHealthChecker(db, cache, dispatcher)
	srv := api.NewServer(cfg, handlers, hc)

	// Expired sessions are swept in the background.
	go func() {
		t := time.NewTicker(time.Hour)
		defer t.Stop()
		for range t.C {
			authMgr.CleanupExpiredSessions()
		}
	}()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatalf("server: %v", err)
	case sig := <-stop:
		log.Printf("received %s, shutting down", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

// Package api exposes the REST surface of the CRM. Handlers derive
// tenant scope exclusively from the authenticated session; no request
// may name an organization directly.
package api

import (
	"context"

	"github.com/lawsonmobiletax/crm-server/internal/assistant"
	"github.com/lawsonmobiletax/crm-server/internal/auth"
	"github.com/lawsonmobiletax/crm-server/internal/config"
	"github.com/lawsonmobiletax/crm-server/internal/domain"
	"github.com/lawsonmobiletax/crm-server/internal/notify"
	"github.com/lawsonmobiletax/crm-server/internal/repository/postgres"
	"github.com/lawsonmobiletax/crm-server/internal/service/campaign"
	"github.com/lawsonmobiletax/crm-server/internal/service/lead"
	"github.com/lawsonmobiletax/crm-server/internal/service/payment"
	"github.com/lawsonmobiletax/crm-server/internal/storage"
	"github.com/redis/go-redis/v9"
)

// ClientStore is the persistence surface the client handlers need.
// *postgres.ClientRepo satisfies it.
type ClientStore interface {
	Get(ctx context.Context, orgID, id string) (*domain.Client, error)
	List(ctx context.Context, orgID string, f postgres.ClientFilter) ([]domain.Client, int, error)
	Create(ctx context.Context, c *domain.Client) error
	Update(ctx context.Context, orgID, id string, u postgres.ClientUpdateFields) error
	Delete(ctx context.Context, orgID, id string) error
}

// ReturnStore is the persistence surface the tax return handlers need.
// *postgres.ReturnRepo satisfies it.
type ReturnStore interface {
	Get(ctx context.Context, orgID, id string) (*domain.TaxReturn, error)
	List(ctx context.Context, orgID string, f postgres.ReturnFilter) ([]domain.TaxReturn, int, error)
	Create(ctx context.Context, t *domain.TaxReturn) error
	Update(ctx context.Context, orgID, id string, u postgres.ReturnUpdateFields) error
	Delete(ctx context.Context, orgID, id string) error
}

// DocumentStore is the persistence surface the document handlers need.
// *postgres.DocumentRepo satisfies it.
type DocumentStore interface {
	Create(ctx context.Context, d *domain.Document) error
	Get(ctx context.Context, orgID, id string) (*domain.Document, error)
	List(ctx context.Context, orgID string, f postgres.DocumentFilter) ([]domain.Document, int, error)
	Delete(ctx context.Context, orgID, id string) error
}

// StatsStore computes dashboard and analytics aggregates.
// *postgres.StatsRepo satisfies it.
type StatsStore interface {
	LeadCounts(ctx context.Context, orgID string) (*postgres.LeadCounts, error)
	ClientCount(ctx context.Context, orgID string) (int, error)
	ReturnStatusCounts(ctx context.Context, orgID string) (map[domain.ReturnStatus]int, error)
	Revenue(ctx context.Context, orgID string) (*postgres.RevenueTotals, error)
	PipelineValue(ctx context.Context, orgID string) (float64, error)
	MonthlyRevenue(ctx context.Context, orgID string, months int) ([]postgres.MonthlyRevenue, error)
	LeadSources(ctx context.Context, orgID string) ([]postgres.SourceCount, error)
	RecentLeads(ctx context.Context, orgID string, n int) ([]domain.Lead, error)
	RecentPayments(ctx context.Context, orgID string, n int) ([]domain.Payment, error)
	CampaignPerformance(ctx context.Context, orgID string) ([]postgres.CampaignPerformance, error)
}

// AccountStore handles signup persistence. *postgres.UserRepo satisfies
// it.
type AccountStore interface {
	CreateOrganizationWithAdmin(ctx context.Context, org *domain.Organization, user *domain.User) error
}

// Handlers carries every dependency the HTTP layer needs.
type Handlers struct {
	cfg       *config.Config
	auth      *auth.Manager
	leads     *lead.Service
	payments  *payment.Service
	campaigns *campaign.Service
	assistant *assistant.Service

	clients   ClientStore
	returns   ReturnStore
	documents DocumentStore
	stats     StatsStore
	accounts  AccountStore

	files      storage.Backend
	dispatcher *notify.Dispatcher
	cache      *redis.Client

	// anonOrgID receives payments created without a session (public
	// checkout for flat-fee services). Resolved once at startup.
	anonOrgID string
}

// HandlersConfig bundles the constructor arguments.
type HandlersConfig struct {
	Cfg        *config.Config
	Auth       *auth.Manager
	Leads      *lead.Service
	Payments   *payment.Service
	Campaigns  *campaign.Service
	Assistant  *assistant.Service
	Clients    ClientStore
	Returns    ReturnStore
	Documents  DocumentStore
	Stats      StatsStore
	Accounts   AccountStore
	Files      storage.Backend
	Dispatcher *notify.Dispatcher
	Cache      *redis.Client
	AnonOrgID  string
}

// NewHandlers creates the handler set.
func NewHandlers(c HandlersConfig) *Handlers {
	return &Handlers{
		cfg:        c.Cfg,
		auth:       c.Auth,
		leads:      c.Leads,
		payments:   c.Payments,
		campaigns:  c.Campaigns,
		assistant:  c.Assistant,
		clients:    c.Clients,
		returns:    c.Returns,
		documents:  c.Documents,
		stats:      c.Stats,
		accounts:   c.Accounts,
		files:      c.Files,
		dispatcher: c.Dispatcher,
		cache:      c.Cache,
		anonOrgID:  c.AnonOrgID,
	}
}

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/lawsonmobiletax/crm-server/internal/auth"
	"github.com/lawsonmobiletax/crm-server/internal/domain"
	"github.com/lawsonmobiletax/crm-server/internal/pkg/httputil"
	"github.com/lawsonmobiletax/crm-server/internal/pkg/logger"
	"github.com/lawsonmobiletax/crm-server/internal/repository/postgres"
)

// analyticsCacheTTL bounds staleness of the analytics payload.
const analyticsCacheTTL = 60 * time.Second

// recentN bounds the recent-activity lists on the dashboard.
const recentN = 5

// DashboardStats is the aggregate payload for the dashboard.
type DashboardStats struct {
	Leads          *postgres.LeadCounts        `json:"leads"`
	ClientCount    int                         `json:"clientCount"`
	Returns        map[domain.ReturnStatus]int `json:"returnsByStatus"`
	Revenue        *postgres.RevenueTotals     `json:"revenue"`
	PipelineValue  float64                     `json:"pipelineValue"`
	RecentLeads    []domain.Lead               `json:"recentLeads"`
	RecentPayments []domain.Payment            `json:"recentPayments"`
}

// HandleDashboardStats computes the dashboard aggregates concurrently.
// Any failed aggregate fails the whole request: a dashboard that shows
// zeros for a broken query would be worse than an error.
//
//	GET /api/dashboard/stats
func (h *Handlers) HandleDashboardStats(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	stats := &DashboardStats{}
	errs := make(chan error, 7)

	go func() {
		var err error
		stats.Leads, err = h.stats.LeadCounts(ctx, session.OrgID)
		errs <- err
	}()
	go func() {
		var err error
		stats.ClientCount, err = h.stats.ClientCount(ctx, session.OrgID)
		errs <- err
	}()
	go func() {
		var err error
		stats.Returns, err = h.stats.ReturnStatusCounts(ctx, session.OrgID)
		errs <- err
	}()
	go func() {
		var err error
		stats.Revenue, err = h.stats.Revenue(ctx, session.OrgID)
		errs <- err
	}()
	go func() {
		var err error
		stats.PipelineValue, err = h.stats.PipelineValue(ctx, session.OrgID)
		errs <- err
	}()
	go func() {
		var err error
		stats.RecentLeads, err = h.stats.RecentLeads(ctx, session.OrgID, recentN)
		errs <- err
	}()
	go func() {
		var err error
		stats.RecentPayments, err = h.stats.RecentPayments(ctx, session.OrgID, recentN)
		errs <- err
	}()

	for i := 0; i < 7; i++ {
		if err := <-errs; err != nil {
			httputil.InternalError(w, err)
			return
		}
	}
	httputil.OK(w, stats)
}

// AnalyticsReport is the monthly revenue, acquisition, and campaign
// engagement breakdown.
type AnalyticsReport struct {
	MonthlyRevenue []postgres.MonthlyRevenue      `json:"monthlyRevenue"`
	LeadSources    []postgres.SourceCount         `json:"leadSources"`
	Campaigns      []postgres.CampaignPerformance `json:"campaignPerformance"`
	ConversionRate float64                        `json:"conversionRate"`
	GeneratedAt    time.Time                      `json:"generatedAt"`
}

// HandleAnalytics serves the analytics report, cached in Redis for 60
// seconds per organization. A cache outage degrades to a direct query.
//
//	GET /api/analytics/real-stats
func (h *Handlers) HandleAnalytics(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())
	cacheKey := "analytics:" + session.OrgID

	if h.cache != nil {
		if raw, err := h.cache.Get(r.Context(), cacheKey).Bytes(); err == nil {
			var report AnalyticsReport
			if json.Unmarshal(raw, &report) == nil {
				httputil.OK(w, report)
				return
			}
		}
	}

	report, err := h.buildAnalytics(r.Context(), session.OrgID)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	if h.cache != nil {
		if raw, err := json.Marshal(report); err == nil {
			if err := h.cache.Set(r.Context(), cacheKey, raw, analyticsCacheTTL).Err(); err != nil {
				logger.Error("analytics cache write failed", "error", err.Error())
			}
		}
	}
	httputil.OK(w, report)
}

func (h *Handlers) buildAnalytics(ctx context.Context, orgID string) (*AnalyticsReport, error) {
	monthly, err := h.stats.MonthlyRevenue(ctx, orgID, 12)
	if err != nil {
		return nil, err
	}
	sources, err := h.stats.LeadSources(ctx, orgID)
	if err != nil {
		return nil, err
	}
	campaigns, err := h.stats.CampaignPerformance(ctx, orgID)
	if err != nil {
		return nil, err
	}
	counts, err := h.stats.LeadCounts(ctx, orgID)
	if err != nil {
		return nil, err
	}
	report := &AnalyticsReport{
		MonthlyRevenue: monthly,
		LeadSources:    sources,
		Campaigns:      campaigns,
		GeneratedAt:    time.Now().UTC(),
	}
	if counts.Total > 0 {
		report.ConversionRate = float64(counts.Won) / float64(counts.Total) * 100
	}
	return report, nil
}

// HandleNotificationOutcomes exposes the async notification log for
// operators.
//
//	GET /api/notifications/outcomes
func (h *Handlers) HandleNotificationOutcomes(w http.ResponseWriter, r *http.Request) {
	if h.dispatcher == nil {
		httputil.OK(w, map[string]interface{}{"data": []interface{}{}})
		return
	}
	httputil.OK(w, map[string]interface{}{"data": h.dispatcher.Outcomes()})
}

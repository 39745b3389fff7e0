package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/history"
	"github.com/opensource-finance/harrier/internal/rules"
)

// historyLookback is how far back histories are loaded when the caller
// supplies none. It covers the widest feature window.
const historyLookback = 72 * time.Hour

// Service wraps the investigator with data loading, rule evaluation,
// persistence, and event publication. It is the entry point shared by the
// HTTP API and the async worker.
type Service struct {
	investigator *Investigator
	rules        *rules.Engine
	histories    *history.Service
	repo         domain.Repository
	bus          domain.EventBus
}

// NewService wires the pipeline service. rules, histories, repo, and bus
// are all optional; a nil collaborator disables that step.
func NewService(investigator *Investigator, ruleEngine *rules.Engine, histories *history.Service, repo domain.Repository, bus domain.EventBus) *Service {
	return &Service{
		investigator: investigator,
		rules:        ruleEngine,
		histories:    histories,
		repo:         repo,
		bus:          bus,
	}
}

// Process runs a full investigation for one transaction: load missing
// histories, evaluate tenant rules, score, persist, publish.
func (s *Service) Process(ctx context.Context, tenantID, traceID string, req *domain.InvestigateRequest) (*domain.Investigation, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenantID is required")
	}
	if req == nil || len(req.Transaction) == 0 {
		return nil, fmt.Errorf("transaction is required")
	}

	start := time.Now()
	tc := domain.NewTransactionContext(tenantID, req.Transaction)

	cardHistory := req.CardHistory
	merchantHistory := req.MerchantHistory
	if s.histories != nil {
		anchor := tc.Timestamp
		if anchor.IsZero() {
			anchor = time.Now().UTC()
		}
		since := anchor.Add(-historyLookback)

		if len(cardHistory) == 0 {
			cardHistory = s.loadRecords(ctx, tenantID, tc.CardID, since, s.histories.CardHistory)
		}
		if len(merchantHistory) == 0 {
			merchantHistory = s.loadRecords(ctx, tenantID, tc.MerchantID, since, s.histories.MerchantHistory)
		}
	}

	ruleMatches := s.evaluateRules(ctx, tenantID, tc, req.Transaction)

	inv := s.investigator.Investigate(ctx, &Request{
		TenantID:        tenantID,
		TraceID:         traceID,
		Transaction:     req.Transaction,
		CardHistory:     cardHistory,
		MerchantHistory: merchantHistory,
		Similar:         req.Similar,
		Reviews:         req.Reviews,
		RuleMatches:     ruleMatches,
		StartTime:       start,
	})

	if s.repo != nil {
		if err := s.repo.SaveInvestigation(ctx, tenantID, inv); err != nil {
			slog.Error("failed to save investigation",
				"investigation_id", inv.ID,
				"tx_id", inv.TxID,
				"error", err,
			)
		}
		if entry := contextEntry(tc); entry != nil {
			if err := s.repo.SaveTransaction(ctx, tenantID, entry); err != nil {
				slog.Debug("failed to record transaction",
					"tx_id", tc.TxID,
					"error", err,
				)
			}
		}
	}

	s.publish(ctx, tenantID, inv)

	return inv, nil
}

func (s *Service) loadRecords(ctx context.Context, tenantID, entityID string, since time.Time, load func(context.Context, string, string, time.Time) ([]domain.HistoryEntry, error)) []domain.Record {
	if entityID == "" {
		return nil
	}
	entries, err := load(ctx, tenantID, entityID, since)
	if err != nil {
		slog.Warn("history load failed",
			"entity_id", entityID,
			"error", err,
		)
		return nil
	}
	records := make([]domain.Record, 0, len(entries))
	for _, e := range entries {
		records = append(records, e.AsRecord())
	}
	return records
}

func (s *Service) evaluateRules(ctx context.Context, tenantID string, tc *domain.TransactionContext, raw domain.Record) []domain.RuleMatch {
	if s.rules == nil || s.rules.RulesCount() == 0 {
		return nil
	}

	matches, err := s.rules.EvaluateAll(ctx, &rules.EvaluateInput{
		TenantID:      tenantID,
		TxID:          tc.TxID,
		CardID:        tc.CardID,
		MerchantID:    tc.MerchantID,
		Amount:        tc.Amount,
		Currency:      tc.Currency,
		Status:        tc.Status,
		VelocityScore: tc.VelocityScore,
		FraudScore:    tc.FraudScore,
		HistoryWindow: 3600,
	})
	if err != nil {
		slog.Warn("rule evaluation failed",
			"tx_id", tc.TxID,
			"error", err,
		)
		return nil
	}
	return matches
}

// contextEntry converts the investigated transaction into a persistable
// history entry; transactions without an id are not recorded.
func contextEntry(tc *domain.TransactionContext) *domain.HistoryEntry {
	if tc.TxID == "" {
		return nil
	}
	ts := tc.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return &domain.HistoryEntry{
		TxID:          tc.TxID,
		Amount:        tc.Amount,
		Timestamp:     ts,
		Status:        tc.Status,
		MerchantID:    tc.MerchantID,
		CardID:        tc.CardID,
		DeclineReason: tc.DeclineReason,
	}
}

func (s *Service) publish(ctx context.Context, tenantID string, inv *domain.Investigation) {
	if s.bus == nil {
		return
	}

	payload, err := json.Marshal(inv.ToResponse())
	if err != nil {
		slog.Error("failed to encode investigation event", "error", err)
		return
	}

	if err := s.bus.Publish(ctx, tenantID, domain.TopicInvestigationCompleted, payload); err != nil {
		slog.Error("failed to publish investigation completed",
			"investigation_id", inv.ID,
			"error", err,
		)
	}

	if inv.Severity == domain.SeverityHigh || inv.Severity == domain.SeverityCritical {
		if err := s.bus.Publish(ctx, tenantID, domain.TopicAlert, payload); err != nil {
			slog.Error("failed to publish alert",
				"investigation_id", inv.ID,
				"error", err,
			)
		}
	}
}

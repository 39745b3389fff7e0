// Package pipeline runs the full investigation flow: feature extraction,
// pattern scoring, similarity matching, recommendation generation, and the
// optional guarded reasoning stage.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/features"
	"github.com/opensource-finance/harrier/internal/guard"
	"github.com/opensource-finance/harrier/internal/patterns"
	"github.com/opensource-finance/harrier/internal/reasoning"
	"github.com/opensource-finance/harrier/internal/recommend"
	"github.com/opensource-finance/harrier/internal/similarity"
)

var tracer = otel.Tracer("harrier-pipeline")

// EngineVersion tags every investigation result.
const EngineVersion = "harrier-1.0"

// Request bundles all collaborator data for one investigation. The caller
// guarantees at most one active run per transaction; the pipeline treats
// that as a precondition.
type Request struct {
	TenantID string
	TraceID  string

	Transaction     domain.Record
	CardHistory     []domain.Record
	MerchantHistory []domain.Record
	Similar         []domain.Record
	Reviews         []domain.Record
	RuleMatches     []domain.RuleMatch

	StartTime time.Time
}

// Investigator executes the investigation pipeline. All stages are pure and
// every entity is created fresh per run, so concurrent investigations for
// different transactions need no coordination.
type Investigator struct {
	extractor  *features.Extractor
	patterns   *patterns.Engine
	similarity *similarity.Engine

	orchestrator   *reasoning.Orchestrator
	consistencyCfg reasoning.ConsistencyConfig
}

// New creates an investigator. provider may be nil when reasoning is
// disabled.
func New(cfg *domain.Config, provider reasoning.Provider) *Investigator {
	consistencyCfg := reasoning.DefaultConsistencyConfig()
	if cfg.Reasoning.ConsistencyThreshold > 0 {
		consistencyCfg.PassThreshold = cfg.Reasoning.ConsistencyThreshold
	}
	if cfg.Reasoning.GroundingThreshold > 0 {
		consistencyCfg.GroundingThreshold = cfg.Reasoning.GroundingThreshold
	}

	return &Investigator{
		extractor:      features.NewExtractor(&cfg.Scoring),
		patterns:       patterns.NewEngine(&cfg.Scoring),
		similarity:     similarity.NewEngine(),
		orchestrator:   reasoning.NewOrchestrator(provider, cfg.Reasoning),
		consistencyCfg: consistencyCfg,
	}
}

// Investigate runs the full pipeline and always returns a complete result;
// reasoning failures degrade to a deterministic-mode result, never an
// error.
func (inv *Investigator) Investigate(ctx context.Context, req *Request) *domain.Investigation {
	start := req.StartTime
	if start.IsZero() {
		start = time.Now()
	}

	ctx, span := tracer.Start(ctx, "pipeline.investigate")
	defer span.End()

	tc := domain.NewTransactionContext(req.TenantID, req.Transaction)
	span.SetAttributes(attribute.String("tx.id", tc.TxID))

	// 1. Feature extraction
	fStart := time.Now()
	fs := inv.extractor.Extract(features.Input{
		Context:         tc,
		CardHistory:     req.CardHistory,
		MerchantHistory: req.MerchantHistory,
		RuleMatches:     req.RuleMatches,
		Reviews:         req.Reviews,
	})
	featuresMs := time.Since(fStart).Milliseconds()

	// 2. Pattern scoring and severity
	pStart := time.Now()
	scores := inv.patterns.Score(tc, fs)
	severity := patterns.Classify(scores)
	weighted := patterns.WeightedMean(scores)
	attributions := patterns.Attribute(scores)
	patternsMs := time.Since(pStart).Milliseconds()

	// 3. Similarity
	sStart := time.Now()
	sim := inv.similarity.Score(tc, req.Similar)
	similarityMs := time.Since(sStart).Milliseconds()

	// 4. Reasoning (optional, guarded)
	rStart := time.Now()
	reasoningResult := inv.runReasoning(ctx, tc, severity, weighted, scores, sim, fs)
	reasoningMs := time.Since(rStart).Milliseconds()

	// 5. Recommendations
	recommendations := recommend.Generate(recommend.Input{
		Context:       tc,
		Severity:      severity,
		PatternScores: scores,
		Similarity:    sim,
		Windows:       fs.Windows,
	})

	result := &domain.Investigation{
		ID:              uuid.New().String(),
		TenantID:        req.TenantID,
		TxID:            tc.TxID,
		Severity:        severity,
		Score:           weighted,
		Timestamp:       time.Now().UTC(),
		PatternScores:   scores,
		Attributions:    attributions,
		Signals:         fs.Signals,
		Windows:         fs.Windows,
		RuleMatches:     req.RuleMatches,
		Similarity:      sim,
		Recommendations: recommendations,
		Reasoning:       reasoningResult,
		Metadata: domain.InvestigationMetadata{
			TraceID:       req.TraceID,
			FeaturesMs:    featuresMs,
			PatternsMs:    patternsMs,
			SimilarityMs:  similarityMs,
			ReasoningMs:   reasoningMs,
			TotalMs:       time.Since(start).Milliseconds(),
			EngineVersion: EngineVersion,
		},
	}
	span.SetAttributes(
		attribute.String("severity", string(severity)),
		attribute.Float64("score", weighted),
	)
	return result
}

// runReasoning executes the guarded reasoning stage and resolves its
// outcome against the deterministic evidence.
func (inv *Investigator) runReasoning(
	ctx context.Context,
	tc *domain.TransactionContext,
	severity domain.Severity,
	weighted float64,
	scores []domain.PatternScore,
	sim *domain.SimilarityResult,
	fs *domain.FeatureSet,
) *domain.ReasoningResult {
	if !inv.orchestrator.Enabled() {
		return nil
	}

	ctx, span := tracer.Start(ctx, "pipeline.reasoning")
	defer span.End()

	out, meta, err := inv.orchestrator.Run(ctx, guard.EvidenceInput{
		Context:       tc,
		Severity:      severity,
		WeightedScore: weighted,
		PatternScores: scores,
		Similarity:    sim,
		Signals:       fs.Signals,
		Windows:       fs.Windows,
		RuleMatches:   fs.RuleMatches,
	})

	simScore := 0.0
	if sim != nil {
		simScore = sim.OverallScore
	}
	return Resolve(out, meta, err, severity, scores, simScore, inv.consistencyCfg)
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package engine runs an application through the assessment pipeline:
// KYC, credit, ESG, social, behavior, and the final decision.
package engine

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/microfinance-engine/internal/behavior"
	"github.com/pdiddy/microfinance-engine/internal/credit"
	"github.com/pdiddy/microfinance-engine/internal/decision"
	"github.com/pdiddy/microfinance-engine/internal/esg"
	"github.com/pdiddy/microfinance-engine/internal/kyc"
	"github.com/pdiddy/microfinance-engine/internal/logging"
	"github.com/pdiddy/microfinance-engine/internal/metrics"
	"github.com/pdiddy/microfinance-engine/internal/ocr"
	"github.com/pdiddy/microfinance-engine/internal/social"
	"github.com/pdiddy/microfinance-engine/pkg/types"
)

// DefaultConcurrency bounds ProcessBatch when no limit is given.
const DefaultConcurrency = 4

// Stage names used in logs and metrics.
const (
	StageKYC      = "kyc"
	StageCredit   = "credit"
	StageESG      = "esg"
	StageSocial   = "social"
	StageBehavior = "behavior"
	StageDecision = "decision"
)

// Saver persists finished assessments.
type Saver interface {
	Save(ctx context.Context, app *types.Application, a types.Assessment) error
}

// Options configures an Engine. Zero values select defaults.
type Options struct {
	// Extractor enables KYC content checks. Nil checks files only.
	Extractor        ocr.Extractor
	MaxDocumentBytes int64

	// Analyzer scores posts; nil uses the lexicon backend without a cache.
	Analyzer *social.Analyzer

	// Feeds fetches posts for applications that carry a handle but no posts.
	Feeds *social.FeedFetcher

	// Policy defaults to decision.DefaultPolicy when it has no tiers.
	Policy types.PolicyConfig

	// Store receives every assessment when set.
	Store Saver
}

// Engine assesses applications. It is safe for concurrent use.
type Engine struct {
	extractor        ocr.Extractor
	maxDocumentBytes int64
	analyzer         *social.Analyzer
	feeds            *social.FeedFetcher
	policy           types.PolicyConfig
	store            Saver
	now              func() time.Time
}

// New validates the policy and returns an Engine.
func New(opts Options) (*Engine, error) {
	policy := opts.Policy
	if len(policy.Tiers) == 0 {
		def := decision.DefaultPolicy()
		def.Weights = policy.Weights
		if policy.RevenueTarget > 0 {
			def.RevenueTarget = policy.RevenueTarget
		}
		policy = def
	}
	if err := decision.Validate(policy); err != nil {
		return nil, err
	}
	analyzer := opts.Analyzer
	if analyzer == nil {
		analyzer = social.NewAnalyzer(nil, nil)
	}
	return &Engine{
		extractor:        opts.Extractor,
		maxDocumentBytes: opts.MaxDocumentBytes,
		analyzer:         analyzer,
		feeds:            opts.Feeds,
		policy:           policy,
		store:            opts.Store,
		now:              time.Now,
	}, nil
}

// Policy returns the lending policy in effect.
func (e *Engine) Policy() types.PolicyConfig { return e.policy }

// Process assesses one application. A KYC failure rejects the application
// without running the scoring stages; any other stage error produces an
// error decision. The returned error reports only a failure to save; the
// assessment is complete either way.
func (e *Engine) Process(ctx context.Context, app *types.Application) (types.Assessment, error) {
	start := e.now()
	a := types.Assessment{
		ApplicationID: app.ID,
		ApplicantName: app.PersonalData.Name,
		BusinessType:  app.BusinessData.Type,
		AssessedAt:    start.UTC(),
	}
	log := logging.WithComponent(ctx, "engine").With().Str("application_id", app.ID).Logger()

	a.Decision = e.run(ctx, log, app, &a)
	a.DurationMS = e.now().Sub(start).Milliseconds()
	metrics.RecordDecision(a.Decision)

	log.Info().
		Str("status", string(a.Decision.Status)).
		Float64("final_score", a.Decision.FinalScore).
		Int64("duration_ms", a.DurationMS).
		Msg("assessment finished")

	if e.store != nil {
		if err := e.store.Save(ctx, app, a); err != nil {
			log.Error().Err(err).Msg("saving assessment")
			return a, fmt.Errorf("saving assessment %s: %w", app.ID, err)
		}
	}
	return a, nil
}

// run executes the stages, filling in a's stage results as they finish.
func (e *Engine) run(ctx context.Context, log zerolog.Logger, app *types.Application, a *types.Assessment) types.Decision {
	if err := ctx.Err(); err != nil {
		return decision.Failure(err)
	}

	var kycRes types.KYCResult
	timed(log, StageKYC, func() error {
		kycRes = kyc.Verify(ctx, app.KYCDocuments, kyc.Options{
			Extractor:        e.extractor,
			ApplicantName:    app.PersonalData.Name,
			MaxDocumentBytes: e.maxDocumentBytes,
		})
		return nil
	})
	a.KYC = &kycRes
	if !kycRes.Verified {
		log.Info().Strs("errors", kycRes.Errors).Msg("kyc verification failed")
		return decision.KYCRejection(kycRes)
	}

	var cs types.CreditScore
	timed(log, StageCredit, func() error {
		cs = credit.Calculate(app, e.policy.RevenueTarget)
		return nil
	})
	a.Credit = &cs

	var es types.ESGScore
	timed(log, StageESG, func() error {
		es = esg.Calculate(app.BusinessData)
		return nil
	})
	a.ESG = &es

	var sa types.SocialAnalysis
	err := timed(log, StageSocial, func() error {
		var err error
		sa, err = e.analyzeSocial(ctx, log, app.SocialData)
		return err
	})
	a.Social = &sa
	if err != nil {
		return decision.Failure(err)
	}

	var ba types.BehaviorAnalysis
	timed(log, StageBehavior, func() error {
		ba = behavior.Analyze(app.BankStatements)
		return nil
	})
	a.Behavior = &ba

	var d types.Decision
	timed(log, StageDecision, func() error {
		d = decision.Make(cs, es, sa, ba, e.policy)
		return nil
	})
	return d
}

// analyzeSocial scores the application's posts, fetching them first when
// only a handle was given. Feed failures are recorded on the result and
// leave the analysis empty; backend failures are returned.
func (e *Engine) analyzeSocial(ctx context.Context, log zerolog.Logger, sd types.SocialData) (types.SocialAnalysis, error) {
	posts := sd.Posts
	var feedErr string
	if len(posts) == 0 && sd.Handle != "" && e.feeds != nil {
		res, err := e.feeds.Fetch(ctx, sd.Handle)
		if err != nil {
			log.Warn().Err(err).Str("handle", sd.Handle).Msg("fetching social feed")
			feedErr = err.Error()
		}
		posts = res.Posts
	}

	sa, err := e.analyzer.Analyze(ctx, posts)
	if err != nil {
		return sa, err
	}
	if feedErr != "" {
		sa.Error = feedErr
	}
	return sa, nil
}

// timed runs fn as one pipeline stage, recording its duration.
func timed(log zerolog.Logger, stage string, fn func() error) error {
	start := time.Now()
	err := fn()
	d := time.Since(start)
	metrics.ObserveStage(stage, d)

	ev := log.Debug()
	if err != nil {
		metrics.RecordStageError(stage)
		ev = log.Warn().Err(err)
	}
	ev.Str("stage", stage).Dur("duration", d).Msg("stage finished")
	return err
}

// BatchResult holds the assessments of a batch, in input order, and counts
// by outcome.
type BatchResult struct {
	Assessments []types.Assessment
	Approved    int
	Rejected    int
	Errored     int

	// SaveFailures counts assessments that could not be stored.
	SaveFailures int
}

// Total returns the number of applications processed.
func (r BatchResult) Total() int {
	return r.Approved + r.Rejected + r.Errored
}

// HasFailures reports whether any assessment errored or was not saved.
func (r BatchResult) HasFailures() bool {
	return r.Errored > 0 || r.SaveFailures > 0
}

// ProcessBatch assesses apps with at most concurrency in flight (default
// DefaultConcurrency) and prints one status line per application, in input
// order, to w.
func (e *Engine) ProcessBatch(ctx context.Context, apps []*types.Application, concurrency int, w io.Writer) BatchResult {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	assessments := make([]types.Assessment, len(apps))
	saveErrs := make([]error, len(apps))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, app := range apps {
		g.Go(func() error {
			assessments[i], saveErrs[i] = e.Process(gctx, app)
			return nil
		})
	}
	_ = g.Wait()

	res := BatchResult{Assessments: assessments}
	for i, a := range assessments {
		d := a.Decision
		switch d.Status {
		case types.StatusApproved:
			res.Approved++
			fmt.Fprintf(w, "approved: %s (score %.2f, %.0f at %.0f%% for %d months)\n",
				a.ApplicationID, d.FinalScore, d.LoanAmount, d.InterestRate*100, d.TermMonths)
		case types.StatusRejected:
			res.Rejected++
			fmt.Fprintf(w, "rejected: %s (%s)\n", a.ApplicationID, rejectionSummary(d))
		default:
			res.Errored++
			fmt.Fprintf(w, "failed:   %s (%s)\n", a.ApplicationID, d.Error)
		}
		if saveErrs[i] != nil {
			res.SaveFailures++
			fmt.Fprintf(w, "failed:   %s (%v)\n", a.ApplicationID, saveErrs[i])
		}
	}

	fmt.Fprintf(w, "\nBatch summary: %d approved, %d rejected, %d failed (total: %d)\n",
		res.Approved, res.Rejected, res.Errored, res.Total())
	return res
}

func rejectionSummary(d types.Decision) string {
	if len(d.Details) == 0 {
		return d.Reason
	}
	return fmt.Sprintf("%s: %d problems", d.Reason, len(d.Details))
}

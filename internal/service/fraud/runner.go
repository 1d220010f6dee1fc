package fraud

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/davidleathers/fraud-risk-engine/internal/domain/risk"
)

// checkRunner executes checks concurrently. Every check is wrapped the same
// way: bounded by a timeout, shielded from panics, and degraded to a zero
// score with the error recorded when it cannot complete.
type checkRunner struct {
	timeout  time.Duration
	logger   *zap.Logger
	recorder Recorder
}

type checkOutcome struct {
	result *risk.CheckResult
	err    error
}

// runAll evaluates every check and returns results in the order given.
// It never fails: degraded checks are represented in the returned slice.
func (r *checkRunner) runAll(ctx context.Context, checks []Check, in *Evaluation) []*risk.CheckResult {
	results := make([]*risk.CheckResult, len(checks))

	var g errgroup.Group
	for i, check := range checks {
		g.Go(func() error {
			results[i] = r.run(ctx, check, in)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (r *checkRunner) run(ctx context.Context, check Check, in *Evaluation) *risk.CheckResult {
	checkType := check.Type()
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	// buffered so a check that outlives its deadline can still finish and exit
	done := make(chan checkOutcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- checkOutcome{err: fmt.Errorf("check panicked: %v", p)}
			}
		}()
		result, err := check.Evaluate(ctx, in)
		done <- checkOutcome{result: result, err: err}
	}()

	var out checkOutcome
	select {
	case out = <-done:
	case <-ctx.Done():
		out = checkOutcome{err: fmt.Errorf("check %s did not complete: %w", checkType, ctx.Err())}
	}

	if out.err == nil && out.result == nil {
		out.err = fmt.Errorf("check %s returned no result", checkType)
	}

	duration := time.Since(start)
	if out.err != nil {
		r.logger.Warn("fraud check degraded",
			zap.String("check", checkType.String()),
			zap.Duration("duration", duration),
			zap.Error(out.err),
		)
		r.recorder.RecordCheck(ctx, checkType, duration, true)
		return risk.FailedCheckResult(checkType, out.err)
	}

	r.recorder.RecordCheck(ctx, checkType, duration, false)
	return normalize(out.result, checkType)
}

// normalize enforces the result invariants regardless of check implementation
func normalize(r *risk.CheckResult, t risk.CheckType) *risk.CheckResult {
	r.Type = t
	r.Score = risk.ClampScore(r.Score)
	if r.Violations == nil {
		r.Violations = []string{}
	}
	if r.Metrics == nil {
		r.Metrics = make(map[string]interface{})
	}
	return r
}

// Package fixvenue exposes a FIX session as an exchange.Exchange.
package fixvenue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"exconnector/internal/correlation"
	"exconnector/internal/fix"
	"exconnector/internal/gateway/exchange"
	"exconnector/internal/logger"
	"exconnector/internal/store/ledger"
)

const defaultRequestTimeout = 10 * time.Second

type Config struct {
	Name    string
	Account string
	// RequestTimeout bounds calls whose context carries no deadline.
	RequestTimeout time.Duration
	// CancelOnTimeout sends a best-effort cancel for fill-or-kill and
	// immediate-or-cancel orders whose caller timed out.
	CancelOnTimeout bool
}

// Ledger persists requests that outlived their caller.
type Ledger interface {
	RecordTimeout(ctx context.Context, e ledger.Entry) error
	Resolve(ctx context.Context, id, outcome, errText string, at time.Time) (bool, error)
}

// LateRecorder counts late completions.
type LateRecorder interface {
	LateCompletion(kind, outcome string)
}

type Deps struct {
	Ledger Ledger
	Late   LateRecorder
}

// Venue adapts a fix.Connector to exchange.Exchange.
type Venue struct {
	cfg    Config
	conn   *fix.Connector
	ledger Ledger
	late   LateRecorder
	now    func() time.Time
}

var (
	_ exchange.Exchange        = (*Venue)(nil)
	_ exchange.SessionReporter = (*Venue)(nil)
)

// New builds the connector over transport. The timeout hooks in opts are
// chained after the venue's own ledger hooks.
func New(transport fix.Transport, opts fix.Options, cfg Config, deps Deps) *Venue {
	if cfg.Name == "" {
		cfg.Name = "fix"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	v := &Venue{cfg: cfg, ledger: deps.Ledger, late: deps.Late, now: opts.Now}
	if v.now == nil {
		v.now = time.Now
	}
	onTimeout, onLate := opts.OnTimeout, opts.OnLateCompletion
	opts.OnTimeout = func(kind, id string) {
		v.recordTimeout(kind, id)
		if onTimeout != nil {
			onTimeout(kind, id)
		}
	}
	opts.OnLateCompletion = func(kind, id string, err error) {
		v.lateCompletion(kind, id, err)
		if onLate != nil {
			onLate(kind, id, err)
		}
	}
	v.conn = fix.NewConnector(transport, opts)
	return v
}

func (v *Venue) Name() string { return v.cfg.Name }

// Connector exposes the session for lifecycle control.
func (v *Venue) Connector() *fix.Connector { return v.conn }

func (v *Venue) Connect(ctx context.Context) error { return v.conn.Connect(ctx) }

func (v *Venue) Close() { v.conn.Stop() }

func (v *Venue) SessionStatus() exchange.SessionStatus {
	snap := v.conn.Snapshot()
	return exchange.SessionStatus{
		Venue:         v.cfg.Name,
		State:         snap.State,
		Session:       snap.Session,
		PendingFrames: snap.PendingFrames,
		Pending:       snap.Pending,
	}
}

func (v *Venue) PlaceOrder(ctx context.Context, req exchange.OrderRequest) (exchange.ExecutionResult, error) {
	if err := req.Validate(); err != nil {
		return exchange.ExecutionResult{}, err
	}
	spec, err := orderSpec(req, v.cfg.Account)
	if err != nil {
		return exchange.ExecutionResult{}, err
	}
	ctx, cancel := v.withDeadline(ctx)
	defer cancel()

	er, err := v.conn.PlaceOrder(ctx, spec)
	if err != nil {
		var terr *correlation.TimeoutError
		if errors.As(err, &terr) {
			v.annotate(terr, req.Symbol, fmt.Sprintf("%s %s %s @ %s", req.Side, req.Quantity, req.Type, req.Price))
			if v.cfg.CancelOnTimeout && req.ImmediateOnly() {
				go v.cancelTimedOut(terr.CorrelationID, spec)
			}
		}
		return exchange.ExecutionResult{}, err
	}
	return executionResult(er), nil
}

func (v *Venue) CancelOrder(ctx context.Context, req exchange.CancelRequest) (exchange.ExecutionResult, error) {
	if err := req.Validate(); err != nil {
		return exchange.ExecutionResult{}, err
	}
	spec, err := cancelSpec(req, v.cfg.Account)
	if err != nil {
		return exchange.ExecutionResult{}, err
	}
	ctx, cancel := v.withDeadline(ctx)
	defer cancel()

	er, err := v.conn.CancelOrder(ctx, spec)
	if err != nil {
		v.annotateIfTimeout(err, req.Symbol, "cancel "+firstNonEmpty(req.ClientOrderID, req.OrderID))
		return exchange.ExecutionResult{}, err
	}
	return executionResult(er), nil
}

func (v *Venue) GetPositions(ctx context.Context, q exchange.PositionQuery) ([]exchange.Position, error) {
	ctx, cancel := v.withDeadline(ctx)
	defer cancel()

	reports, err := v.conn.GetPositions(ctx, fix.PositionInquiry{
		Account: firstNonEmpty(q.Account, v.cfg.Account),
		Symbol:  q.Symbol,
	})
	if err != nil {
		v.annotateIfTimeout(err, q.Symbol, "positions")
		return nil, err
	}
	out := make([]exchange.Position, 0, len(reports))
	for _, r := range reports {
		out = append(out, position(r))
	}
	return out, nil
}

func (v *Venue) GetCollateral(ctx context.Context, q exchange.CollateralQuery) ([]exchange.Collateral, error) {
	ctx, cancel := v.withDeadline(ctx)
	defer cancel()

	reports, err := v.conn.GetCollateral(ctx, fix.CollateralInquiry{
		Account:  firstNonEmpty(q.Account, v.cfg.Account),
		Currency: q.Currency,
	})
	if err != nil {
		v.annotateIfTimeout(err, "", "collateral "+q.Currency)
		return nil, err
	}
	out := make([]exchange.Collateral, 0, len(reports))
	for _, r := range reports {
		out = append(out, collateral(r))
	}
	return out, nil
}

func (v *Venue) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, v.cfg.RequestTimeout)
}

// recordTimeout runs on the caller goroutine before any late completion can be
// observed, so the ledger row always exists when it is resolved.
func (v *Venue) recordTimeout(kind, id string) {
	if v.ledger == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := v.ledger.RecordTimeout(ctx, ledger.Entry{
		CorrelationID: id,
		Kind:          kind,
		Venue:         v.cfg.Name,
		TimedOutAt:    v.now(),
	})
	if err != nil {
		logger.Errorf("fixvenue: ledger record %s %s failed: %v", kind, id, err)
	}
}

func (v *Venue) annotateIfTimeout(err error, symbol, detail string) {
	var terr *correlation.TimeoutError
	if errors.As(err, &terr) {
		v.annotate(terr, symbol, detail)
	}
}

// annotate refreshes the ledger row with request details. Status is left alone.
func (v *Venue) annotate(terr *correlation.TimeoutError, symbol, detail string) {
	if v.ledger == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := v.ledger.RecordTimeout(ctx, ledger.Entry{
		CorrelationID: terr.CorrelationID,
		Kind:          terr.Kind,
		Venue:         v.cfg.Name,
		Symbol:        symbol,
		Detail:        detail,
		TimedOutAt:    v.now(),
	})
	if err != nil {
		logger.Errorf("fixvenue: ledger annotate %s failed: %v", terr.CorrelationID, err)
	}
}

// lateCompletion runs inside the completing goroutine, which may be a transport
// callback, so the ledger write is moved off it.
func (v *Venue) lateCompletion(kind, id string, err error) {
	outcome := correlation.Outcome(err)
	if v.late != nil {
		v.late.LateCompletion(kind, outcome)
	}
	if v.ledger == nil {
		return
	}
	errText := ""
	if err != nil {
		errText = err.Error()
	}
	at := v.now()
	go func() {
		defer logger.Recover("fixvenue.resolve")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		ok, rerr := v.ledger.Resolve(ctx, id, outcome, errText, at)
		if rerr != nil {
			logger.Errorf("fixvenue: ledger resolve %s %s failed: %v", kind, id, rerr)
			return
		}
		if !ok {
			logger.Warnf("fixvenue: late %s %s had no pending ledger entry", kind, id)
		}
	}()
}

func (v *Venue) cancelTimedOut(id string, spec fix.OrderSpec) {
	defer logger.Recover("fixvenue.cancelTimedOut")
	ctx, cancel := context.WithTimeout(context.Background(), v.cfg.RequestTimeout)
	defer cancel()
	er, err := v.conn.CancelOrder(ctx, fix.CancelSpec{
		OrigClOrdID: id,
		Account:     spec.Account,
		Symbol:      spec.Symbol,
		Side:        spec.Side,
		Quantity:    spec.Quantity,
	})
	if err != nil {
		logger.Warnf("fixvenue: cancel of timed-out order %s: %v", id, err)
		return
	}
	logger.Infof("fixvenue: cancel of timed-out order %s answered %s", id, fromOrdStatus(er.OrdStatus))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

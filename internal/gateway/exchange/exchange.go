package exchange

import "context"

// Exchange is the venue-neutral trading surface. Implementations return the
// correlation package's typed errors: ErrNotConnected, ErrRejected (via
// *correlation.RejectError), ErrTimedOut, ErrCancelled, ErrSendFailed and
// ErrInvalidRequest.
type Exchange interface {
	Name() string

	PlaceOrder(ctx context.Context, req OrderRequest) (ExecutionResult, error)

	CancelOrder(ctx context.Context, req CancelRequest) (ExecutionResult, error)

	GetPositions(ctx context.Context, q PositionQuery) ([]Position, error)

	GetCollateral(ctx context.Context, q CollateralQuery) ([]Collateral, error)
}

// SessionReporter is implemented by venues that hold a stateful session.
type SessionReporter interface {
	SessionStatus() SessionStatus
}

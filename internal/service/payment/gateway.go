package payment

import (
	"context"

	"github.com/google/uuid"
	"github.com/thejas/flightbook/internal/domain"
)

type ChargeRequest struct {
	PaymentID   string
	BookingID   string
	AmountCents int64
	Method      domain.PaymentMethod
}

// Gateway is the opaque external settlement step. Implementations must
// respect the context deadline; the coordinator treats a timeout as an
// unknown outcome.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (transactionID string, err error)
}

// SandboxGateway settles every charge immediately. It stands in for a real
// provider integration in development and tests.
type SandboxGateway struct{}

func NewSandboxGateway() *SandboxGateway { return &SandboxGateway{} }

func (g *SandboxGateway) Charge(ctx context.Context, req ChargeRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "TXN_" + uuid.NewString(), nil
}

var _ Gateway = (*SandboxGateway)(nil)

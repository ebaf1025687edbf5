/**
 * @description
 * This file defines the interfaces through which the accounting core talks to its
 * external collaborators: the custody service that moves underlying asset units,
 * and the authorization service that answers capability checks. Defining them here
 * decouples the ledger from the HTTP clients in pkg/ and lets tests substitute
 * in-memory stubs, mirroring how the service layer depends on store.Repository.
 */

package ledger

import (
	"context"

	"github.com/google/uuid"

	"github.com/fundra/financing-service/internal/domain"
)

// AssetMover moves underlying asset units between external accounts and a
// custody account. A returned error aborts the whole ledger operation: either
// the transfer runs before any state mutation, or the mutation is rolled back.
type AssetMover interface {
	// TransferIn pulls amount from the `from` account into custody account `custody`.
	TransferIn(ctx context.Context, custody, from uuid.UUID, amount int64) error
	// TransferOut pushes amount from custody account `custody` to the `to` account.
	TransferOut(ctx context.Context, custody, to uuid.UUID, amount int64) error
}

// Authorizer answers capability checks for privileged operations. A nil scope
// means the capability must be granted platform-wide.
type Authorizer interface {
	HasCapability(ctx context.Context, actor uuid.UUID, capability domain.Capability, scope *uuid.UUID) (bool, error)
}

// internal/services/capability_service.go
package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ntptrace/trace-backend/internal/ledger"
	"github.com/ntptrace/trace-backend/internal/models"
)

// Predicates in role precedence order.
var predicates = [...]ledger.Predicate{
	ledger.PredicateProducer,
	ledger.PredicateDistributor,
	ledger.PredicateRetailer,
}

type predicateOutcome struct {
	predicate ledger.Predicate
	holds     bool
	err       error
}

// CapabilityResolver determines which role a principal holds on the ledger.
type CapabilityResolver struct {
	ledger  ledger.Client
	timeout time.Duration
}

func NewCapabilityResolver(client ledger.Client, timeout time.Duration) *CapabilityResolver {
	return &CapabilityResolver{
		ledger:  client,
		timeout: timeout,
	}
}

// Resolve queries all predicates concurrently and returns only after every one
// of them has settled. Failed predicates count as false, so a principal whose
// checks all fail resolves to unauthenticated.
func (r *CapabilityResolver) Resolve(ctx context.Context, principal ledger.Principal) models.AuthorizationState {
	outcomes := r.query(ctx, principal)
	return combine(principal, outcomes)
}

func (r *CapabilityResolver) query(ctx context.Context, principal ledger.Principal) [len(predicates)]predicateOutcome {
	var outcomes [len(predicates)]predicateOutcome
	var g errgroup.Group

	for i, p := range predicates {
		i, p := i, p
		g.Go(func() error {
			holds, err := callWithDeadline(ctx, r.timeout, string(p), func(ctx context.Context) (bool, error) {
				return ledger.Check(ctx, r.ledger, p, principal)
			})
			outcomes[i] = predicateOutcome{predicate: p, holds: holds, err: err}
			return nil
		})
	}

	// Barrier: nothing is computed until all predicates are in.
	_ = g.Wait()
	return outcomes
}

func combine(principal ledger.Principal, outcomes [len(predicates)]predicateOutcome) models.AuthorizationState {
	state := models.Unauthenticated(principal.String())

	for _, o := range outcomes {
		if o.err != nil {
			logrus.WithError(o.err).WithFields(logrus.Fields{
				"principal": principal,
				"predicate": o.predicate,
			}).Warn("Predicate query failed, treating as false")
			continue
		}
		if o.holds && !state.Authorized {
			state.Authorized = true
			state.Role = o.predicate.Role()
		}
	}

	return state
}

// Package persistence runs compiled request criteria against a database. It
// provides per-model repositories, eager loading of relations, transactions
// and an event bus for observing query execution.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/asaidimu/go-criteria/core/criteria"
	"github.com/asaidimu/go-criteria/core/query"
	"github.com/asaidimu/go-criteria/core/schema"
	"go.uber.org/zap"
)

// ErrUnknownModel is returned when a repository or query names a model the
// registry does not hold.
var ErrUnknownModel = errors.New("unknown model")

// Persistence is the entry point of the persistence layer. It owns the
// registry of models, the criteria compiler and the executor shared by every
// repository it hands out.
type Persistence struct {
	interactor DatabaseInteractor
	registry   *schema.Registry
	compiler   *criteria.Compiler
	executor   *Executor
	hub        *eventHub
	logger     *zap.Logger
}

// Option configures a Persistence service.
type Option func(*options)

type options struct {
	logger  *zap.Logger
	config  criteria.Config
	filters map[query.ComparisonOperator]query.PredicateFunction
}

// WithLogger sets the logger used by the service and everything it creates.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithCriteriaConfig sets the request parameter names and accepted
// conditions.
func WithCriteriaConfig(cfg criteria.Config) Option {
	return func(o *options) { o.config = cfg }
}

// WithFilterFunctions registers Go filter functions for custom operators.
func WithFilterFunctions(fns map[query.ComparisonOperator]query.PredicateFunction) Option {
	return func(o *options) { o.filters = fns }
}

// NewPersistence creates a new instance of the Persistence service. It
// initializes the event bus and wires the compiler and executor to the
// registry.
func NewPersistence(interactor DatabaseInteractor, registry *schema.Registry, opts ...Option) (*Persistence, error) {
	if interactor == nil {
		return nil, fmt.Errorf("interactor cannot be nil")
	}
	if registry == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}
	o := options{config: criteria.DefaultConfig()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	hub, err := newEventHub()
	if err != nil {
		return nil, fmt.Errorf("could not initialize event bus: %w", err)
	}

	executor := NewExecutor(interactor, registry, o.logger)
	if len(o.filters) > 0 {
		executor.RegisterFilterFunctions(o.filters)
	}

	return &Persistence{
		interactor: interactor,
		registry:   registry,
		compiler:   criteria.New(o.config, criteria.WithLogger(o.logger), criteria.WithRelations(registry)),
		executor:   executor,
		hub:        hub,
		logger:     o.logger,
	}, nil
}

// Registry returns the models the service serves.
func (p *Persistence) Registry() *schema.Registry {
	return p.registry
}

// Compiler returns the request criteria compiler.
func (p *Persistence) Compiler() *criteria.Compiler {
	return p.compiler
}

// Repository returns the repository for a model.
func (p *Persistence) Repository(name string) (*Repository, error) {
	model, ok := p.registry.Model(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}
	return &Repository{
		model:     model,
		compiler:  p.compiler,
		executor:  p.executor,
		validator: schema.NewValidator(model),
		hub:       p.hub,
		logger:    p.logger.With(zap.String("model", name)),
	}, nil
}

// Collections returns the names of all registered models.
func (p *Persistence) Collections() []string {
	models := p.registry.Models()
	names := make([]string, len(models))
	for i, m := range models {
		names[i] = m.Name
	}
	return names
}

// Migrate creates the table of every registered model in one transaction.
func (p *Persistence) Migrate(ctx context.Context) error {
	return p.Transact(ctx, func(tx *Persistence) error {
		for _, model := range tx.registry.Models() {
			_, err := withEventEmission(tx.hub, "create_collection", model.Name,
				CollectionCreateStart, CollectionCreateSuccess, CollectionCreateFailed,
				nil, func() any { return nil },
				func() (bool, error) {
					return true, tx.interactor.CreateCollection(ctx, model)
				})
			if err != nil {
				return fmt.Errorf("failed to create table for %s: %w", model.Name, err)
			}
		}
		return nil
	})
}

// Transact executes fn within a database transaction. If fn returns an
// error, the transaction is rolled back; otherwise, it is committed.
func (p *Persistence) Transact(ctx context.Context, fn func(tx *Persistence) error) error {
	startTime := time.Now()
	p.hub.emit(createEvent(TransactionStart, "transaction", "", nil, nil, nil, nil, startTime))

	err := p.transact(ctx, fn)
	if err != nil {
		p.hub.emit(createEvent(TransactionFailed, "transaction", "", nil, nil, nil, err, startTime))
		return err
	}
	p.hub.emit(createEvent(TransactionSuccess, "transaction", "", nil, nil, nil, nil, startTime))
	return nil
}

func (p *Persistence) transact(ctx context.Context, fn func(tx *Persistence) error) error {
	txi, err := p.interactor.StartTransaction(ctx)
	if err != nil {
		return err
	}

	scoped := *p
	scoped.interactor = txi
	scoped.executor = p.executor.withInteractor(txi)

	if err := fn(&scoped); err != nil {
		if rbErr := txi.Rollback(ctx); rbErr != nil {
			p.logger.Error("Rollback failed", zap.Error(rbErr))
		}
		return err
	}
	return txi.Commit(ctx)
}

// RegisterSubscription registers a callback for a specific persistence
// event. It returns a unique id that can be used to unregister the
// subscription later.
func (p *Persistence) RegisterSubscription(options RegisterSubscriptionOptions) string {
	return p.hub.register(options)
}

// UnregisterSubscription removes a subscription by its id.
func (p *Persistence) UnregisterSubscription(id string) {
	p.hub.unregister(id)
}

// Subscriptions returns all currently active subscriptions.
func (p *Persistence) Subscriptions() []SubscriptionInfo {
	return p.hub.list()
}

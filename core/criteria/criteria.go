package criteria

import (
	"strings"

	"github.com/asaidimu/go-criteria/core/query"
	"github.com/asaidimu/go-criteria/core/schema"
	"go.uber.org/zap"
)

// Searchable is the repository side of a compilation: the base table and
// the fields it lets requests search on.
type Searchable interface {
	Table() string
	SearchableFields() schema.SearchableFields
}

// Compiler applies request criteria to query builders. It holds no
// per-request state and is safe for concurrent use.
type Compiler struct {
	cfg       Config
	relations schema.RelationResolver
	logger    *zap.Logger
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithLogger sets the logger used for recovered, non-fatal conditions.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Compiler) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRelations sets the resolver that decides whether a dotted search
// field is a relation scope.
func WithRelations(r schema.RelationResolver) Option {
	return func(c *Compiler) {
		c.relations = r
	}
}

// New creates a Compiler. Unset parameter names in cfg fall back to
// DefaultConfig.
func New(cfg Config, opts ...Option) *Compiler {
	c := &Compiler{
		cfg:    cfg.withDefaults(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the effective configuration.
func (c *Compiler) Config() Config {
	return c.cfg
}

// Apply compiles p against repo and applies the result to b: predicates,
// then ordering, then projection, then eager loads, then eager counts.
// Parameters are validated before b is touched, so a failed call leaves the
// builder unchanged.
func (c *Compiler) Apply(b query.Builder, repo Searchable, p Params) error {
	table := repo.Table()
	if table == "" {
		table = b.Table()
	}

	var predicates []Predicate
	searchable := repo.SearchableFields()
	if strings.TrimSpace(p.Search) != "" && len(searchable) > 0 {
		fields, err := ResolveFields(searchable, ParseList(p.SearchFields), c.cfg.AcceptedConditions)
		if err != nil {
			return err
		}
		predicates = AssemblePredicates(Assembly{
			Table:     table,
			Fields:    fields,
			Terms:     ParseTerms(p.Search),
			JoinMode:  p.SearchJoin,
			Relations: c.relations,
			Logger:    c.logger,
		})
	}

	order, err := ParseOrder(table, p.OrderBy, p.SortedBy)
	if err != nil {
		return err
	}

	ApplyPredicates(b, predicates)
	ApplyOrder(b, table, order)
	if columns := ParseList(p.Filter); len(columns) > 0 {
		b.Select(columns...)
	}
	if relations := ParseList(p.With); len(relations) > 0 {
		b.With(relations...)
	}
	if relations := ParseList(p.WithCount); len(relations) > 0 {
		b.WithCount(relations...)
	}

	c.logger.Debug("Applied request criteria",
		zap.String("table", table),
		zap.Int("predicates", len(predicates)),
		zap.Int("order", len(order)))
	return nil
}

// Compile applies p to a fresh query.QueryBuilder for repo's table and
// returns the recorded DSL.
func (c *Compiler) Compile(repo Searchable, p Params) (*query.QueryDSL, error) {
	qb := query.NewQueryBuilder(repo.Table())
	if err := c.Apply(qb, repo, p); err != nil {
		return nil, err
	}
	dsl := qb.Build()
	return &dsl, nil
}

// StaticSearchable is a Searchable for callers without a repository.
type StaticSearchable struct {
	Name   string
	Fields schema.SearchableFields
}

func (s StaticSearchable) Table() string                             { return s.Name }
func (s StaticSearchable) SearchableFields() schema.SearchableFields { return s.Fields }

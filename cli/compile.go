package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/asaidimu/go-criteria/core/criteria"
	"github.com/asaidimu/go-criteria/sqlite"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// CompileOptions holds the flags of the compile command.
type CompileOptions struct {
	Table  string
	Params criteria.Params
	SQL    bool
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{}

	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile request criteria for a model",
		Long: `Compile request criteria parameters against a model and print the
resulting query DSL as JSON, or the SQLite statement with --sql.`,
		Example: `  criteria compile --models models.yaml --table users --search "name:john;active" --order-by "roles|name"`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(rootOpts, opts, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.Table, "table", "", "model to compile against")
	f.StringVar(&opts.Params.Search, "search", "", "search terms")
	f.StringVar(&opts.Params.SearchFields, "search-fields", "", "fields to search, with optional operators")
	f.StringVar(&opts.Params.SearchJoin, "search-join", "", "join mode for search predicates (and|or)")
	f.StringVar(&opts.Params.Filter, "filter", "", "columns to select")
	f.StringVar(&opts.Params.OrderBy, "order-by", "", "ordering columns")
	f.StringVar(&opts.Params.SortedBy, "sorted-by", "", "ordering directions")
	f.StringVar(&opts.Params.With, "with", "", "relations to eager load")
	f.StringVar(&opts.Params.WithCount, "with-count", "", "relations to count")
	f.BoolVar(&opts.SQL, "sql", false, "print SQL instead of the query DSL")
	_ = cmd.MarkFlagRequired("table")

	return cmd
}

// compiledSQL is the --sql output.
type compiledSQL struct {
	SQL  string `json:"sql"`
	Args []any  `json:"args"`
}

func runCompile(rootOpts *RootOptions, opts *CompileOptions, out io.Writer) error {
	logger := rootOpts.logger
	registry, err := rootOpts.config.registry()
	if err != nil {
		return err
	}
	model, ok := registry.Model(opts.Table)
	if !ok {
		return fmt.Errorf("model %q is not defined in %s", opts.Table, rootOpts.config.Models)
	}

	compiler := criteria.New(rootOpts.config.Criteria,
		criteria.WithLogger(logger),
		criteria.WithRelations(registry))
	dsl, err := compiler.Compile(criteria.StaticSearchable{Name: model.Name, Fields: model.Searchable}, opts.Params)
	if err != nil {
		return err
	}
	logger.Debug("Compiled request criteria", zap.String("table", model.Name))

	var output any = dsl
	if opts.SQL {
		generator, err := sqlite.NewSqliteQuery(registry, logger)
		if err != nil {
			return err
		}
		stmt, args, err := generator.GenerateSelectSQL(dsl)
		if err != nil {
			return fmt.Errorf("failed to render SQL: %w", err)
		}
		if args == nil {
			args = []any{}
		}
		output = compiledSQL{SQL: stmt, Args: args}
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(output)
}

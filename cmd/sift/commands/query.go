package commands

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zentient/sift/config"
	"github.com/zentient/sift/db"
	"github.com/zentient/sift/errors"
	"github.com/zentient/sift/logger"
	"github.com/zentient/sift/query"
)

var (
	queryWhere []string
	queryOrder string
	queryDesc  bool
	querySkip  int
	queryTake  int
	queryGroup string
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// QueryCmd represents the query command
var QueryCmd = &cobra.Command{
	Use:   "query <table>",
	Short: "Filter, order, and page rows of a table",
	Long: `Build a query specification from flags and run it against a table.

Conditions are "field op value" with ops eq, ne, gt, gte, lt, lte, contains,
or the shorthand "field=value". Repeated --where flags are ANDed.

Examples:
  sift query items --where "score gt 1" --order name
  sift query items --where name=XUnit
  sift query items --order name --skip 1 --take 1`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		table := args[0]
		if !tableNamePattern.MatchString(table) {
			return errors.Newf("invalid table name %q", table)
		}

		b := query.NewBuilder[map[string]any]()
		for _, raw := range queryWhere {
			expr, err := parseCondition(raw)
			if err != nil {
				return err
			}
			b.Where(expr)
		}
		if queryOrder != "" {
			b.OrderBy(queryOrder, queryDesc)
		}
		if queryGroup != "" {
			b.GroupBy(queryGroup)
		}
		if cmd.Flags().Changed("skip") {
			b.Skip(querySkip)
		}
		if cmd.Flags().Changed("take") {
			b.Take(queryTake)
		}
		if err := b.Err(); err != nil {
			return err
		}

		path, err := config.GetDatabasePath()
		if err != nil {
			return err
		}
		conn, err := db.Open(path, logger.Logger)
		if err != nil {
			return err
		}
		defer conn.Close()

		rows, err := readTable(cmd.Context(), conn, table)
		if err != nil {
			return err
		}

		matched, err := b.Build().Apply(cmd.Context(), rows, query.Args{})
		if err != nil {
			return err
		}

		logger.Debugw("Query applied",
			"table", table,
			"scanned", len(rows),
			"matched", len(matched),
		)

		for _, row := range matched {
			line, err := json.Marshal(row)
			if err != nil {
				return err
			}
			fmt.Println(string(line))
		}
		fmt.Printf("%d row(s)\n", len(matched))
		return nil
	},
}

func init() {
	QueryCmd.Flags().StringArrayVar(&queryWhere, "where", nil, `Condition "field op value" (repeatable, ANDed)`)
	QueryCmd.Flags().StringVar(&queryOrder, "order", "", "Field to order by")
	QueryCmd.Flags().BoolVar(&queryDesc, "desc", false, "Order descending")
	QueryCmd.Flags().IntVar(&querySkip, "skip", 0, "Rows to skip")
	QueryCmd.Flags().IntVar(&queryTake, "take", 0, "Maximum rows to return")
	QueryCmd.Flags().StringVar(&queryGroup, "group", "", "Field to cluster the output by")
}

// parseCondition turns "field op value" or "field=value" into an expression.
func parseCondition(raw string) (query.Expr, error) {
	if idx := strings.IndexByte(raw, '='); idx > 0 && !strings.ContainsRune(raw, ' ') {
		return query.Eq(raw[:idx], parseLiteral(raw[idx+1:])), nil
	}

	parts := strings.SplitN(strings.TrimSpace(raw), " ", 3)
	if len(parts) != 3 {
		return nil, errors.Newf(`condition %q is not "field op value"`, raw)
	}
	op, ok := query.ParseOp(parts[1])
	if !ok {
		return nil, errors.Newf("unknown operator %q in condition %q", parts[1], raw)
	}
	return query.Cmp{Field: parts[0], Op: op, Value: parseLiteral(parts[2])}, nil
}

// parseLiteral guesses the value type: integer, float, bool, then string.
func parseLiteral(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

// readTable scans every row of a table into map entities keyed by column
// name.
func readTable(ctx context.Context, conn *sql.DB, table string) ([]map[string]any, error) {
	rows, err := conn.QueryContext(ctx, "SELECT * FROM "+table)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read table %s", table)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read columns of %s", table)
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, errors.Wrapf(err, "failed to scan row of %s", table)
		}

		row := make(map[string]any, len(columns))
		for i, column := range columns {
			value := values[i]
			// SQLite hands text back as []byte; strings are friendlier for
			// filtering and printing.
			if b, ok := value.([]byte); ok {
				value = string(b)
			}
			row[column] = value
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read rows of %s", table)
	}
	return out, nil
}

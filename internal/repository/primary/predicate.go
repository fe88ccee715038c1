package primary

import (
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/routedex/internal/domain/criteria"
)

// ownerAlias is the table alias of the queried entity in generated SQL.
const ownerAlias = "t"

type sqlBuilder struct {
	args []any
}

func newSQLBuilder() *sqlBuilder {
	return &sqlBuilder{args: make([]any, 0)}
}

func (b *sqlBuilder) addArg(value any) int {
	b.args = append(b.args, value)
	return len(b.args)
}

func (b *sqlBuilder) placeholder(idx int) string {
	return fmt.Sprintf("$%d", idx)
}

// bind adds a scalar operand and returns its cast placeholder.
func (b *sqlBuilder) bind(v criteria.Value) (string, error) {
	arg, err := scalarArg(v)
	if err != nil {
		return "", err
	}
	return b.placeholder(b.addArg(arg)) + scalarCast(v.Kind()), nil
}

// bindSet adds a set operand as one array parameter.
func (b *sqlBuilder) bindSet(kind criteria.Kind, values []criteria.Value) (string, error) {
	arg, err := arrayArg(kind, values)
	if err != nil {
		return "", err
	}
	return b.placeholder(b.addArg(arg)) + arrayCast(kind), nil
}

// Where translates criteria into a boolean SQL expression over ownerAlias and
// its positional arguments. Empty criteria translate to TRUE.
func Where(c *criteria.Criteria) (string, []any, error) {
	b := newSQLBuilder()
	preds, err := translate(c, ownerAlias, b)
	if err != nil {
		return "", nil, err
	}
	if len(preds) == 0 {
		return "TRUE", b.args, nil
	}
	return strings.Join(preds, " AND "), b.args, nil
}

func translate(c *criteria.Criteria, alias string, b *sqlBuilder) ([]string, error) {
	schema := c.Schema()
	idCol, err := idColumn(schema)
	if err != nil {
		return nil, err
	}

	var preds []string
	subqueries := 0
	for _, f := range c.Filters() {
		if rel, ok := schema.Relation(f.Key()); ok && rel.Kind == criteria.ToMany {
			for _, cond := range f.Conditions() {
				subqueries++
				expr, constrains, err := b.relationCondition(alias+"."+idCol, rel, cond, subqueries)
				if err != nil {
					return nil, err
				}
				if constrains {
					preds = append(preds, expr)
				}
			}
			continue
		}

		col, err := column(schema, alias, f.Key())
		if err != nil {
			return nil, err
		}
		for _, cond := range f.Conditions() {
			expr, constrains, err := b.condition(col, f.Kind(), cond)
			if err != nil {
				return nil, err
			}
			if constrains {
				preds = append(preds, expr)
			}
		}
	}
	return preds, nil
}

// condition renders one operator over a column. constrains is false when the
// condition admits every row (notIn with an empty set).
func (b *sqlBuilder) condition(col string, kind criteria.Kind, c criteria.Condition) (string, bool, error) {
	switch c.Operator() {
	case criteria.OpSpecified:
		if c.Specified() {
			return col + " IS NOT NULL", true, nil
		}
		return col + " IS NULL", true, nil
	case criteria.OpIn:
		if len(c.Values()) == 0 {
			return "FALSE", true, nil
		}
		ph, err := b.bindSet(kind, c.Values())
		if err != nil {
			return "", false, err
		}
		return fmt.Sprintf("%s = ANY(%s)", col, ph), true, nil
	case criteria.OpNotIn:
		if len(c.Values()) == 0 {
			return "", false, nil
		}
		ph, err := b.bindSet(kind, c.Values())
		if err != nil {
			return "", false, err
		}
		return fmt.Sprintf("(%s IS NOT NULL AND NOT (%s = ANY(%s)))", col, col, ph), true, nil
	case criteria.OpContains, criteria.OpNotContains:
		ph := b.placeholder(b.addArg("%" + escapeLike(c.Operand().String()) + "%"))
		if c.Operator() == criteria.OpContains {
			return fmt.Sprintf(`%s LIKE %s ESCAPE '\'`, col, ph), true, nil
		}
		return fmt.Sprintf(`(%s IS NOT NULL AND %s NOT LIKE %s ESCAPE '\')`, col, col, ph), true, nil
	}

	sqlOp, ok := comparisonOps[c.Operator()]
	if !ok {
		return "", false, fmt.Errorf("unsupported operator %q", c.Operator())
	}
	ph, err := b.bind(c.Operand())
	if err != nil {
		return "", false, err
	}
	if c.Operator() == criteria.OpNotEquals {
		return fmt.Sprintf("(%s IS NOT NULL AND %s <> %s)", col, col, ph), true, nil
	}
	return fmt.Sprintf("%s %s %s", col, sqlOp, ph), true, nil
}

var comparisonOps = map[criteria.Operator]string{
	criteria.OpEquals:             "=",
	criteria.OpNotEquals:          "<>",
	criteria.OpGreaterThan:        ">",
	criteria.OpGreaterThanOrEqual: ">=",
	criteria.OpLessThan:           "<",
	criteria.OpLessThanOrEqual:    "<=",
}

// relationCondition renders one condition on a to-many relation id as a
// semi-join, so owner rows are never duplicated.
func (b *sqlBuilder) relationCondition(
	ownerID string, rel criteria.Relation, c criteria.Condition, n int,
) (string, bool, error) {
	sub := fmt.Sprintf("r%d", n)
	exists := fmt.Sprintf("SELECT 1 FROM %s %s WHERE %s.%s = %s", rel.Table, sub, sub, rel.Column, ownerID)

	switch {
	case c.Operator() == criteria.OpSpecified:
		if c.Specified() {
			return "EXISTS (" + exists + ")", true, nil
		}
		return "NOT EXISTS (" + exists + ")", true, nil
	case c.Operator() == criteria.OpIn && len(c.Values()) == 0:
		return "FALSE", true, nil
	case c.Operator() == criteria.OpNotIn && len(c.Values()) == 0:
		return "", false, nil
	}

	expr, _, err := b.condition(sub+".id", criteria.KindInteger, c)
	if err != nil {
		return "", false, err
	}
	return fmt.Sprintf("EXISTS (%s AND %s)", exists, expr), true, nil
}

func idColumn(schema *criteria.Schema) (string, error) {
	f, ok := schema.Field(criteria.IDField)
	if !ok {
		return "", fmt.Errorf("schema %s has no id field", schema.Entity)
	}
	return f.Column, nil
}

// column resolves a field or to-one relation key to its qualified column.
func column(schema *criteria.Schema, alias, key string) (string, error) {
	if f, ok := schema.Field(key); ok {
		return alias + "." + f.Column, nil
	}
	if rel, ok := schema.Relation(key); ok && rel.Kind == criteria.ToOne {
		return alias + "." + rel.Column, nil
	}
	return "", fmt.Errorf("no column for key %q of %s", key, schema.Entity)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }

// Decimal, date and UUID operands travel as text and are cast server-side, so
// comparisons are exact and independent of client-side encoders.
func scalarCast(k criteria.Kind) string {
	switch k {
	case criteria.KindString:
		return "::text"
	case criteria.KindInteger:
		return "::bigint"
	case criteria.KindDecimal:
		return "::text::numeric"
	case criteria.KindBoolean:
		return "::boolean"
	case criteria.KindInstant:
		return "::timestamptz"
	case criteria.KindDate:
		return "::text::date"
	case criteria.KindUUID:
		return "::text::uuid"
	default:
		return ""
	}
}

func arrayCast(k criteria.Kind) string {
	switch k {
	case criteria.KindString:
		return "::text[]"
	case criteria.KindInteger:
		return "::bigint[]"
	case criteria.KindDecimal:
		return "::text[]::numeric[]"
	case criteria.KindBoolean:
		return "::boolean[]"
	case criteria.KindInstant:
		return "::timestamptz[]"
	case criteria.KindDate:
		return "::text[]::date[]"
	case criteria.KindUUID:
		return "::text[]::uuid[]"
	default:
		return ""
	}
}

func scalarArg(v criteria.Value) (any, error) {
	switch x := v.(type) {
	case criteria.String:
		return string(x), nil
	case criteria.Integer:
		return int64(x), nil
	case criteria.Decimal, criteria.Date, criteria.UUID:
		return x.String(), nil
	case criteria.Boolean:
		return bool(x), nil
	case criteria.Instant:
		return x.Time(), nil
	default:
		return nil, fmt.Errorf("unsupported operand %T", v)
	}
}

func arrayArg(kind criteria.Kind, values []criteria.Value) (any, error) {
	switch kind {
	case criteria.KindInteger:
		out := make([]int64, 0, len(values))
		for _, v := range values {
			i, ok := v.(criteria.Integer)
			if !ok {
				return nil, fmt.Errorf("expected integer operand, got %T", v)
			}
			out = append(out, int64(i))
		}
		return out, nil
	case criteria.KindBoolean:
		out := make([]bool, 0, len(values))
		for _, v := range values {
			bv, ok := v.(criteria.Boolean)
			if !ok {
				return nil, fmt.Errorf("expected boolean operand, got %T", v)
			}
			out = append(out, bool(bv))
		}
		return out, nil
	case criteria.KindInstant:
		out := make([]time.Time, 0, len(values))
		for _, v := range values {
			iv, ok := v.(criteria.Instant)
			if !ok {
				return nil, fmt.Errorf("expected instant operand, got %T", v)
			}
			out = append(out, iv.Time())
		}
		return out, nil
	case criteria.KindString, criteria.KindDecimal, criteria.KindDate, criteria.KindUUID:
		out := make([]string, 0, len(values))
		for _, v := range values {
			if v.Kind() != kind {
				return nil, fmt.Errorf("expected %s operand, got %s", kind, v.Kind())
			}
			out = append(out, v.String())
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported kind %s", kind)
	}
}

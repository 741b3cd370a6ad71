package awstest

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// item is a stored DynamoDB document.
type item = map[string]types.AttributeValue

// scope resolves #name and :value placeholders of one request.
type scope struct {
	names  map[string]string
	values map[string]types.AttributeValue
}

func (s scope) attrName(tok string) string {
	if strings.HasPrefix(tok, "#") {
		if n, ok := s.names[tok]; ok {
			return n
		}
	}
	return tok
}

func (s scope) operand(it item, tok string) types.AttributeValue {
	if strings.HasPrefix(tok, ":") {
		return s.values[tok]
	}
	return it[s.attrName(tok)]
}

func tokenize(expr string) []string {
	var toks []string
	rs := []rune(expr)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(' || r == ')' || r == ',' || r == '+' || r == '-':
			toks = append(toks, string(r))
			i++
		case r == '<' || r == '>' || r == '=':
			if i+1 < len(rs) && (rs[i+1] == '=' || (r == '<' && rs[i+1] == '>')) {
				toks = append(toks, string(rs[i:i+2]))
				i += 2
			} else {
				toks = append(toks, string(r))
				i++
			}
		default:
			j := i
			for j < len(rs) && isWordRune(rs[j]) {
				j++
			}
			if j == i {
				j = i + 1
			}
			toks = append(toks, string(rs[i:j]))
			i = j
		}
	}
	return toks
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '#' || r == ':' || r == '.'
}

type condParser struct {
	toks []string
	pos  int
	sc   scope
	it   item
}

// evalCondition evaluates a condition, filter or key-condition expression
// against an item. A missing item evaluates as an empty document.
func evalCondition(expr string, sc scope, it item) (bool, error) {
	if strings.TrimSpace(expr) == "" {
		return true, nil
	}
	if it == nil {
		it = item{}
	}
	p := &condParser{toks: tokenize(expr), sc: sc, it: it}
	v, err := p.or()
	if err != nil {
		return false, err
	}
	if p.pos != len(p.toks) {
		return false, fmt.Errorf("unexpected token %q in %q", p.toks[p.pos], expr)
	}
	return v, nil
}

func (p *condParser) peek() string {
	if p.pos < len(p.toks) {
		return p.toks[p.pos]
	}
	return ""
}

func (p *condParser) next() string {
	t := p.peek()
	p.pos++
	return t
}

func (p *condParser) expect(tok string) error {
	if got := p.next(); got != tok {
		return fmt.Errorf("expected %q, got %q", tok, got)
	}
	return nil
}

func (p *condParser) or() (bool, error) {
	v, err := p.and()
	if err != nil {
		return false, err
	}
	for strings.EqualFold(p.peek(), "OR") {
		p.next()
		r, err := p.and()
		if err != nil {
			return false, err
		}
		v = v || r
	}
	return v, nil
}

func (p *condParser) and() (bool, error) {
	v, err := p.not()
	if err != nil {
		return false, err
	}
	for strings.EqualFold(p.peek(), "AND") {
		p.next()
		r, err := p.not()
		if err != nil {
			return false, err
		}
		v = v && r
	}
	return v, nil
}

func (p *condParser) not() (bool, error) {
	if strings.EqualFold(p.peek(), "NOT") {
		p.next()
		v, err := p.not()
		return !v, err
	}
	return p.primary()
}

func (p *condParser) primary() (bool, error) {
	tok := p.next()
	if tok == "(" {
		v, err := p.or()
		if err != nil {
			return false, err
		}
		return v, p.expect(")")
	}

	if fn := strings.ToLower(tok); p.peek() == "(" && isFunc(fn) {
		p.next()
		var args []string
		for {
			args = append(args, p.next())
			if p.peek() == "," {
				p.next()
				continue
			}
			break
		}
		if err := p.expect(")"); err != nil {
			return false, err
		}
		return p.call(fn, args)
	}

	left := p.sc.operand(p.it, tok)
	op := p.next()
	if strings.EqualFold(op, "BETWEEN") {
		lo := p.sc.operand(p.it, p.next())
		if !strings.EqualFold(p.next(), "AND") {
			return false, fmt.Errorf("malformed BETWEEN")
		}
		hi := p.sc.operand(p.it, p.next())
		a, errA := compare(left, lo)
		b, errB := compare(left, hi)
		if errA != nil || errB != nil {
			return false, nil
		}
		return a >= 0 && b <= 0, nil
	}
	right := p.sc.operand(p.it, p.next())
	c, err := compare(left, right)
	if err != nil {
		return false, nil
	}
	switch op {
	case "=":
		return c == 0, nil
	case "<>":
		return c != 0, nil
	case "<":
		return c < 0, nil
	case "<=":
		return c <= 0, nil
	case ">":
		return c > 0, nil
	case ">=":
		return c >= 0, nil
	}
	return false, fmt.Errorf("unknown comparator %q", op)
}

func isFunc(name string) bool {
	switch name {
	case "attribute_exists", "attribute_not_exists", "contains", "begins_with":
		return true
	}
	return false
}

func (p *condParser) call(fn string, args []string) (bool, error) {
	switch fn {
	case "attribute_exists":
		_, ok := p.it[p.sc.attrName(args[0])]
		return ok, nil
	case "attribute_not_exists":
		_, ok := p.it[p.sc.attrName(args[0])]
		return !ok, nil
	}
	if len(args) != 2 {
		return false, fmt.Errorf("%s expects two arguments", fn)
	}
	subject := p.sc.operand(p.it, args[0])
	needle, ok := p.sc.operand(p.it, args[1]).(*types.AttributeValueMemberS)
	if !ok {
		return false, nil
	}
	switch s := subject.(type) {
	case *types.AttributeValueMemberS:
		if fn == "contains" {
			return strings.Contains(s.Value, needle.Value), nil
		}
		return strings.HasPrefix(s.Value, needle.Value), nil
	case *types.AttributeValueMemberSS:
		for _, v := range s.Value {
			if v == needle.Value {
				return true, nil
			}
		}
	}
	return false, nil
}

func compare(a, b types.AttributeValue) (int, error) {
	switch av := a.(type) {
	case *types.AttributeValueMemberN:
		bv, ok := b.(*types.AttributeValueMemberN)
		if !ok {
			return 0, fmt.Errorf("type mismatch")
		}
		x, err := strconv.ParseFloat(av.Value, 64)
		if err != nil {
			return 0, err
		}
		y, err := strconv.ParseFloat(bv.Value, 64)
		if err != nil {
			return 0, err
		}
		switch {
		case x < y:
			return -1, nil
		case x > y:
			return 1, nil
		}
		return 0, nil
	case *types.AttributeValueMemberS:
		bv, ok := b.(*types.AttributeValueMemberS)
		if !ok {
			return 0, fmt.Errorf("type mismatch")
		}
		return strings.Compare(av.Value, bv.Value), nil
	case *types.AttributeValueMemberBOOL:
		bv, ok := b.(*types.AttributeValueMemberBOOL)
		if !ok || av.Value != bv.Value {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("unsupported comparison")
}

// applyUpdate applies a SET-only update expression to a copy of it.
func applyUpdate(expr string, sc scope, it item) (item, error) {
	out := item{}
	for k, v := range it {
		out[k] = v
	}
	expr = strings.TrimSpace(expr)
	if !strings.HasPrefix(strings.ToUpper(expr), "SET ") {
		return nil, fmt.Errorf("only SET update expressions are supported: %q", expr)
	}
	for _, clause := range splitTopLevel(expr[4:]) {
		eq := strings.Index(clause, "=")
		if eq < 0 {
			return nil, fmt.Errorf("malformed SET clause %q", clause)
		}
		lhs := sc.attrName(strings.TrimSpace(clause[:eq]))
		v, err := evalValue(tokenize(clause[eq+1:]), sc, it)
		if err != nil {
			return nil, err
		}
		out[lhs] = v
	}
	return out, nil
}

func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

func evalValue(toks []string, sc scope, it item) (types.AttributeValue, error) {
	term := func(i int) (types.AttributeValue, int, error) {
		if strings.EqualFold(toks[i], "if_not_exists") {
			// if_not_exists ( attr , :v )
			if len(toks) < i+6 {
				return nil, 0, fmt.Errorf("malformed if_not_exists")
			}
			if v, ok := it[sc.attrName(toks[i+2])]; ok {
				return v, i + 6, nil
			}
			return sc.operand(it, toks[i+4]), i + 6, nil
		}
		return sc.operand(it, toks[i]), i + 1, nil
	}

	left, i, err := term(0)
	if err != nil {
		return nil, err
	}
	if i >= len(toks) {
		if left == nil {
			return nil, fmt.Errorf("unresolved operand in update")
		}
		return left, nil
	}
	op := toks[i]
	right, _, err := term(i + 1)
	if err != nil {
		return nil, err
	}
	ln, lok := left.(*types.AttributeValueMemberN)
	rn, rok := right.(*types.AttributeValueMemberN)
	if !lok || !rok {
		return nil, fmt.Errorf("arithmetic on non-number operands")
	}
	x, _ := strconv.ParseFloat(ln.Value, 64)
	y, _ := strconv.ParseFloat(rn.Value, 64)
	res := x + y
	if op == "-" {
		res = x - y
	}
	return &types.AttributeValueMemberN{Value: strconv.FormatFloat(res, 'f', -1, 64)}, nil
}

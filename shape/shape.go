package shape

import (
	"fmt"
	"strconv"
	"strings"

	. "github.com/stevegt/goadapt"
	"github.com/stevegt/dendrite"
	"github.com/xiam/sexpr/ast"
	"github.com/xiam/sexpr/parser"
)

// Shape is a textual description of a network's topology:
//
//	(name (activation count)... (activation outputName...))
//
// Each (activation count) expression is a hidden layer.  An optional
// final expression whose arguments are names instead of a count
// describes the output layer; its width still comes from the training
// data, so the names are only labels.  Example:
//
//	(xor (tanh 4) (sigmoid y))
type Shape struct {
	Name        string
	LayerShapes []*LayerShape
	Output      *OutputShape
}

// LayerShape describes one hidden layer.
type LayerShape struct {
	ActivationName string
	Count          int
}

// OutputShape describes the output layer.
type OutputShape struct {
	ActivationName string
	Names          []string
}

func (s *Shape) String() (out string) {
	parts := []string{s.Name}
	for _, layer := range s.LayerShapes {
		parts = append(parts, layer.String())
	}
	if s.Output != nil {
		parts = append(parts, s.Output.String())
	}
	out = Spf("(%s)", strings.Join(parts, " "))
	return
}

func (l *LayerShape) String() string {
	return Spf("(%s %d)", l.ActivationName, l.Count)
}

func (o *OutputShape) String() string {
	return Spf("(%s %s)", o.ActivationName, strings.Join(o.Names, " "))
}

// HiddenLayers returns the neuron count of each hidden layer.
func (s *Shape) HiddenLayers() (sizes []int) {
	for _, layer := range s.LayerShapes {
		sizes = append(sizes, layer.Count)
	}
	return
}

// Config returns a copy of base with HiddenLayers taken from the
// shape.  If base has no activation, the first activation named in
// the shape becomes the default.
func (s *Shape) Config(base dendrite.Config) (cfg dendrite.Config, err error) {
	cfg = base
	cfg.HiddenLayers = s.HiddenLayers()
	if cfg.Activation.Valid() {
		return
	}
	var name string
	switch {
	case len(s.LayerShapes) > 0:
		name = s.LayerShapes[0].ActivationName
	case s.Output != nil:
		name = s.Output.ActivationName
	default:
		return cfg, fmt.Errorf("%w: shape %s names no activation", dendrite.ErrUnsupportedFunction, s.Name)
	}
	cfg.Activation, err = dendrite.ActivationByName(name)
	return
}

// Build creates an uninitialized network with the shape's topology
// and per-layer activations.  Hyperparameters come from base.
func (s *Shape) Build(base dendrite.Config) (net *dendrite.Network, err error) {
	cfg, err := s.Config(base)
	if err != nil {
		return
	}
	net, err = dendrite.NewNetwork(cfg)
	if err != nil {
		return nil, err
	}
	for i, layer := range s.LayerShapes {
		a, err := dendrite.ActivationByName(layer.ActivationName)
		if err != nil {
			return nil, err
		}
		// layer 0 is the input layer
		err = net.SetLayerActivation(i+1, a)
		if err != nil {
			return nil, err
		}
	}
	if s.Output != nil {
		a, err := dendrite.ActivationByName(s.Output.ActivationName)
		if err != nil {
			return nil, err
		}
		err = net.SetOutputActivation(a)
		if err != nil {
			return nil, err
		}
	}
	return
}

// SyntaxError is a syntax error.
type SyntaxError struct {
	msg  string
	node *ast.Node
}

func (e *SyntaxError) Error() string {
	if e.node == nil || e.node.Token() == nil {
		return Spf("[shape] %s", e.msg)
	}
	return Spf("[shape:%s] %s:\n%s", e.node.Token().Pos(), e.msg, e.node.String())
}

// synck raises a syntax err if cond is false.
func synck(node *ast.Node, cond bool, args ...interface{}) {
	if !cond {
		msg := FormatArgs(args...)
		panic(&SyntaxError{msg, node})
	}
}

// syntaxReturn recovers a *SyntaxError raised by synck and returns it
// in err.  Any other panic is re-raised for goadapt's Return.
func syntaxReturn(err *error) {
	r := recover()
	if r == nil {
		return
	}
	synErr, ok := r.(*SyntaxError)
	if !ok {
		panic(r)
	}
	*err = synErr
}

// Parse parses a shape string.
func Parse(txt string) (s *Shape, err error) {
	defer func() {
		if err != nil {
			s = nil
		}
	}()
	defer Return(&err)
	defer syntaxReturn(&err)
	root, err := parser.Parse([]byte(txt))
	Ck(err)

	// root is a list
	synck(root, root.Type() == ast.NodeTypeList, "root is not a list")
	// root has one child; point at the first extra one, since the
	// root itself has no position
	children := root.List()
	node := root
	if len(children) > 1 {
		node = children[1]
	}
	synck(node, len(children) == 1, "root has %d children", len(children))
	// root's child is an expression
	expr := children[0]
	synck(expr, expr.Type() == ast.NodeTypeExpression, "root's child is not an expression")
	return parseShape(expr)
}

// Expr is a parsed s-expression: an operator symbol and its
// arguments.  Atoms are Exprs with no Args.
type Expr struct {
	Op   string
	Args []Expr
	node *ast.Node
}

func parseShape(n *ast.Node) (s *Shape, err error) {
	defer Return(&err)
	defer syntaxReturn(&err)
	s = &Shape{}
	expr, err := parseExpr(n)
	if err != nil {
		return nil, err
	}
	s.Name = expr.Op
	for i, arg := range expr.Args {
		synck(arg.node, len(arg.Args) > 0, "expected a layer expression, got %q", arg.Op)
		synck(arg.node, s.Output == nil, "output layer must be last")
		_, err := dendrite.ActivationByName(arg.Op)
		synck(arg.node, err == nil, "%v", err)
		count, err := strconv.Atoi(arg.Args[0].Op)
		if err != nil {
			// output layer: the rest are names
			output := &OutputShape{ActivationName: arg.Op}
			for _, nameExpr := range arg.Args {
				synck(nameExpr.node, len(nameExpr.Args) == 0, "output name is not a symbol")
				_, err := strconv.Atoi(nameExpr.Op)
				synck(nameExpr.node, err != nil, "output layer mixes names and counts")
				output.Names = append(output.Names, nameExpr.Op)
			}
			s.Output = output
			continue
		}
		synck(arg.node, len(arg.Args) == 1, "layer %d has more than one count", i+1)
		synck(arg.node, count > 0, "layer %d has %d neurons", i+1, count)
		s.LayerShapes = append(s.LayerShapes, &LayerShape{ActivationName: arg.Op, Count: count})
	}
	return
}

func parseExpr(n *ast.Node) (expr *Expr, err error) {
	defer Return(&err)
	defer syntaxReturn(&err)
	children := n.List()
	synck(n, len(children) > 0, "missing opcode")
	synck(n, children[0].Type() == ast.NodeTypeSymbol, "first word is not a symbol")
	expr = &Expr{node: n}
	expr.Op = children[0].Encode()
	for i := 1; i < len(children); i++ {
		switch children[i].Type() {
		case ast.NodeTypeSymbol, ast.NodeTypeInt:
			expr.Args = append(expr.Args, Expr{Op: children[i].Encode(), node: children[i]})
		case ast.NodeTypeExpression:
			arg, err := parseExpr(children[i])
			if err != nil {
				return nil, err
			}
			expr.Args = append(expr.Args, *arg)
		default:
			synck(children[i], false, "unexpected node type %v", children[i].Type())
		}
	}
	return
}

package sast

// The constructors below exist because base is unexported: internal/
// specparser, which builds every Expr node, lives outside this package and
// needs a way to stamp a Range onto each variant without reaching into an
// embedded field by name (mirrors internal/hostast's constructors.go).
//
// Every Expr is handed out as a pointer so nodes have identity: the type
// environment and semantic map in internal/typecheck key their entries by
// node, and two structurally equal expressions must stay distinct there.

func NewIntLiteral(r Range, value string) *IntLiteral { return &IntLiteral{base{r}, value} }
func NewBoolLiteral(r Range, value bool) *BoolLiteral { return &BoolLiteral{base{r}, value} }
func NewAddressLiteral(r Range, value string) *AddressLiteral {
	return &AddressLiteral{base{r}, value}
}
func NewStringLiteral(r Range, value string) *StringLiteral { return &StringLiteral{base{r}, value} }

func NewIdentifier(r Range, name string) *Identifier { return &Identifier{base{r}, name} }

func NewIndex(r Range, b, idx Expr) *Index            { return &Index{base{r}, b, idx} }
func NewMember(r Range, b Expr, name string) *Member  { return &Member{base{r}, b, name} }
func NewCall(r Range, callee Expr, args []Expr) *Call { return &Call{base{r}, callee, args} }

func NewUnaryOp(r Range, op string, operand Expr) *UnaryOp {
	return &UnaryOp{base{r}, op, operand}
}
func NewBinaryOp(r Range, op string, left, right Expr) *BinaryOp {
	return &BinaryOp{base{r}, op, left, right}
}
func NewConditional(r Range, cond, then, els Expr) *Conditional {
	return &Conditional{base{r}, cond, then, els}
}

func NewOld(r Range, operand Expr) *Old { return &Old{base{r}, operand} }

func NewLet(r Range, name string, value, body Expr) *Let {
	return &Let{base{r}, name, value, body}
}

func NewQuantifier(r Range, kind QuantifierKind, binder string, boundType Type, rangeExpr, body Expr) *Quantifier {
	return &Quantifier{base{r}, kind, binder, boundType, rangeExpr, body}
}

func NewTuple(r Range, elements []Expr) *Tuple { return &Tuple{base{r}, elements} }

func NewCast(r Range, target Type, operand Expr) *Cast { return &Cast{base{r}, target, operand} }

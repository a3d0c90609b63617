package hostast

// SetNodeRange overwrites n's source range in place. The merger uses it to
// remap FileIndex into the merged arena's file table; the instrumenter
// stamps freshly minted nodes with the annotation span they derive from so
// the metadata emitter can trace them back.
func SetNodeRange(n Node, r Range) {
	switch v := n.(type) {
	case *SourceUnit:
		v.Rng = r
	case *Import:
		v.Rng = r
	case *ContractDecl:
		v.Rng = r
	case *FunctionDecl:
		v.Rng = r
	case *VariableDecl:
		v.Rng = r
	case *StructDecl:
		v.Rng = r
	case *EnumDecl:
		v.Rng = r
	case *DocComment:
		v.Rng = r
	case *Block:
		v.Rng = r
	case *RawStmt:
		v.Rng = r
	case *VarDeclStmt:
		v.Rng = r
	case *ExprStmt:
		v.Rng = r
	case *IfStmt:
		v.Rng = r
	case *ForStmt:
		v.Rng = r
	case *ReturnStmt:
		v.Rng = r
	case *Ident:
		v.Rng = r
	case *RawExpr:
		v.Rng = r
	case *Call:
		v.Rng = r
	}
}

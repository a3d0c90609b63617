package hostast

// The constructors below are the factory the instrumenter (internal/
// instrument) and test fixtures use to mint nodes; they exist because base
// is unexported and every concrete node must embed it correctly.

func NewSourceUnit(id NodeID, rng Range, path string, imports, contracts []NodeID) *SourceUnit {
	return &SourceUnit{base: base{Ident: id, Rng: rng}, Path: path, Imports: imports, Contracts: contracts}
}

func NewImport(id NodeID, rng Range, path, alias string, symbolAliases map[string]string) *Import {
	return &Import{base: base{Ident: id, Rng: rng}, Path: path, UnitAlias: alias, SymbolAliases: symbolAliases}
}

func NewContractDecl(id NodeID, rng Range, name string, kind Kind, bases []string) *ContractDecl {
	return &ContractDecl{base: base{Ident: id, Rng: rng}, Name: name, ContractKind: kind, BaseNames: bases}
}

func NewFunctionDecl(id NodeID, rng Range, name, visibility, mutability string) *FunctionDecl {
	return &FunctionDecl{base: base{Ident: id, Rng: rng}, Name: name, Visibility: visibility, StateMutability: mutability}
}

func NewVariableDecl(id NodeID, rng Range, name, typeString, visibility string, contractID NodeID) *VariableDecl {
	return &VariableDecl{base: base{Ident: id, Rng: rng}, Name: name, TypeString: typeString, Visibility: visibility, ContractID: contractID}
}

func NewStructDecl(id NodeID, rng Range, name string, fields []Param, contractID NodeID) *StructDecl {
	return &StructDecl{base: base{Ident: id, Rng: rng}, Name: name, Fields: fields, ContractID: contractID}
}

func NewEnumDecl(id NodeID, rng Range, name string, members []string, contractID NodeID) *EnumDecl {
	return &EnumDecl{base: base{Ident: id, Rng: rng}, Name: name, Members: members, ContractID: contractID}
}

func NewDocComment(id NodeID, rng Range, text string) *DocComment {
	return &DocComment{base: base{Ident: id, Rng: rng}, Text: text}
}

func NewBlock(id NodeID, rng Range, statements []NodeID) *Block {
	return &Block{base: base{Ident: id, Rng: rng}, Statements: statements}
}

func NewRawStmt(id NodeID, rng Range, text string) *RawStmt {
	return &RawStmt{base: base{Ident: id, Rng: rng}, Text: text}
}

func NewVarDeclStmt(id NodeID, rng Range, name, typeString string, init NodeID) *VarDeclStmt {
	return &VarDeclStmt{base: base{Ident: id, Rng: rng}, Name: name, TypeString: typeString, Init: init}
}

func NewExprStmt(id NodeID, rng Range, expr NodeID) *ExprStmt {
	return &ExprStmt{base: base{Ident: id, Rng: rng}, Expr: expr}
}

func NewIfStmt(id NodeID, rng Range, cond, then, els NodeID) *IfStmt {
	return &IfStmt{base: base{Ident: id, Rng: rng}, Cond: cond, Then: then, Else: els}
}

func NewForStmt(id NodeID, rng Range, initName string, start, end, body NodeID) *ForStmt {
	return &ForStmt{base: base{Ident: id, Rng: rng}, InitName: initName, RangeStart: start, RangeEnd: end, Body: body}
}

func NewReturnStmt(id NodeID, rng Range, value NodeID) *ReturnStmt {
	return &ReturnStmt{base: base{Ident: id, Rng: rng}, Value: value}
}

func NewIdent(id NodeID, rng Range, name string, referent NodeID) *Ident {
	return &Ident{base: base{Ident: id, Rng: rng}, Name: name, ReferentNode: referent}
}

func NewRawExpr(id NodeID, rng Range, text string) *RawExpr {
	return &RawExpr{base: base{Ident: id, Rng: rng}, Text: text}
}

func NewCall(id NodeID, rng Range, callee NodeID, args []NodeID) *Call {
	return &Call{base: base{Ident: id, Rng: rng}, Callee: callee, Args: args}
}

package token

// Type identifies the category of a token.
type Type string

// Token carries the lexical item along with its source position.
type Token struct {
	Type    Type
	Literal string
	Pos     Position
}

// Position describes a source name and 1-based line.
type Position struct {
	Source string
	Line   int
}

const (
	Illegal Type = "ILLEGAL"
	EOF     Type = "EOF"

	// identifiers and literals
	Ident   Type = "IDENT"
	Number  Type = "NUMBER"
	HexNum  Type = "HEXNUM"
	CharLit Type = "CHARLIT"
	String  Type = "STRING"

	// keywords
	And      Type = "AND"
	Array    Type = "ARRAY"
	Byte     Type = "BYTE"
	Card     Type = "CARD"
	Char     Type = "CHAR"
	Define   Type = "DEFINE"
	DevPrint Type = "DEVPRINT"
	Do       Type = "DO"
	Else     Type = "ELSE"
	ElseIf   Type = "ELSEIF"
	Exit     Type = "EXIT"
	Fi       Type = "FI"
	For      Type = "FOR"
	Func     Type = "FUNC"
	If       Type = "IF"
	Int      Type = "INT"
	Lsh      Type = "LSH"
	Mod      Type = "MOD"
	Module   Type = "MODULE"
	Od       Type = "OD"
	Or       Type = "OR"
	Pointer  Type = "POINTER"
	Proc     Type = "PROC"
	Return   Type = "RETURN"
	Rsh      Type = "RSH"
	Step     Type = "STEP"
	Then     Type = "THEN"
	To       Type = "TO"
	TypeDecl Type = "TYPE"
	Until    Type = "UNTIL"
	While    Type = "WHILE"
	Xor      Type = "XOR"

	// operators
	Plus         Type = "PLUS"         // +
	Minus        Type = "MINUS"        // -
	Star         Type = "STAR"         // *
	Slash        Type = "SLASH"        // /
	Amp          Type = "AMP"          // & (bitwise and)
	Percent      Type = "PERCENT"      // % (bitwise or)
	Equal        Type = "EQUAL"        // = (equality and assignment)
	NotEqual     Type = "NOTEQUAL"     // <> or #
	Less         Type = "LESS"         // <
	LessEqual    Type = "LESSEQUAL"    // <=
	Greater      Type = "GREATER"      // >
	GreaterEqual Type = "GREATEREQUAL" // >=
	Caret        Type = "CARET"        // ^ (pointer dereference)
	At           Type = "AT"           // @ (address of)
	SelfAssign   Type = "SELFASSIGN"   // ==

	// delimiters
	Comma    Type = "COMMA"
	Dot      Type = "DOT"
	LParen   Type = "LPAREN"
	RParen   Type = "RPAREN"
	LBracket Type = "LBRACKET"
	RBracket Type = "RBRACKET"
)

var keywords = map[string]Type{
	"AND":      And,
	"ARRAY":    Array,
	"BYTE":     Byte,
	"CARD":     Card,
	"CHAR":     Char,
	"DEFINE":   Define,
	"DEVPRINT": DevPrint,
	"DO":       Do,
	"ELSE":     Else,
	"ELSEIF":   ElseIf,
	"EXIT":     Exit,
	"FI":       Fi,
	"FOR":      For,
	"FUNC":     Func,
	"IF":       If,
	"INT":      Int,
	"LSH":      Lsh,
	"MOD":      Mod,
	"MODULE":   Module,
	"OD":       Od,
	"OR":       Or,
	"POINTER":  Pointer,
	"PROC":     Proc,
	"RETURN":   Return,
	"RSH":      Rsh,
	"STEP":     Step,
	"THEN":     Then,
	"TO":       To,
	"TYPE":     TypeDecl,
	"UNTIL":    Until,
	"WHILE":    While,
	"XOR":      Xor,
}

// LookupIdent returns the keyword token type or Ident.
func LookupIdent(ident string) Type {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return Ident
}

// IsFund reports whether t names a fundamental type.
func IsFund(t Type) bool {
	switch t {
	case Byte, Char, Int, Card:
		return true
	}
	return false
}

package syntax

// TokKind enumerates lexical tokens and reserved words, per spec.md §4.1.
type TokKind int

const (
	EOF TokKind = iota
	Newline
	Word // an unsplit word fragment; quoting is preserved inside it

	AndAndTok // &&
	OrOrTok   // ||
	Pipe      // |
	PipeAmp   // |&
	Amp       // &
	Semi      // ;
	DblSemi   // ;;
	SemiAmp   // ;&
	DblSemiAmp // ;;&

	Lparen // (
	Rparen // )
	Lbrace // {
	Rbrace // }
	DblLbrack // [[
	DblRbrack // ]]
	DblLparen // ((
	DblRparen // ))
	Bang // !

	RedirIn      // <
	RedirOut     // >
	RedirAppend  // >>
	RedirClobber // >|
	RedirHeredoc // <<
	RedirHeredocTab // <<-
	RedirHerestr // <<<
	RedirDupIn   // <&
	RedirDupOut  // >&
	RedirRW      // <>
	RedirBoth    // &>
	RedirBothApp // &>>
	ProcIn       // <(
	ProcOut      // >(

	// Reserved words (only recognized in command-start position).
	If
	Then
	Elif
	Else
	Fi
	For
	While
	Until
	Do
	Done
	Case
	Esac
	In
	Select
	Function
	Time
)

var reservedWords = map[string]TokKind{
	"if": If, "then": Then, "elif": Elif, "else": Else, "fi": Fi,
	"for": For, "while": While, "until": Until, "do": Do, "done": Done,
	"case": Case, "esac": Esac, "in": In, "select": Select,
	"function": Function, "time": Time, "!": Bang, "{": Lbrace, "}": Rbrace,
}

// Token is one lexical token: its kind, and for Word tokens, the raw
// source text with quoting markers still embedded so the parser's
// word-part scanner (wordFromRaw in wordparse.go) can re-walk it.
type Token struct {
	Kind  TokKind
	Value string
	Pos   Pos
}

package syntax

import "strings"

// reservedAt returns the reserved-word kind for the current Word token,
// if its raw text is an unquoted match for one of bash's reserved words,
// and the parser is in a command-start position (checked by callers).
func (p *Parser) reservedAt() (TokKind, bool) {
	if p.tokKind != Word {
		return 0, false
	}
	k, ok := reservedWords[p.tokLit]
	if !ok || k == Lbrace || k == Rbrace || k == Bang {
		return 0, false
	}
	return k, ok
}

func (p *Parser) atWord(lit string) bool {
	return p.tokKind == Word && p.tokLit == lit
}

// Parse parses a complete shell script into a File.
func (p *Parser) Parse() (*File, error) {
	if err := p.next(); err != nil {
		return nil, err
	}
	stmts, err := p.stmtList(nil)
	if err != nil {
		return nil, err
	}
	if p.tokKind != EOF {
		return nil, p.errorf(p.tokPos, "unexpected token")
	}
	return &File{Name: p.filename, Stmts: stmts}, nil
}

// stop is a predicate checked before each statement in stmtList; it lets
// every compound-command body share one terminator-aware loop.
type stopFunc func(p *Parser) bool

func (p *Parser) stmtList(stop stopFunc) ([]*Stmt, error) {
	var stmts []*Stmt
	for {
		for p.tokKind == Newline || p.tokKind == Semi {
			if err := p.next(); err != nil {
				return nil, err
			}
		}
		if p.tokKind == EOF {
			return stmts, nil
		}
		if stop != nil && stop(p) {
			return stmts, nil
		}
		st, err := p.andOr()
		if err != nil {
			return nil, err
		}
		if p.tokKind == Amp {
			st.Background = true
			if err := p.next(); err != nil {
				return nil, err
			}
		}
		stmts = append(stmts, st)
		if p.tokKind != Semi && p.tokKind != Newline && p.tokKind != EOF && (stop == nil || !stop(p)) {
			return nil, p.errorf(p.tokPos, "unexpected token after statement")
		}
	}
}

func stopAtWords(words ...string) stopFunc {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return func(p *Parser) bool { return p.tokKind == Word && set[p.tokLit] }
}

func (p *Parser) andOr() (*Stmt, error) {
	left, err := p.pipeline()
	if err != nil {
		return nil, err
	}
	for p.tokKind == AndAndTok || p.tokKind == OrOrTok {
		op := AndAnd
		if p.tokKind == OrOrTok {
			op = OrOr
		}
		pos := p.tokPos
		if err := p.skipNewlines(); err != nil {
			return nil, err
		}
		right, err := p.pipeline()
		if err != nil {
			return nil, err
		}
		left = &Stmt{Position: pos, Cmd: &BinaryCmd{Position: pos, Op: op, X: left, Y: right}}
	}
	return left, nil
}

// skipNewlines consumes the current operator token and any immediately
// following newlines, which bash allows after && || | |& and similar.
func (p *Parser) skipNewlines() error {
	if err := p.next(); err != nil {
		return err
	}
	for p.tokKind == Newline {
		if err := p.next(); err != nil {
			return err
		}
	}
	return nil
}

func (p *Parser) pipeline() (*Stmt, error) {
	negate := false
	if p.tokKind == Word && p.tokLit == "!" {
		negate = true
		if err := p.next(); err != nil {
			return nil, err
		}
	}
	first, err := p.stmtNoAndOr()
	if err != nil {
		return nil, err
	}
	stages := []*Stmt{first}
	var stderrTo []bool
	for p.tokKind == Pipe || p.tokKind == PipeAmp {
		toStderr := p.tokKind == PipeAmp
		if err := p.skipNewlines(); err != nil {
			return nil, err
		}
		next, err := p.stmtNoAndOr()
		if err != nil {
			return nil, err
		}
		stages = append(stages, next)
		stderrTo = append(stderrTo, toStderr)
	}
	if len(stages) == 1 && !negate {
		return first, nil
	}
	pos := first.Pos()
	return &Stmt{Position: pos, Cmd: &Pipeline{Position: pos, Negate: negate, Stages: stages, StderrTo: stderrTo}}, nil
}

// stmtNoAndOr parses one command (simple or compound) plus its trailing
// redirections, without consuming && || | ; & (those are the caller's).
func (p *Parser) stmtNoAndOr() (*Stmt, error) {
	pos := p.tokPos
	cmd, err := p.command()
	if err != nil {
		return nil, err
	}
	st := &Stmt{Position: pos, Cmd: cmd}
	for {
		r, ok, err := p.maybeRedirect()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		st.Redirs = append(st.Redirs, r)
	}
	return st, nil
}

func (p *Parser) command() (Command, error) {
	if k, ok := p.reservedAt(); ok {
		switch k {
		case If:
			return p.ifClause()
		case While:
			return p.whileClause(false)
		case Until:
			return p.whileClause(true)
		case For:
			return p.forClause()
		case Case:
			return p.caseClause()
		case Select:
			return p.selectClause()
		case Function:
			return p.funcDecl(true)
		}
	}
	// "{" and "}" never become their own TokKind: the lexer has no
	// reason to special-case them (unlike "((" or "[["), so they arrive
	// as ordinary Word tokens whose literal text is the single rune.
	if p.atWord("{") {
		return p.block()
	}
	switch p.tokKind {
	case Lparen:
		return p.subshell()
	case DblLparen:
		return p.arithmCmd()
	case DblLbrack:
		return p.testClause()
	}
	return p.simpleCommand()
}

func (p *Parser) block() (Command, error) {
	pos := p.tokPos
	if err := p.next(); err != nil {
		return nil, err
	}
	stmts, err := p.stmtList(stopAtWords("}"))
	if err != nil {
		return nil, err
	}
	if !p.atWord("}") {
		return nil, p.errorf(p.tokPos, "expected '}'")
	}
	if err := p.next(); err != nil {
		return nil, err
	}
	return &Block{Position: pos, Stmts: stmts}, nil
}

func (p *Parser) subshell() (Command, error) {
	pos := p.tokPos
	if err := p.next(); err != nil {
		return nil, err
	}
	stmts, err := p.stmtList(func(pp *Parser) bool { return pp.tokKind == Rparen })
	if err != nil {
		return nil, err
	}
	if p.tokKind != Rparen {
		return nil, p.errorf(p.tokPos, "expected ')'")
	}
	if err := p.next(); err != nil {
		return nil, err
	}
	return &Subshell{Position: pos, Stmts: stmts}, nil
}

func (p *Parser) arithmCmd() (Command, error) {
	pos := p.tokPos
	body, err := p.scanDblParenBody()
	if err != nil {
		return nil, err
	}
	ax, err := ParseArithm(body)
	if err != nil {
		return nil, err
	}
	return &ArithmCmd{Position: pos, X: ax}, nil
}

// scanDblParenBody consumes the body of an already-opened "((" up to its
// matching "))", re-scanning raw source since the contents are an
// arithmetic expression, not shell words. A lone ")" only closes the
// group when immediately followed by a second ")"; otherwise it is a
// nested, balanced paren inside the expression (e.g. "(a+b)*c").
func (p *Parser) scanDblParenBody() (string, error) {
	depth := 1
	var sb []rune
	for {
		if p.atEnd() {
			return "", p.errorf(p.curPos(), "reached EOF looking for matching '))'")
		}
		c, _ := p.peekByte()
		if c == '(' {
			depth++
			sb = append(sb, p.advance())
			continue
		}
		if c == ')' {
			if n, ok := p.peekAt(1); ok && n == ')' && depth == 1 {
				p.advance()
				p.advance()
				break
			}
			depth--
			sb = append(sb, p.advance())
			continue
		}
		sb = append(sb, p.advance())
	}
	if err := p.next(); err != nil {
		return "", err
	}
	return string(sb), nil
}

func (p *Parser) ifClause() (Command, error) {
	pos := p.tokPos
	if err := p.next(); err != nil {
		return nil, err
	}
	cond, err := p.stmtList(stopAtWords("then"))
	if err != nil {
		return nil, err
	}
	if !p.atWord("then") {
		return nil, p.errorf(p.tokPos, "expected 'then'")
	}
	if err := p.next(); err != nil {
		return nil, err
	}
	then, err := p.stmtList(stopAtWords("elif", "else", "fi"))
	if err != nil {
		return nil, err
	}
	ic := &IfClause{Position: pos, Cond: cond, Then: then}
	for p.atWord("elif") {
		if err := p.next(); err != nil {
			return nil, err
		}
		econd, err := p.stmtList(stopAtWords("then"))
		if err != nil {
			return nil, err
		}
		if !p.atWord("then") {
			return nil, p.errorf(p.tokPos, "expected 'then'")
		}
		if err := p.next(); err != nil {
			return nil, err
		}
		ethen, err := p.stmtList(stopAtWords("elif", "else", "fi"))
		if err != nil {
			return nil, err
		}
		ic.Elifs = append(ic.Elifs, &Elif{Cond: econd, Then: ethen})
	}
	if p.atWord("else") {
		if err := p.next(); err != nil {
			return nil, err
		}
		els, err := p.stmtList(stopAtWords("fi"))
		if err != nil {
			return nil, err
		}
		ic.Else = els
	}
	if !p.atWord("fi") {
		return nil, p.errorf(p.tokPos, "expected 'fi'")
	}
	if err := p.next(); err != nil {
		return nil, err
	}
	return ic, nil
}

func (p *Parser) whileClause(until bool) (Command, error) {
	pos := p.tokPos
	if err := p.next(); err != nil {
		return nil, err
	}
	cond, err := p.stmtList(stopAtWords("do"))
	if err != nil {
		return nil, err
	}
	if !p.atWord("do") {
		return nil, p.errorf(p.tokPos, "expected 'do'")
	}
	if err := p.next(); err != nil {
		return nil, err
	}
	body, err := p.stmtList(stopAtWords("done"))
	if err != nil {
		return nil, err
	}
	if !p.atWord("done") {
		return nil, p.errorf(p.tokPos, "expected 'done'")
	}
	if err := p.next(); err != nil {
		return nil, err
	}
	return &WhileClause{Position: pos, Until: until, Cond: cond, Do: body}, nil
}

func (p *Parser) forClause() (Command, error) {
	pos := p.tokPos
	if err := p.next(); err != nil {
		return nil, err
	}
	fc := &ForClause{Position: pos}
	if p.tokKind == DblLparen {
		fc.CStyle = true
		body, err := p.scanDblParenBody()
		if err != nil {
			return nil, err
		}
		clauses := strings.SplitN(body, ";", 3)
		for len(clauses) < 3 {
			clauses = append(clauses, "")
		}
		if fc.Init, err = ParseArithm(clauses[0]); err != nil {
			return nil, err
		}
		if fc.Cond, err = ParseArithm(clauses[1]); err != nil {
			return nil, err
		}
		if fc.Post, err = ParseArithm(clauses[2]); err != nil {
			return nil, err
		}
		for p.tokKind == Semi || p.tokKind == Newline {
			if err := p.next(); err != nil {
				return nil, err
			}
		}
	} else {
		if p.tokKind != Word {
			return nil, p.errorf(p.tokPos, "expected name after 'for'")
		}
		fc.Name = p.tokLit
		if err := p.next(); err != nil {
			return nil, err
		}
		for p.tokKind == Semi || p.tokKind == Newline {
			if err := p.next(); err != nil {
				return nil, err
			}
		}
		if p.atWord("in") {
			if err := p.next(); err != nil {
				return nil, err
			}
			items, err := p.wordListUntilTerm()
			if err != nil {
				return nil, err
			}
			fc.Items = items
		}
		for p.tokKind == Semi || p.tokKind == Newline {
			if err := p.next(); err != nil {
				return nil, err
			}
		}
	}
	if !p.atWord("do") {
		return nil, p.errorf(p.tokPos, "expected 'do'")
	}
	if err := p.next(); err != nil {
		return nil, err
	}
	body, err := p.stmtList(stopAtWords("done"))
	if err != nil {
		return nil, err
	}
	if !p.atWord("done") {
		return nil, p.errorf(p.tokPos, "expected 'done'")
	}
	if err := p.next(); err != nil {
		return nil, err
	}
	fc.Do = body
	return fc, nil
}

// wordListUntilTerm scans words (applying brace expansion per word) up
// to ";" or a newline, used by "for x in ...", "select x in ...", and
// "case word in": each scanned word may expand into several.
func (p *Parser) wordListUntilTerm() ([]*Word, error) {
	var out []*Word
	for p.tokKind == Word {
		ws, err := p.scanWordMulti()
		if err != nil {
			return nil, err
		}
		out = append(out, ws...)
		if err := p.next(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (p *Parser) scanWordMulti() ([]*Word, error) {
	pos := p.tokPos
	raws := ExpandBraceText(p.tokLit)
	var out []*Word
	for _, raw := range raws {
		w, err := p.wordFromRaw(raw, pos, true)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

func (p *Parser) selectClause() (Command, error) {
	pos := p.tokPos
	if err := p.next(); err != nil {
		return nil, err
	}
	if p.tokKind != Word {
		return nil, p.errorf(p.tokPos, "expected name after 'select'")
	}
	name := p.tokLit
	if err := p.next(); err != nil {
		return nil, err
	}
	var items []*Word
	if p.atWord("in") {
		if err := p.next(); err != nil {
			return nil, err
		}
		var err error
		items, err = p.wordListUntilTerm()
		if err != nil {
			return nil, err
		}
	}
	for p.tokKind == Semi || p.tokKind == Newline {
		if err := p.next(); err != nil {
			return nil, err
		}
	}
	if !p.atWord("do") {
		return nil, p.errorf(p.tokPos, "expected 'do'")
	}
	if err := p.next(); err != nil {
		return nil, err
	}
	body, err := p.stmtList(stopAtWords("done"))
	if err != nil {
		return nil, err
	}
	if !p.atWord("done") {
		return nil, p.errorf(p.tokPos, "expected 'done'")
	}
	if err := p.next(); err != nil {
		return nil, err
	}
	return &SelectClause{Position: pos, Name: name, Items: items, Do: body}, nil
}

func (p *Parser) caseClause() (Command, error) {
	pos := p.tokPos
	if err := p.next(); err != nil {
		return nil, err
	}
	word, err := p.scanWordMulti()
	if err != nil {
		return nil, err
	}
	if err := p.next(); err != nil {
		return nil, err
	}
	for p.tokKind == Newline {
		if err := p.next(); err != nil {
			return nil, err
		}
	}
	if !p.atWord("in") {
		return nil, p.errorf(p.tokPos, "expected 'in'")
	}
	if err := p.next(); err != nil {
		return nil, err
	}
	cc := &CaseClause{Position: pos, Word: word[0]}
	for {
		for p.tokKind == Newline || p.tokKind == Semi {
			if err := p.next(); err != nil {
				return nil, err
			}
		}
		if p.atWord("esac") {
			break
		}
		hadParen := p.tokKind == Lparen
		if hadParen {
			if err := p.next(); err != nil {
				return nil, err
			}
		}
		var pats []*Word
		for {
			pw, err := p.scanWordMulti()
			if err != nil {
				return nil, err
			}
			pats = append(pats, pw...)
			if err := p.next(); err != nil {
				return nil, err
			}
			if p.tokKind == Pipe {
				if err := p.next(); err != nil {
					return nil, err
				}
				continue
			}
			break
		}
		if p.tokKind != Rparen {
			return nil, p.errorf(p.tokPos, "expected ')' in case pattern")
		}
		if err := p.next(); err != nil {
			return nil, err
		}
		body, err := p.stmtList(func(pp *Parser) bool {
			return pp.tokKind == DblSemi || pp.tokKind == SemiAmp || pp.tokKind == DblSemiAmp || pp.atWord("esac")
		})
		if err != nil {
			return nil, err
		}
		item := &CaseItem{Patterns: pats, Body: body, Op: CaseBreak}
		switch p.tokKind {
		case SemiAmp:
			item.Op = CaseFallThru
			if err := p.next(); err != nil {
				return nil, err
			}
		case DblSemiAmp:
			item.Op = CaseContinue
			if err := p.next(); err != nil {
				return nil, err
			}
		case DblSemi:
			if err := p.next(); err != nil {
				return nil, err
			}
		}
		cc.Items = append(cc.Items, item)
	}
	if !p.atWord("esac") {
		return nil, p.errorf(p.tokPos, "expected 'esac'")
	}
	if err := p.next(); err != nil {
		return nil, err
	}
	return cc, nil
}

func (p *Parser) funcDecl(keyword bool) (Command, error) {
	pos := p.tokPos
	if keyword {
		if err := p.next(); err != nil {
			return nil, err
		}
	}
	if p.tokKind != Word {
		return nil, p.errorf(p.tokPos, "expected function name")
	}
	name := p.tokLit
	if err := p.next(); err != nil {
		return nil, err
	}
	if p.tokKind == Lparen {
		if err := p.next(); err != nil {
			return nil, err
		}
		if p.tokKind != Rparen {
			return nil, p.errorf(p.tokPos, "expected ')'")
		}
		if err := p.next(); err != nil {
			return nil, err
		}
	}
	for p.tokKind == Newline {
		if err := p.next(); err != nil {
			return nil, err
		}
	}
	bodyPos := p.tokPos
	var body Command
	var err error
	switch {
	case p.atWord("{"):
		body, err = p.block()
	case p.tokKind == Lparen:
		body, err = p.subshell()
	default:
		return nil, p.errorf(p.tokPos, "expected function body")
	}
	if err != nil {
		return nil, err
	}
	return &FuncDecl{Position: pos, Name: name, Body: &Stmt{Position: bodyPos, Cmd: body}}, nil
}

// simpleCommand parses assignments, a possible "name() { ... }" function
// shorthand, and a word/arg list with interspersed redirections.
func (p *Parser) simpleCommand() (Command, error) {
	pos := p.tokPos
	ce := &CallExpr{Position: pos}
	for {
		if p.tokKind == Word {
			if a, ok, err := p.maybeAssign(); err != nil {
				return nil, err
			} else if ok {
				ce.Assigns = append(ce.Assigns, a)
				continue
			}
		}
		break
	}
	// "name() { ... }" without the "function" keyword: after a bare word
	// with no assignment, "(" ")" immediately follow with no separating
	// word-boundary content.
	if len(ce.Assigns) == 0 && p.tokKind == Word {
		name := p.tokLit
		save := *p
		if err := p.next(); err == nil && p.tokKind == Lparen {
			if err := p.next(); err == nil && p.tokKind == Rparen {
				if err := p.next(); err == nil {
					for p.tokKind == Newline {
						if err := p.next(); err != nil {
							return nil, err
						}
					}
					bodyPos := p.tokPos
					var body Command
					switch {
					case p.atWord("{"):
						body, err = p.block()
					case p.tokKind == Lparen:
						body, err = p.subshell()
					}
					if body != nil {
						return &FuncDecl{Position: pos, Name: name, Body: &Stmt{Position: bodyPos, Cmd: body}}, nil
					}
				}
			}
		}
		*p = save
	}
	for {
		if r, ok, err := p.maybeRedirect(); err != nil {
			return nil, err
		} else if ok {
			ce.Redirs = append(ce.Redirs, r)
			continue
		}
		if p.tokKind != Word {
			break
		}
		if _, isReserved := p.reservedAt(); isReserved && len(ce.Args) > 0 {
			break
		}
		ws, err := p.scanWordMulti()
		if err != nil {
			return nil, err
		}
		ce.Args = append(ce.Args, ws...)
		if err := p.next(); err != nil {
			return nil, err
		}
	}
	return ce, nil
}

// maybeAssign speculatively parses a NAME=word / NAME+=word /
// NAME[expr]=word prefix assignment from the current Word token.
func (p *Parser) maybeAssign() (*Assign, bool, error) {
	lit := p.tokLit
	pos := p.tokPos
	i := 0
	for i < len(lit) && isNameCont(rune(lit[i])) {
		i++
	}
	if i == 0 || !isNameStart(rune(lit[0])) {
		return nil, false, nil
	}
	name := lit[:i]
	a := &Assign{Position: pos, Name: name}
	rest := lit[i:]
	if strings.HasPrefix(rest, "[") {
		end := strings.Index(rest, "]")
		if end < 0 {
			return nil, false, nil
		}
		idxRaw := rest[1:end]
		a.Index = rawWord(idxRaw, pos)
		rest = rest[end+1:]
	}
	switch {
	case strings.HasPrefix(rest, "+="):
		a.Append = true
		rest = rest[2:]
	case strings.HasPrefix(rest, "="):
		rest = rest[1:]
	default:
		return nil, false, nil
	}
	if strings.HasPrefix(rest, "(") && strings.HasSuffix(rest, ")") {
		elems, err := parseArrayLiteral(rest[1:len(rest)-1], pos)
		if err != nil {
			return nil, false, err
		}
		a.Array = elems
		if err := p.next(); err != nil {
			return nil, false, err
		}
		return a, true, nil
	}
	w, err := p.wordFromRaw(rest, pos, true)
	if err != nil {
		return nil, false, err
	}
	a.Value = w
	if err := p.next(); err != nil {
		return nil, false, err
	}
	return a, true, nil
}

func parseArrayLiteral(s string, pos Pos) ([]*ArrayElem, error) {
	fields := strings.Fields(s)
	var out []*ArrayElem
	for _, f := range fields {
		elem := &ArrayElem{}
		if strings.HasPrefix(f, "[") {
			if end := strings.Index(f, "]="); end > 0 {
				elem.Index = rawWord(f[1:end], pos)
				f = f[end+2:]
			}
		}
		elem.Value = rawWord(f, pos)
		out = append(out, elem)
	}
	return out, nil
}

// maybeRedirect speculatively parses one redirection starting at the
// current token (optionally preceded by a bare fd-digits word).
func (p *Parser) maybeRedirect() (*Redirect, bool, error) {
	fd := -1
	hasFd := false
	if p.tokKind == Word && isAllDigits(p.tokLit) {
		save := *p
		n := p.tokLit
		if err := p.next(); err != nil {
			return nil, false, err
		}
		if isRedirTok(p.tokKind) {
			fd, _ = atoiSimple(n)
			hasFd = true
		} else {
			*p = save
			return nil, false, nil
		}
	}
	if !isRedirTok(p.tokKind) {
		if hasFd {
			return nil, false, nil
		}
		return nil, false, nil
	}
	op, pos := p.tokKind, p.tokPos
	if err := p.next(); err != nil {
		return nil, false, err
	}
	r := &Redirect{Position: pos, Fd: fd, HasFd: hasFd}
	switch op {
	case RedirIn:
		r.Op = RedirRead
	case RedirOut:
		r.Op = RedirWrite
	case RedirAppend:
		r.Op = RedirAppend
	case RedirClobber:
		r.Op = RedirClobber
	case RedirRW:
		r.Op = RedirReadWrite
	case RedirHeredoc:
		r.Op = RedirHeredoc
	case RedirHeredocTab:
		r.Op = RedirHeredocTab
	case RedirHerestr:
		r.Op = RedirHeredocStr
	case RedirDupIn:
		r.Op = RedirDupIn
	case RedirDupOut:
		r.Op = RedirDupOut
	case RedirBoth:
		r.Op = RedirBoth
	case RedirBothApp:
		r.Op = RedirBothAppend
	}
	if r.Op == RedirHeredoc || r.Op == RedirHeredocTab {
		return p.finishHeredoc(r)
	}
	if p.tokKind != Word {
		return nil, false, p.errorf(p.tokPos, "expected word after redirection operator")
	}
	lit := p.tokLit
	r.HdocQuoted = strings.ContainsAny(lit, "'\"\\")
	w, err := p.wordFromRaw(lit, p.tokPos, false)
	if err != nil {
		return nil, false, err
	}
	r.Word = w
	if err := p.next(); err != nil {
		return nil, false, err
	}
	return r, true, nil
}

// finishHeredoc reads the delimiter word, then captures raw source lines
// up to a line equal to the delimiter (spec.md §4.1).
func (p *Parser) finishHeredoc(r *Redirect) (*Redirect, bool, error) {
	if p.tokKind != Word {
		return nil, false, p.errorf(p.tokPos, "expected heredoc delimiter")
	}
	delimRaw := p.tokLit
	r.HdocQuoted = strings.ContainsAny(delimRaw, "'\"\\")
	delim := stripQuotesLiteral(delimRaw)
	if err := p.next(); err != nil {
		return nil, false, err
	}
	// Heredoc bodies start at the next physical newline, scanning raw
	// runes directly (bypassing word tokenization) until a line that,
	// after optional <<- tab-stripping, equals the delimiter exactly.
	for !p.atEnd() {
		if p.advance() == '\n' {
			break
		}
	}
	var lines []string
	for {
		lineStart := p.pos
		for !p.atEnd() {
			c, _ := p.peekByte()
			if c == '\n' {
				break
			}
			p.advance()
		}
		line := string(p.src[lineStart:p.pos])
		if !p.atEnd() {
			p.advance() // consume newline
		}
		check := line
		if r.Op == RedirHeredocTab {
			check = strings.TrimLeft(line, "\t")
		}
		if check == delim {
			break
		}
		if r.Op == RedirHeredocTab {
			line = strings.TrimLeft(line, "\t")
		}
		lines = append(lines, line)
		if p.atEnd() {
			break
		}
	}
	body := strings.Join(lines, "\n")
	if len(lines) > 0 {
		body += "\n"
	}
	pos := r.Position
	if r.HdocQuoted {
		r.Hdoc = &Word{Parts: []WordPart{&Lit{Position: pos, Value: body}}}
	} else {
		w, err := p.wordFromRaw(body, pos, false)
		if err != nil {
			return nil, false, err
		}
		r.Hdoc = w
	}
	if err := p.next(); err != nil {
		return nil, false, err
	}
	return r, true, nil
}

func stripQuotesLiteral(s string) string {
	var sb strings.Builder
	inSingle, inDouble := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && !inSingle:
			i++
			if i < len(s) {
				sb.WriteByte(s[i])
			}
		case c == '\'' && !inDouble:
			inSingle = !inSingle
		case c == '"' && !inSingle:
			inDouble = !inDouble
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

func isRedirTok(k TokKind) bool {
	switch k {
	case RedirIn, RedirOut, RedirAppend, RedirClobber, RedirRW, RedirHeredoc,
		RedirHeredocTab, RedirHerestr, RedirDupIn, RedirDupOut, RedirBoth, RedirBothApp:
		return true
	}
	return false
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func atoiSimple(s string) (int, error) {
	n := 0
	for _, c := range s {
		n = n*10 + int(c-'0')
	}
	return n, nil
}

// testClause parses "[[ expr ]]".
func (p *Parser) testClause() (Command, error) {
	pos := p.tokPos
	var raw []rune
	depth := 1
	// consume "[[" already recognized by lexer as DblLbrack; scan raw
	// text until the matching "]]" at depth 0.
	for {
		p.skipBlank()
		if p.atEnd() {
			return nil, p.errorf(p.curPos(), "reached EOF looking for matching ']]'")
		}
		if p.src[p.pos] == ']' && p.pos+1 < len(p.src) && p.src[p.pos+1] == ']' {
			depth--
			if depth == 0 {
				p.advance()
				p.advance()
				break
			}
		}
		if p.src[p.pos] == '[' && p.pos+1 < len(p.src) && p.src[p.pos+1] == '[' {
			depth++
		}
		raw = append(raw, p.advance())
	}
	x, err := parseTestExpr(string(raw), pos)
	if err != nil {
		return nil, err
	}
	if err := p.next(); err != nil {
		return nil, err
	}
	return &TestClause{Position: pos, X: x}, nil
}

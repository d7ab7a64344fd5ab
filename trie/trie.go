// Package trie implements a single-pass multi-pattern matcher over a
// restricted regex subset: literal bytes, `.` (single-byte wildcard),
// `.*` (bounded multi-byte wildcard), a start-of-input anchor, a
// per-pattern case-sensitivity flag, and a per-pattern terminate flag
// that halts further scanning once matched.
//
// Patterns sharing a literal prefix share trie nodes; wildcards are
// handled by simulating an NFA over the shared trie rather than
// expanding to one DFA state per distinct wildcard span, so a single
// left-to-right pass over the input produces every match.
package trie

import "github.com/joeycumines/go-evhcore/corerr"

// Pattern describes one entry to compile into a Matcher.
type Pattern struct {
	// ID identifies this pattern in reported Matches. IDs need not be
	// contiguous but must be unique within one New call.
	ID int
	// Value is the pattern body: literal bytes interspersed with `.`
	// (matches exactly one byte) and `.*` (matches zero or more bytes,
	// bounded by Config.MaxWildCardLength).
	Value string
	// CaseSensitive requires literal bytes to match exactly; when false,
	// literal bytes match case-insensitively (ASCII only).
	CaseSensitive bool
	// Anchored restricts this pattern to matching only at input offset 0.
	Anchored bool
	// Terminate halts the scan as soon as this pattern matches, even if
	// the caller's match buffer has room for more.
	Terminate bool
}

// Match reports one pattern match: input[Start:End] satisfied pattern
// PatternID.
type Match struct {
	PatternID int
	Start     int
	End       int
}

// Config bounds the cost of a Scan.
type Config struct {
	// MaxWildCardLength caps how many bytes a single `.*` may span.
	// Required (>0) if any compiled pattern contains `.*`.
	MaxWildCardLength int
	// TerminationLength stops scanning once this many input bytes have
	// been examined. Zero means unbounded.
	TerminationLength int
}

type tokenKind uint8

const (
	tokLiteral tokenKind = iota
	tokWildOne
	tokWildMany
)

type token struct {
	kind tokenKind
	b    byte
}

// node is one state in the shared trie. literal is keyed by the byte
// value as stored at insert time: case-sensitive patterns insert their
// original-case bytes, case-insensitive patterns insert lowercased
// bytes, so a single map naturally partitions the two without any
// post-match verification pass.
type node struct {
	literal  map[byte]*node
	wildOne  *node
	wildMany *node
	complete []int
}

func newNode() *node { return &node{literal: make(map[byte]*node)} }

// Matcher is a compiled set of Patterns, ready to Scan input.
type Matcher struct {
	root       *node
	anchorRoot *node
	maxWild    int
	termLen    int
	terminate  map[int]bool
}

// New compiles patterns into a Matcher. Returns a Configuration error if
// any pattern ID is duplicated, any pattern is empty, or cfg.MaxWildCardLength
// is not positive while at least one pattern contains `.*`.
func New(patterns []Pattern, cfg Config) (*Matcher, error) {
	m := &Matcher{
		root:       newNode(),
		anchorRoot: newNode(),
		maxWild:    cfg.MaxWildCardLength,
		termLen:    cfg.TerminationLength,
		terminate:  make(map[int]bool, len(patterns)),
	}

	seen := make(map[int]bool, len(patterns))
	usesWildMany := false

	for _, p := range patterns {
		if seen[p.ID] {
			return nil, corerr.New(corerr.Configuration, "duplicate pattern id %d", p.ID)
		}
		seen[p.ID] = true
		if p.Value == "" {
			return nil, corerr.New(corerr.Configuration, "pattern %d has an empty value", p.ID)
		}

		toks := tokenize(p.Value, p.CaseSensitive)
		for _, t := range toks {
			if t.kind == tokWildMany {
				usesWildMany = true
			}
		}

		root := m.root
		if p.Anchored {
			root = m.anchorRoot
		}
		insert(root, toks, p.ID)
		m.terminate[p.ID] = p.Terminate
	}

	if usesWildMany && m.maxWild <= 0 {
		return nil, corerr.New(corerr.Configuration, "max_wild_card_length must be > 0 when any pattern uses `.*`")
	}

	return m, nil
}

// tokenize parses value into a token sequence, lowercasing literal bytes
// when !caseSensitive.
func tokenize(value string, caseSensitive bool) []token {
	toks := make([]token, 0, len(value))
	for i := 0; i < len(value); i++ {
		b := value[i]
		if b == '.' {
			if i+1 < len(value) && value[i+1] == '*' {
				toks = append(toks, token{kind: tokWildMany})
				i++
				continue
			}
			toks = append(toks, token{kind: tokWildOne})
			continue
		}
		if !caseSensitive {
			b = toLower(b)
		}
		toks = append(toks, token{kind: tokLiteral, b: b})
	}
	return toks
}

func toLower(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b + ('a' - 'A')
	}
	return b
}

func insert(root *node, toks []token, patternID int) {
	cur := root
	for _, t := range toks {
		switch t.kind {
		case tokWildOne:
			if cur.wildOne == nil {
				cur.wildOne = newNode()
			}
			cur = cur.wildOne
		case tokWildMany:
			if cur.wildMany == nil {
				cur.wildMany = newNode()
			}
			cur = cur.wildMany
		default:
			c, ok := cur.literal[t.b]
			if !ok {
				c = newNode()
				cur.literal[t.b] = c
			}
			cur = c
		}
	}
	cur.complete = append(cur.complete, patternID)
}

// active is one in-progress match thread: a position in the trie plus
// the input offset the match started at.
type active struct {
	n     *node
	start int
}

// wildThread tracks a `.*` region a thread has entered: target is the
// node to resume literal matching from, start is the overall match's
// start offset, and remaining is how many more bytes `.*` may still
// absorb before the thread is dropped.
type wildThread struct {
	target    *node
	start     int
	remaining int
}

// Scan examines input left to right, appending every match to matches
// (in discovery order) until matches is full, cfg.TerminationLength
// bytes have been examined, or a Terminate pattern matches. It returns
// the number of matches written.
func (m *Matcher) Scan(input []byte, matches []Match) (int, error) {
	if len(matches) == 0 {
		return 0, nil
	}

	var curActive []active
	var curWild []wildThread
	count := 0

	limit := len(input)
	if m.termLen > 0 && m.termLen < limit {
		limit = m.termLen
	}

	type key struct {
		n     *node
		start int
	}

	for pos := 0; pos < limit; pos++ {
		seed := make([]active, 0, len(curActive)+2)
		seed = append(seed, active{m.root, pos})
		if pos == 0 {
			seed = append(seed, active{m.anchorRoot, 0})
		}
		seed = append(seed, curActive...)
		for _, w := range curWild {
			seed = append(seed, active{w.target, w.start})
		}

		// epsilon-closure over wildMany edges: a thread sitting at a node
		// with a wildMany child can proceed into that child having
		// consumed zero wildcard bytes, and/or keep absorbing further
		// bytes via a carried-forward wildThread.
		visited := make(map[key]bool, len(seed)*2)
		closed := make([]active, 0, len(seed))
		var nextWildSeed []wildThread
		var walk func(a active)
		walk = func(a active) {
			k := key{a.n, a.start}
			if visited[k] {
				return
			}
			visited[k] = true
			closed = append(closed, a)
			if a.n.wildMany != nil {
				nextWildSeed = append(nextWildSeed, wildThread{target: a.n.wildMany, start: a.start, remaining: m.maxWild})
				walk(active{a.n.wildMany, a.start})
			}
		}
		for _, a := range seed {
			walk(a)
		}

		c := input[pos]
		lc := toLower(c)

		nextSeen := make(map[key]bool, len(closed))
		var nextActive []active
		add := func(n *node, start int) {
			k := key{n, start}
			if nextSeen[k] {
				return
			}
			nextSeen[k] = true
			nextActive = append(nextActive, active{n, start})
		}

		for _, a := range closed {
			if ch, ok := a.n.literal[c]; ok {
				add(ch, a.start)
			}
			if lc != c {
				if ch, ok := a.n.literal[lc]; ok {
					add(ch, a.start)
				}
			}
			if a.n.wildOne != nil {
				add(a.n.wildOne, a.start)
			}
		}

		var nextWild []wildThread
		for _, w := range curWild {
			if w.remaining > 0 {
				nextWild = append(nextWild, wildThread{target: w.target, start: w.start, remaining: w.remaining - 1})
			}
		}
		for _, w := range nextWildSeed {
			if w.remaining > 0 {
				nextWild = append(nextWild, wildThread{target: w.target, start: w.start, remaining: w.remaining - 1})
			}
		}

		halt := false
	matchLoop:
		for _, a := range nextActive {
			for _, id := range a.n.complete {
				if count >= len(matches) {
					halt = true
					break matchLoop
				}
				matches[count] = Match{PatternID: id, Start: a.start, End: pos + 1}
				count++
				if m.terminate[id] {
					halt = true
					break matchLoop
				}
			}
		}

		curActive = nextActive
		curWild = nextWild
		if halt {
			break
		}
	}

	return count, nil
}

package rewrite

// ruleTrie indexes rule left hand sides by their symbol sequence, so that
// simplification can find a rule whose left hand side occurs at a given
// position in a term.
type ruleTrie struct {
	root *trieNode
}

type trieNode struct {
	ruleID   int
	hasRule  bool
	children map[*Symbol]*trieNode
}

func newRuleTrie() *ruleTrie {
	return &ruleTrie{root: &trieNode{}}
}

// insert records ruleID under the given left hand side. If another rule was
// already recorded for the identical sequence, its id is returned and the
// trie is left unchanged.
func (t *ruleTrie) insert(lhs []*Symbol, ruleID int) (int, bool) {
	node := t.root
	for _, s := range lhs {
		if node.children == nil {
			node.children = map[*Symbol]*trieNode{}
		}
		child, ok := node.children[s]
		if !ok {
			child = &trieNode{}
			node.children[s] = child
		}
		node = child
	}
	if node.hasRule {
		return node.ruleID, false
	}
	node.ruleID = ruleID
	node.hasRule = true
	return ruleID, true
}

// findAll returns every rule whose left hand side matches a prefix of
// symbols, shortest first.
func (t *ruleTrie) findAll(symbols []*Symbol) []int {
	var out []int
	node := t.root
	for _, s := range symbols {
		child, found := node.children[s]
		if !found {
			break
		}
		node = child
		if node.hasRule {
			out = append(out, node.ruleID)
		}
	}
	return out
}

// findLongest returns the rule with the longest left hand side matching a
// prefix of symbols, if any.
func (t *ruleTrie) findLongest(symbols []*Symbol) (ruleID int, ok bool) {
	node := t.root
	for _, s := range symbols {
		child, found := node.children[s]
		if !found {
			break
		}
		node = child
		if node.hasRule {
			ruleID = node.ruleID
			ok = true
		}
	}
	return ruleID, ok
}

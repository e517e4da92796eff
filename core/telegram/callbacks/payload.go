package callbacks

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Action names what a button asks the bot to do.
type Action string

// ErrUnknown is returned by Parse for data matching no registered token.
var ErrUnknown = errors.New("callbacks: unknown callback data")

// Parser maps callback data to actions. Literal tokens match exactly;
// parameterized tokens are "<prefix><decimal id>".
type Parser struct {
	literals map[string]Action
	prefixes []prefixAction
}

type prefixAction struct {
	prefix string
	action Action
}

// NewParser builds a Parser. Prefixes are tried longest first, so "task_"
// never shadows "mark_task_done_".
func NewParser(literals []Action, parameterized map[Action]string) *Parser {
	p := &Parser{literals: make(map[string]Action, len(literals))}
	for _, a := range literals {
		p.literals[string(a)] = a
	}
	for a, prefix := range parameterized {
		p.prefixes = append(p.prefixes, prefixAction{prefix: prefix, action: a})
	}
	sort.Slice(p.prefixes, func(i, j int) bool {
		if len(p.prefixes[i].prefix) != len(p.prefixes[j].prefix) {
			return len(p.prefixes[i].prefix) > len(p.prefixes[j].prefix)
		}
		return p.prefixes[i].prefix < p.prefixes[j].prefix
	})
	return p
}

// Parse resolves data to an action and, for parameterized tokens, the embedded id.
func (p *Parser) Parse(data string) (Action, int64, error) {
	data = strings.TrimSpace(data)
	if a, ok := p.literals[data]; ok {
		return a, 0, nil
	}
	for _, pa := range p.prefixes {
		if !strings.HasPrefix(data, pa.prefix) {
			continue
		}
		raw := data[len(pa.prefix):]
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 || raw[0] == '+' {
			return pa.action, 0, fmt.Errorf("callbacks: bad id in %q: %w", data, strconv.ErrSyntax)
		}
		return pa.action, id, nil
	}
	return "", 0, fmt.Errorf("%w: %q", ErrUnknown, data)
}

// Build renders the callback data for action, appending id for parameterized tokens.
func (p *Parser) Build(action Action, id int64) string {
	for _, pa := range p.prefixes {
		if pa.action == action {
			return pa.prefix + strconv.FormatInt(id, 10)
		}
	}
	return string(action)
}

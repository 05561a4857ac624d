package lexer

// defineStack holds DEFINE text substitutions with lexical scoping.
// Each routine pushes a scope for its own DEFINEs and pops it at the
// routine's end, so a routine-local DEFINE never leaks out.
type defineStack struct {
	scopes []map[string]string
}

func newDefineStack() *defineStack {
	return &defineStack{scopes: []map[string]string{{}}}
}

func (d *defineStack) push() {
	d.scopes = append(d.scopes, map[string]string{})
}

func (d *defineStack) pop() {
	if len(d.scopes) > 1 {
		d.scopes = d.scopes[:len(d.scopes)-1]
	}
}

func (d *defineStack) set(name, value string) {
	d.scopes[len(d.scopes)-1][name] = value
}

func (d *defineStack) get(name string) (string, bool) {
	for i := len(d.scopes) - 1; i >= 0; i-- {
		if v, ok := d.scopes[i][name]; ok {
			return v, true
		}
	}
	return "", false
}

package model

// Argument is one caller-supplied value in an Arguments bag. The wire
// contract carries at least string, boolean, integer, and select-option
// variants.
type Argument interface {
	ArgumentName() string
	// Raw exposes the untyped value for opaque pass-through forwarding.
	Raw() any
}

// StringArgument carries a free-text value.
type StringArgument struct {
	Name  string
	Value string
}

// ArgumentName implements Argument.
func (a StringArgument) ArgumentName() string { return a.Name }

// Raw implements Argument.
func (a StringArgument) Raw() any { return a.Value }

// BooleanArgument carries an on/off value.
type BooleanArgument struct {
	Name  string
	Value bool
}

// ArgumentName implements Argument.
func (a BooleanArgument) ArgumentName() string { return a.Name }

// Raw implements Argument.
func (a BooleanArgument) Raw() any { return a.Value }

// IntegerArgument carries a whole-number value.
type IntegerArgument struct {
	Name  string
	Value int
}

// ArgumentName implements Argument.
func (a IntegerArgument) ArgumentName() string { return a.Name }

// Raw implements Argument.
func (a IntegerArgument) Raw() any { return a.Value }

// SelectArgument carries the chosen option values of a select field.
type SelectArgument struct {
	Name   string
	Values []string
}

// ArgumentName implements Argument.
func (a SelectArgument) ArgumentName() string { return a.Name }

// Raw implements Argument.
func (a SelectArgument) Raw() any { return a.Values }

// Arguments is the loosely-typed bag of values a caller supplies per
// invocation. A later argument with the same name replaces the earlier
// one. The bag is exclusively owned by a single invocation.
type Arguments struct {
	byName map[string]Argument
	order  []string
}

// NewArguments builds a bag from the given arguments.
func NewArguments(args ...Argument) *Arguments {
	bag := &Arguments{byName: make(map[string]Argument, len(args))}
	for _, arg := range args {
		bag.Add(arg)
	}
	return bag
}

// Add inserts or replaces an argument.
func (a *Arguments) Add(arg Argument) {
	name := arg.ArgumentName()
	if _, exists := a.byName[name]; !exists {
		a.order = append(a.order, name)
	}
	a.byName[name] = arg
}

// Get returns the argument supplied under name.
func (a *Arguments) Get(name string) (Argument, bool) {
	arg, ok := a.byName[name]
	return arg, ok
}

// Names returns the present argument names in supplied order.
func (a *Arguments) Names() []string {
	names := make([]string, len(a.order))
	copy(names, a.order)
	return names
}

// Len returns the number of distinct arguments present.
func (a *Arguments) Len() int {
	return len(a.byName)
}

// Ensure interface compliance at compile time.
var (
	_ Argument = StringArgument{}
	_ Argument = BooleanArgument{}
	_ Argument = IntegerArgument{}
	_ Argument = SelectArgument{}
)

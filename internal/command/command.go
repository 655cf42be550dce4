// Package command defines the closed set of commands clients can invoke
// and the registry the router dispatches through.
package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/personstore/personstore/internal/collection"
	"github.com/personstore/personstore/internal/model"
)

// Session identifies the authenticated caller of a request.
type Session struct {
	User *model.User
}

// Command describes one named operation: its arity contract and how to
// execute it against an authenticated session.
type Command struct {
	Name            string
	ArgNames        []string
	Help            string
	RequiredPersons int
	Execute         func(ctx context.Context, req *model.Request, sess *Session) (*model.Response, error)
}

// Registry holds the active commands keyed by lowercased name.
type Registry struct {
	ordered []*Command
	byName  map[string]*Command
}

// NewRegistry builds the registry over the given collection.
func NewRegistry(coll *collection.Collection) *Registry {
	r := &Registry{byName: make(map[string]*Command)}
	for _, c := range []*Command{
		newAdd(coll),
		newClear(coll),
		newExecuteScript(),
		newExit(),
		newHead(coll),
		newPrintFieldDescendingHairColor(coll),
		newRemoveById(coll),
		newRemoveFirst(coll),
		newRemoveGreater(coll),
		newSave(),
		newShow(coll),
		newSumOfHeight(coll),
	} {
		r.register(c)
	}
	return r
}

func (r *Registry) register(c *Command) {
	key := strings.ToLower(c.Name)
	if _, exists := r.byName[key]; exists {
		panic(fmt.Sprintf("command %q registered twice", key))
	}
	r.byName[key] = c
	r.ordered = append(r.ordered, c)
}

// Lookup resolves a command by case-insensitive name.
func (r *Registry) Lookup(name string) (*Command, bool) {
	c, ok := r.byName[strings.ToLower(name)]
	return c, ok
}

// All returns the commands in registration order, for help text.
func (r *Registry) All() []*Command {
	return r.ordered
}

// HelpText enumerates every command with its argument names and help line.
func (r *Registry) HelpText() string {
	var b strings.Builder
	b.WriteString("Available commands:")
	for _, c := range r.ordered {
		fmt.Fprintf(&b, "\n ~ %s %v - %s", c.Name, c.ArgNames, c.Help)
	}
	return b.String()
}

func message(msg string) *model.Response {
	return &model.Response{Message: msg}
}

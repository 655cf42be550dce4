package command

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/personstore/personstore/internal/collection"
	"github.com/personstore/personstore/internal/model"
)

// NotOwnerMessage answers mutating requests that target someone else's
// person.
const NotOwnerMessage = "not owner"

func newAdd(coll *collection.Collection) *Command {
	return &Command{
		Name:            "add",
		Help:            "adds element to the collection",
		RequiredPersons: 1,
		Execute: func(ctx context.Context, req *model.Request, sess *Session) (*model.Response, error) {
			if len(req.Persons) == 0 {
				return message("No persons to add."), nil
			}
			p := req.Persons[0]
			p.OwnerId = sess.User.Id
			if _, err := coll.Add(ctx, p); err != nil {
				return nil, err
			}
			return message("Person added."), nil
		},
	}
}

func newRemoveById(coll *collection.Collection) *Command {
	return &Command{
		Name:     "remove_by_id",
		ArgNames: []string{"id"},
		Help:     "removes element by id",
		Execute: func(ctx context.Context, req *model.Request, sess *Session) (*model.Response, error) {
			if len(req.Args) == 0 {
				return message("No id to remove."), nil
			}
			id, err := strconv.ParseInt(req.Args[0], 10, 32)
			if err != nil || id < 0 {
				return message("Invalid id"), nil
			}
			targetId := int32(id)

			var target *model.Person
			for _, p := range coll.Snapshot() {
				if p.Id == targetId {
					target = &p
					break
				}
			}
			if target == nil {
				return message(fmt.Sprintf("Person with id %d not found.", targetId)), nil
			}
			if target.OwnerId != sess.User.Id {
				return message(NotOwnerMessage), nil
			}
			if _, err := coll.RemoveById(ctx, targetId); err != nil {
				return nil, err
			}
			return message("Person removed."), nil
		},
	}
}

func newRemoveFirst(coll *collection.Collection) *Command {
	return &Command{
		Name: "remove_first",
		Help: "remove first element from collection",
		Execute: func(ctx context.Context, req *model.Request, sess *Session) (*model.Response, error) {
			snap := coll.Snapshot()
			if len(snap) == 0 {
				return message("Collection is empty."), nil
			}
			if snap[0].OwnerId != sess.User.Id {
				return message(NotOwnerMessage), nil
			}
			if _, _, err := coll.RemoveAt(ctx, 0); err != nil {
				return nil, err
			}
			return message("First element removed."), nil
		},
	}
}

func newRemoveGreater(coll *collection.Collection) *Command {
	return &Command{
		Name:            "remove_greater",
		Help:            "remove all elements greater than given",
		RequiredPersons: 1,
		Execute: func(ctx context.Context, req *model.Request, sess *Session) (*model.Response, error) {
			if len(req.Persons) == 0 {
				return message("No persons to compare."), nil
			}
			if coll.Len() == 0 {
				return message("Collection is empty."), nil
			}
			ref := req.Persons[0]
			_, err := coll.RemoveWhere(ctx, func(p *model.Person) bool {
				return p.OwnerId == sess.User.Id && p.Compare(&ref) > 0
			})
			if err != nil {
				return nil, err
			}
			return message("Persons that are greater than the given element successfully removed."), nil
		},
	}
}

func newClear(coll *collection.Collection) *Command {
	return &Command{
		Name: "clear",
		Help: "clear all your elements from the collection",
		Execute: func(ctx context.Context, req *model.Request, sess *Session) (*model.Response, error) {
			if coll.Len() == 0 {
				return message("Sorry! Collection is empty."), nil
			}
			_, err := coll.RemoveWhere(ctx, func(p *model.Person) bool {
				return p.OwnerId == sess.User.Id
			})
			if err != nil {
				return nil, err
			}
			return message("Collection cleared."), nil
		},
	}
}

func newShow(coll *collection.Collection) *Command {
	return &Command{
		Name: "show",
		Help: "shows elements of the collection",
		Execute: func(ctx context.Context, req *model.Request, sess *Session) (*model.Response, error) {
			snap := coll.Snapshot()
			if len(snap) == 0 {
				return message("Collection is empty."), nil
			}
			return &model.Response{Message: "Elements of the collection:", Persons: snap}, nil
		},
	}
}

func newHead(coll *collection.Collection) *Command {
	return &Command{
		Name: "head",
		Help: "show first element of collection",
		Execute: func(ctx context.Context, req *model.Request, sess *Session) (*model.Response, error) {
			snap := coll.Snapshot()
			if len(snap) == 0 {
				return message("Collection is empty."), nil
			}
			return &model.Response{Message: "First element of collection", Persons: snap[:1]}, nil
		},
	}
}

func newSumOfHeight(coll *collection.Collection) *Command {
	return &Command{
		Name: "sum_of_height",
		Help: "sum of height of all elements",
		Execute: func(ctx context.Context, req *model.Request, sess *Session) (*model.Response, error) {
			snap := coll.Snapshot()
			if len(snap) == 0 {
				return message("Collection is empty."), nil
			}
			var sum int64
			for i := range snap {
				sum += int64(snap[i].Height)
			}
			return message(fmt.Sprintf("Sum of height: %d", sum)), nil
		},
	}
}

func newPrintFieldDescendingHairColor(coll *collection.Collection) *Command {
	return &Command{
		Name: "print_field_descending_hair_color",
		Help: "print field hair color in descending order",
		Execute: func(ctx context.Context, req *model.Request, sess *Session) (*model.Response, error) {
			snap := coll.Snapshot()
			if len(snap) == 0 {
				return message("Collection is empty."), nil
			}
			colors := make([]model.Color, len(snap))
			for i := range snap {
				colors[i] = snap[i].HairColor
			}
			// Descending by enum declaration order.
			sort.Slice(colors, func(i, j int) bool { return colors[i] > colors[j] })
			names := make([]string, len(colors))
			for i, c := range colors {
				names[i] = c.String()
			}
			return message(fmt.Sprintf("Field hair color in descending order: [%s]",
				strings.Join(names, ", "))), nil
		},
	}
}

func newSave() *Command {
	return &Command{
		Name: "save",
		Help: "save collection (no-op: persistence is write-through)",
		Execute: func(ctx context.Context, req *model.Request, sess *Session) (*model.Response, error) {
			return message("Collection saved."), nil
		},
	}
}

func newExecuteScript() *Command {
	return &Command{
		Name:     "execute_script",
		ArgNames: []string{"filepath"},
		Help:     "execute script",
		Execute: func(ctx context.Context, req *model.Request, sess *Session) (*model.Response, error) {
			if len(req.Args) == 0 {
				return message("No file path provided."), nil
			}
			path := req.Args[0]
			info, err := os.Stat(path)
			if os.IsNotExist(err) {
				return message("File not found."), nil
			}
			if err != nil {
				return message(fmt.Sprintf("Error occurred: %s", err)), nil
			}
			if info.IsDir() {
				return message("Path is not a file."), nil
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return message("Not enough rights to read file."), nil
			}
			return &model.Response{
				Message: fmt.Sprintf("Script loaded from file %s", path),
				Script:  string(data),
			}, nil
		},
	}
}

func newExit() *Command {
	return &Command{
		Name: "exit",
		Help: "exits the program",
		Execute: func(ctx context.Context, req *model.Request, sess *Session) (*model.Response, error) {
			// The client terminates itself; the server only acknowledges.
			return message("Exiting..."), nil
		},
	}
}

package router

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/personstore/personstore/internal/auth"
	"github.com/personstore/personstore/internal/collection"
	"github.com/personstore/personstore/internal/command"
	"github.com/personstore/personstore/internal/model"
	"github.com/personstore/personstore/internal/store"
)

// fakeStore implements both the person and user slices of the gateway.
type fakeStore struct {
	mu        sync.Mutex
	persons   map[int32]model.Person
	order     []int32
	nextId    int32
	users     map[string]*model.User
	nextUser  int64
	personErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{persons: make(map[int32]model.Person), users: make(map[string]*model.User)}
}

func (f *fakeStore) FindAllPersons(_ context.Context) ([]model.Person, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Person, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.persons[id])
	}
	return out, nil
}

func (f *fakeStore) SavePerson(_ context.Context, p model.Person) (model.Person, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.personErr != nil {
		return model.Person{}, f.personErr
	}
	f.nextId++
	p.Id = f.nextId
	p.CreationDate = time.Now().UTC().Truncate(time.Millisecond)
	f.persons[p.Id] = p
	f.order = append(f.order, p.Id)
	return p, nil
}

func (f *fakeStore) RemovePersonById(_ context.Context, id int32) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.personErr != nil {
		return false, f.personErr
	}
	if _, ok := f.persons[id]; !ok {
		return false, nil
	}
	delete(f.persons, id)
	for i, v := range f.order {
		if v == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return true, nil
}

func (f *fakeStore) FindUserByUsername(_ context.Context, username string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[username]
	if !ok {
		return nil, nil
	}
	copied := *u
	return &copied, nil
}

func (f *fakeStore) ExistsUserByUsername(_ context.Context, username string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.users[username]
	return ok, nil
}

func (f *fakeStore) SaveUser(_ context.Context, username, passwordHash string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[username]; ok {
		return nil, store.ErrDuplicateUser
	}
	f.nextUser++
	u := &model.User{Id: f.nextUser, Username: username, PasswordHash: passwordHash}
	f.users[username] = u
	copied := *u
	return &copied, nil
}

type fixture struct {
	store  *fakeStore
	router *Router
	creds  model.Credentials
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fs := newFakeStore()
	coll, err := collection.Load(context.Background(), fs)
	if err != nil {
		t.Fatalf("collection.Load: %v", err)
	}
	credSvc := auth.NewService(fs)
	if _, err := credSvc.Register(context.Background(), "alice", "pw"); err != nil {
		t.Fatalf("register: %v", err)
	}
	return &fixture{
		store:  fs,
		router: New(command.NewRegistry(coll), credSvc),
		creds:  model.Credentials{Username: "alice", Password: "pw"},
	}
}

func samplePerson() model.Person {
	return model.Person{
		Name:        "A",
		Height:      170,
		Weight:      70,
		HairColor:   model.ColorBlue,
		Nationality: model.CountryUSA,
		Location:    model.Location{X: 1},
	}
}

func TestRouteEmptyCommand(t *testing.T) {
	fx := newFixture(t)
	resp := fx.router.Route(context.Background(), &model.Request{Credentials: fx.creds})
	if resp.Message != "" || len(resp.Persons) != 0 || resp.Script != "" {
		t.Errorf("blank command must yield an empty response, got %+v", resp)
	}
	if resp := fx.router.Route(context.Background(), nil); resp.Message != "" {
		t.Errorf("nil request must yield an empty response, got %+v", resp)
	}
}

func TestRouteAuthRejection(t *testing.T) {
	fx := newFixture(t)
	tests := []struct {
		name  string
		creds model.Credentials
	}{
		{"wrong password", model.Credentials{Username: "alice", Password: "wrong"}},
		{"unknown user", model.Credentials{Username: "mallory", Password: "pw"}},
		{"no credentials", model.Credentials{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &model.Request{Command: "add", Persons: []model.Person{samplePerson()}, Credentials: tt.creds}
			resp := fx.router.Route(context.Background(), req)
			if resp.Message != AuthFailedMessage {
				t.Errorf("message = %q, want %q", resp.Message, AuthFailedMessage)
			}
		})
	}
	// Rejected requests must never reach the collection.
	if all, _ := fx.store.FindAllPersons(context.Background()); len(all) != 0 {
		t.Error("rejected request mutated the collection")
	}
}

func TestRouteUnknownCommand(t *testing.T) {
	fx := newFixture(t)
	resp := fx.router.Route(context.Background(), &model.Request{Command: "floop", Credentials: fx.creds})
	want := "command 'floop' not found, type 'help' for help"
	if resp.Message != want {
		t.Errorf("message = %q, want %q", resp.Message, want)
	}
}

func TestRouteHelp(t *testing.T) {
	fx := newFixture(t)
	resp := fx.router.Route(context.Background(), &model.Request{Command: "help", Credentials: fx.creds})
	if !strings.HasPrefix(resp.Message, "Available commands:") {
		t.Errorf("help = %q", resp.Message)
	}
	if !strings.Contains(resp.Message, "remove_greater") {
		t.Error("help must enumerate commands")
	}

	// Help matches commands in being case-insensitive.
	resp = fx.router.Route(context.Background(), &model.Request{Command: "HELP", Credentials: fx.creds})
	if !strings.HasPrefix(resp.Message, "Available commands:") {
		t.Errorf("HELP = %q", resp.Message)
	}
}

func TestRouteArityCheck(t *testing.T) {
	fx := newFixture(t)
	resp := fx.router.Route(context.Background(), &model.Request{Command: "add", Credentials: fx.creds})
	if resp.Message != InsufficientPayloadMessage {
		t.Errorf("message = %q, want %q", resp.Message, InsufficientPayloadMessage)
	}
}

func TestRouteDispatch(t *testing.T) {
	fx := newFixture(t)
	resp := fx.router.Route(context.Background(), &model.Request{
		Command:     "ADD", // case-insensitive
		Persons:     []model.Person{samplePerson()},
		Credentials: fx.creds,
	})
	if resp.Message != "Person added." {
		t.Errorf("message = %q", resp.Message)
	}

	resp = fx.router.Route(context.Background(), &model.Request{Command: "show", Credentials: fx.creds})
	if len(resp.Persons) != 1 || resp.Persons[0].Id != 1 {
		t.Errorf("show = %+v", resp)
	}
}

func TestRouteStoreErrors(t *testing.T) {
	fx := newFixture(t)
	fx.store.personErr = store.ErrUnavailable
	resp := fx.router.Route(context.Background(), &model.Request{
		Command:     "add",
		Persons:     []model.Person{samplePerson()},
		Credentials: fx.creds,
	})
	if resp.Message != StoreUnavailableMessage {
		t.Errorf("message = %q, want %q", resp.Message, StoreUnavailableMessage)
	}

	fx.store.personErr = store.ErrConstraint
	resp = fx.router.Route(context.Background(), &model.Request{
		Command:     "add",
		Persons:     []model.Person{samplePerson()},
		Credentials: fx.creds,
	})
	if resp.Message != InvalidDataMessage {
		t.Errorf("message = %q, want %q", resp.Message, InvalidDataMessage)
	}
}

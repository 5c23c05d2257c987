package mbeanserver

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fllarpy/mbean-bridge/domain"
	"github.com/fllarpy/mbean-bridge/domain/mbean"
)

// ErrAlreadyRegistered is returned when a name is registered twice.
var ErrAlreadyRegistered = errors.New("mbean already registered")

// Getter reads the current value of an attribute.
type Getter func(ctx context.Context) (mbean.Value, error)

// Attribute is a registered attribute: its descriptor plus a getter.
type Attribute struct {
	Name        string
	Description string
	Shape       mbean.Shape
	Get         Getter
}

// Constant returns a getter that always yields v.
func Constant(v mbean.Value) Getter {
	return func(context.Context) (mbean.Value, error) { return v, nil }
}

// Failing returns a getter that always fails with err.
func Failing(err error) Getter {
	return func(context.Context) (mbean.Value, error) { return mbean.Value{}, err }
}

// Gauge builds a scalar attribute backed by fn.
func Gauge(name, description string, fn func() float64) Attribute {
	return Attribute{
		Name:        name,
		Description: description,
		Shape:       mbean.ShapeScalar,
		Get: func(context.Context) (mbean.Value, error) {
			return mbean.Number(fn()), nil
		},
	}
}

type bean struct {
	name  mbean.ObjectName
	attrs []Attribute
}

func (b *bean) attribute(name string) (Attribute, bool) {
	for _, a := range b.attrs {
		if a.Name == name {
			return a, true
		}
	}
	return Attribute{}, false
}

var _ domain.Registry = (*Server)(nil)

// Server is an in-process managed-object registry. It is safe for concurrent
// use; registration may happen while requests read it.
type Server struct {
	mu    sync.RWMutex
	beans map[string]*bean
	order []string
}

// New returns an empty Server.
func New() *Server {
	return &Server{beans: make(map[string]*bean)}
}

// Register adds a managed object with the given attributes.
func (s *Server) Register(name mbean.ObjectName, attrs ...Attribute) error {
	key := name.String()
	seen := make(map[string]bool, len(attrs))
	for _, a := range attrs {
		if a.Name == "" || a.Get == nil {
			return fmt.Errorf("mbeanserver: %s: attribute needs a name and a getter", key)
		}
		if seen[a.Name] {
			return fmt.Errorf("mbeanserver: %s: duplicate attribute %q", key, a.Name)
		}
		seen[a.Name] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.beans[key]; dup {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, key)
	}
	s.beans[key] = &bean{name: name, attrs: append([]Attribute(nil), attrs...)}
	s.order = append(s.order, key)
	return nil
}

// MustRegister is like Register but panics on error.
func (s *Server) MustRegister(name mbean.ObjectName, attrs ...Attribute) {
	if err := s.Register(name, attrs...); err != nil {
		panic(err)
	}
}

// Unregister removes a managed object. It reports whether it was present.
func (s *Server) Unregister(name mbean.ObjectName) bool {
	key := name.String()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.beans[key]; !ok {
		return false
	}
	delete(s.beans, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Len returns the number of registered objects.
func (s *Server) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// ListObjects returns object names in registration order.
func (s *Server) ListObjects(ctx context.Context) ([]mbean.ObjectName, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]mbean.ObjectName, 0, len(s.order))
	for _, key := range s.order {
		names = append(names, s.beans[key].name)
	}
	return names, nil
}

// ListAttributes returns the descriptors of one object in registration order.
func (s *Server) ListAttributes(ctx context.Context, object mbean.ObjectName) ([]mbean.AttributeDescriptor, error) {
	b, err := s.lookup(object)
	if err != nil {
		return nil, err
	}
	out := make([]mbean.AttributeDescriptor, len(b.attrs))
	for i, a := range b.attrs {
		out[i] = mbean.AttributeDescriptor{Name: a.Name, Description: a.Description, Shape: a.Shape}
	}
	return out, nil
}

// ReadAttribute invokes the attribute's getter. A panicking getter is
// reported as an error instead of taking the request down.
func (s *Server) ReadAttribute(ctx context.Context, object mbean.ObjectName, attribute string) (v mbean.Value, err error) {
	b, err := s.lookup(object)
	if err != nil {
		return mbean.Value{}, err
	}
	a, ok := b.attribute(attribute)
	if !ok {
		return mbean.Value{}, fmt.Errorf("%w: %s attribute %q", mbean.ErrNotFound, object, attribute)
	}
	if err := ctx.Err(); err != nil {
		return mbean.Value{}, err
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("mbeanserver: %s.%s getter panicked: %v", object, attribute, r)
		}
	}()
	return a.Get(ctx)
}

func (s *Server) lookup(object mbean.ObjectName) (*bean, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.beans[object.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", mbean.ErrNotFound, object)
	}
	return b, nil
}

// Connect returns a connection to this server. Local connections hold no
// resources, so Close is a no-op.
func (s *Server) Connect(ctx context.Context) (domain.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return localConn{s}, nil
}

type localConn struct{ *Server }

func (localConn) Close() error { return nil }

package call

import (
	"fmt"
	"net/http"

	"github.com/zep-us/callbridge/pkg/engine"
)

// Factory builds calls that share one engine client, one executor and one registry
type Factory struct {
	client   *engine.Client
	executor Executor
	registry Registry
}

// NewFactory returns ErrNilExecutor when executor is nil.
// A nil client is allowed when calls are only built with Adapt.
func NewFactory(client *engine.Client, executor Executor, reg Registry) (*Factory, error) {
	if executor == nil {
		return nil, ErrNilExecutor
	}
	if reg == nil {
		reg = nopRegistry{}
	}
	return &Factory{client: client, executor: executor, registry: reg}, nil
}

func (f *Factory) Executor() Executor {
	return f.executor
}

func (f *Factory) Registry() Registry {
	return f.registry
}

// Adapt wraps an existing delegate
func Adapt[T any](f *Factory, delegate engine.Delegate) *Call[T] {
	return New[T](delegate, f.executor, f.registry)
}

// NewCall builds a request against the factory's client and wraps it
func NewCall[T any](f *Factory, method, path string, body []byte, header http.Header) (*Call[T], error) {
	if f.client == nil {
		return nil, fmt.Errorf("call factory has no engine client")
	}
	req, err := f.client.NewRequest(method, path, body, header)
	if err != nil {
		return nil, err
	}
	d, err := f.client.NewCall(req)
	if err != nil {
		return nil, err
	}
	return Adapt[T](f, d), nil
}

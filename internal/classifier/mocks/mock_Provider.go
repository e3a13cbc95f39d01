package mocks

import (
	"context"

	classifier "github.com/sells-group/waste-risk/internal/classifier"
	mock "github.com/stretchr/testify/mock"
)

// MockProvider is a mock type for the Provider interface.
type MockProvider struct {
	mock.Mock
}

// Classifier provides a mock function with given fields: ctx
func (_m *MockProvider) Classifier(ctx context.Context) (classifier.Classifier, error) {
	ret := _m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for Classifier")
	}

	var r0 classifier.Classifier
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context) (classifier.Classifier, error)); ok {
		return rf(ctx)
	}
	if rf, ok := ret.Get(0).(func(context.Context) classifier.Classifier); ok {
		r0 = rf(ctx)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(classifier.Classifier)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context) error); ok {
		r1 = rf(ctx)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockProvider creates a new instance of MockProvider. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewMockProvider(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockProvider {
	m := &MockProvider{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

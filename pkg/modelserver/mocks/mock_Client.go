// Package mocks provides test doubles for the modelserver client.
package mocks

import (
	"context"

	modelserver "github.com/sells-group/waste-risk/pkg/modelserver"
	mock "github.com/stretchr/testify/mock"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// Predict provides a mock function with given fields: ctx, req
func (_m *MockClient) Predict(ctx context.Context, req modelserver.PredictRequest) (*modelserver.PredictResponse, error) {
	ret := _m.Called(ctx, req)

	if len(ret) == 0 {
		panic("no return value specified for Predict")
	}

	var r0 *modelserver.PredictResponse
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, modelserver.PredictRequest) (*modelserver.PredictResponse, error)); ok {
		return rf(ctx, req)
	}
	if rf, ok := ret.Get(0).(func(context.Context, modelserver.PredictRequest) *modelserver.PredictResponse); ok {
		r0 = rf(ctx, req)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*modelserver.PredictResponse)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, modelserver.PredictRequest) error); ok {
		r1 = rf(ctx, req)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// Health provides a mock function with given fields: ctx
func (_m *MockClient) Health(ctx context.Context) error {
	ret := _m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for Health")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context) error); ok {
		r0 = rf(ctx)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// NewMockClient creates a new instance of MockClient. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	m := &MockClient{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

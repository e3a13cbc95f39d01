// Package mocks provides test doubles for the classifier capability.
package mocks

import (
	"context"

	classifier "github.com/sells-group/waste-risk/internal/classifier"
	model "github.com/sells-group/waste-risk/internal/model"
	mock "github.com/stretchr/testify/mock"
)

// MockClassifier is a mock type for the Classifier interface.
type MockClassifier struct {
	mock.Mock
}

// Classes provides a mock function with no fields
func (_m *MockClassifier) Classes() []model.RiskLevel {
	ret := _m.Called()

	if len(ret) == 0 {
		panic("no return value specified for Classes")
	}

	var r0 []model.RiskLevel
	if rf, ok := ret.Get(0).(func() []model.RiskLevel); ok {
		r0 = rf()
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]model.RiskLevel)
		}
	}

	return r0
}

// Predict provides a mock function with given fields: ctx, fv
func (_m *MockClassifier) Predict(ctx context.Context, fv model.FeatureVector) (model.RiskLevel, error) {
	ret := _m.Called(ctx, fv)

	if len(ret) == 0 {
		panic("no return value specified for Predict")
	}

	var r0 model.RiskLevel
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, model.FeatureVector) (model.RiskLevel, error)); ok {
		return rf(ctx, fv)
	}
	if rf, ok := ret.Get(0).(func(context.Context, model.FeatureVector) model.RiskLevel); ok {
		r0 = rf(ctx, fv)
	} else {
		r0 = ret.Get(0).(model.RiskLevel)
	}

	if rf, ok := ret.Get(1).(func(context.Context, model.FeatureVector) error); ok {
		r1 = rf(ctx, fv)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// PredictProba provides a mock function with given fields: ctx, fv
func (_m *MockClassifier) PredictProba(ctx context.Context, fv model.FeatureVector) (map[model.RiskLevel]float64, error) {
	ret := _m.Called(ctx, fv)

	if len(ret) == 0 {
		panic("no return value specified for PredictProba")
	}

	var r0 map[model.RiskLevel]float64
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, model.FeatureVector) (map[model.RiskLevel]float64, error)); ok {
		return rf(ctx, fv)
	}
	if rf, ok := ret.Get(0).(func(context.Context, model.FeatureVector) map[model.RiskLevel]float64); ok {
		r0 = rf(ctx, fv)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(map[model.RiskLevel]float64)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, model.FeatureVector) error); ok {
		r1 = rf(ctx, fv)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockClassifier creates a new instance of MockClassifier. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewMockClassifier(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClassifier {
	m := &MockClassifier{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

var _ classifier.Classifier = (*MockClassifier)(nil)

package sources

import (
	"context"
	"strconv"

	"github.com/OldStager01/generalscaler/pkg/models"
)

// StaticSource always reports the same value.
type StaticSource struct {
	value float64
}

func NewStaticSource(value float64) *StaticSource {
	return &StaticSource{value: value}
}

func newStaticFromParams(params models.Params) (Source, error) {
	if !params.Has("value") {
		return nil, invalidConfig(KindStatic, "value is required")
	}
	v, err := params.Float("value", 0)
	if err != nil {
		return nil, invalidConfig(KindStatic, "value: %v", err)
	}
	return NewStaticSource(v), nil
}

func (s *StaticSource) Kind() Kind { return KindStatic }

func (s *StaticSource) ID() string {
	return "static:" + strconv.FormatFloat(s.value, 'g', -1, 64)
}

func (s *StaticSource) Read(context.Context) (float64, error) {
	return s.value, nil
}

// Package observability provides metrics and logging utilities.
package observability

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Attribute keys
const (
	attrStage     = "stage"
	attrTarget    = "target"
	attrState     = "state"
	attrSuccess   = "success"
	attrFromCache = "from_cache"
)

func stageAttr(stage string) attribute.KeyValue {
	return attribute.String(attrStage, stage)
}

func targetAttr(target string) attribute.KeyValue {
	return attribute.String(attrTarget, target)
}

func stateAttr(state string) attribute.KeyValue {
	return attribute.String(attrState, state)
}

func successAttr(success bool) attribute.KeyValue {
	return attribute.Bool(attrSuccess, success)
}

func fromCacheAttr(fromCache bool) attribute.KeyValue {
	return attribute.Bool(attrFromCache, fromCache)
}

// WithStage returns a metric option with the stage attribute.
func WithStage(stage string) metric.MeasurementOption {
	return metric.WithAttributes(stageAttr(stage))
}

// WithTarget returns a metric option with the target attribute.
func WithTarget(target string) metric.MeasurementOption {
	return metric.WithAttributes(targetAttr(target))
}

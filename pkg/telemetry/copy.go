/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package telemetry

import (
	"slices"

	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func countDataPoints(rm *metricdata.ResourceMetrics) int {
	if rm == nil {
		return 0
	}

	n := 0

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			n += aggregationLen(m.Data)
		}
	}

	return n
}

func aggregationLen(agg metricdata.Aggregation) int {
	switch a := agg.(type) {
	case metricdata.Gauge[int64]:
		return len(a.DataPoints)
	case metricdata.Gauge[float64]:
		return len(a.DataPoints)
	case metricdata.Sum[int64]:
		return len(a.DataPoints)
	case metricdata.Sum[float64]:
		return len(a.DataPoints)
	case metricdata.Histogram[int64]:
		return len(a.DataPoints)
	case metricdata.Histogram[float64]:
		return len(a.DataPoints)
	case metricdata.ExponentialHistogram[int64]:
		return len(a.DataPoints)
	case metricdata.ExponentialHistogram[float64]:
		return len(a.DataPoints)
	case metricdata.Summary:
		return len(a.DataPoints)
	default:
		return 0
	}
}

// copyResourceMetrics deep-copies every slice the SDK may reuse. Resource,
// scope and attribute sets are immutable and shared.
func copyResourceMetrics(src *metricdata.ResourceMetrics) *metricdata.ResourceMetrics {
	dst := &metricdata.ResourceMetrics{
		Resource:     src.Resource,
		ScopeMetrics: make([]metricdata.ScopeMetrics, 0, len(src.ScopeMetrics)),
	}

	for _, sm := range src.ScopeMetrics {
		out := metricdata.ScopeMetrics{
			Scope:   sm.Scope,
			Metrics: make([]metricdata.Metrics, 0, len(sm.Metrics)),
		}

		for _, m := range sm.Metrics {
			out.Metrics = append(out.Metrics, metricdata.Metrics{
				Name:        m.Name,
				Description: m.Description,
				Unit:        m.Unit,
				Data:        copyAggregation(m.Data),
			})
		}

		dst.ScopeMetrics = append(dst.ScopeMetrics, out)
	}

	return dst
}

func copyAggregation(agg metricdata.Aggregation) metricdata.Aggregation {
	switch a := agg.(type) {
	case metricdata.Gauge[int64]:
		return metricdata.Gauge[int64]{DataPoints: copyDataPoints(a.DataPoints)}
	case metricdata.Gauge[float64]:
		return metricdata.Gauge[float64]{DataPoints: copyDataPoints(a.DataPoints)}
	case metricdata.Sum[int64]:
		return metricdata.Sum[int64]{
			DataPoints:  copyDataPoints(a.DataPoints),
			Temporality: a.Temporality,
			IsMonotonic: a.IsMonotonic,
		}
	case metricdata.Sum[float64]:
		return metricdata.Sum[float64]{
			DataPoints:  copyDataPoints(a.DataPoints),
			Temporality: a.Temporality,
			IsMonotonic: a.IsMonotonic,
		}
	case metricdata.Histogram[int64]:
		return metricdata.Histogram[int64]{
			DataPoints:  copyHistogramDataPoints(a.DataPoints),
			Temporality: a.Temporality,
		}
	case metricdata.Histogram[float64]:
		return metricdata.Histogram[float64]{
			DataPoints:  copyHistogramDataPoints(a.DataPoints),
			Temporality: a.Temporality,
		}
	case metricdata.ExponentialHistogram[int64]:
		return metricdata.ExponentialHistogram[int64]{
			DataPoints:  copyExponentialDataPoints(a.DataPoints),
			Temporality: a.Temporality,
		}
	case metricdata.ExponentialHistogram[float64]:
		return metricdata.ExponentialHistogram[float64]{
			DataPoints:  copyExponentialDataPoints(a.DataPoints),
			Temporality: a.Temporality,
		}
	case metricdata.Summary:
		points := make([]metricdata.SummaryDataPoint, len(a.DataPoints))
		for i, dp := range a.DataPoints {
			dp.QuantileValues = slices.Clone(dp.QuantileValues)
			points[i] = dp
		}

		return metricdata.Summary{DataPoints: points}
	default:
		return agg
	}
}

func copyDataPoints[N int64 | float64](src []metricdata.DataPoint[N]) []metricdata.DataPoint[N] {
	dst := make([]metricdata.DataPoint[N], len(src))

	for i, dp := range src {
		dp.Exemplars = copyExemplars(dp.Exemplars)
		dst[i] = dp
	}

	return dst
}

func copyHistogramDataPoints[N int64 | float64](src []metricdata.HistogramDataPoint[N]) []metricdata.HistogramDataPoint[N] {
	dst := make([]metricdata.HistogramDataPoint[N], len(src))

	for i, dp := range src {
		dp.Bounds = slices.Clone(dp.Bounds)
		dp.BucketCounts = slices.Clone(dp.BucketCounts)
		dp.Exemplars = copyExemplars(dp.Exemplars)
		dst[i] = dp
	}

	return dst
}

func copyExponentialDataPoints[N int64 | float64](
	src []metricdata.ExponentialHistogramDataPoint[N],
) []metricdata.ExponentialHistogramDataPoint[N] {
	dst := make([]metricdata.ExponentialHistogramDataPoint[N], len(src))

	for i, dp := range src {
		dp.PositiveBucket.Counts = slices.Clone(dp.PositiveBucket.Counts)
		dp.NegativeBucket.Counts = slices.Clone(dp.NegativeBucket.Counts)
		dp.Exemplars = copyExemplars(dp.Exemplars)
		dst[i] = dp
	}

	return dst
}

func copyExemplars[N int64 | float64](src []metricdata.Exemplar[N]) []metricdata.Exemplar[N] {
	if src == nil {
		return nil
	}

	dst := make([]metricdata.Exemplar[N], len(src))

	for i, ex := range src {
		ex.FilteredAttributes = slices.Clone(ex.FilteredAttributes)
		ex.SpanID = slices.Clone(ex.SpanID)
		ex.TraceID = slices.Clone(ex.TraceID)
		dst[i] = ex
	}

	return dst
}

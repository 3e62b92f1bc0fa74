// Package sanitize replaces non-finite floats so values can always be
// encoded as JSON.
package sanitize

import (
	"math"
	"reflect"

	"github.com/windboard/windboard/pkg/types"
)

// Float returns 0 for NaN and ±Inf and f otherwise.
func Float(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// Value returns a copy of v with every NaN or infinite float replaced by 0.
// Maps, slices, arrays, pointers, interfaces and structs are walked
// recursively and keep their shape. Unexported struct fields are copied as
// is.
func Value(v any) any {
	if v == nil {
		return nil
	}
	return value(reflect.ValueOf(v)).Interface()
}

func value(v reflect.Value) reflect.Value {
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if !math.IsNaN(f) && !math.IsInf(f, 0) {
			return v
		}
		out := reflect.New(v.Type()).Elem()
		out.SetFloat(0)
		return out
	case reflect.Interface:
		if v.IsNil() {
			return v
		}
		out := reflect.New(v.Type()).Elem()
		out.Set(value(v.Elem()))
		return out
	case reflect.Pointer:
		if v.IsNil() {
			return v
		}
		out := reflect.New(v.Type().Elem())
		out.Elem().Set(value(v.Elem()))
		return out
	case reflect.Map:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), value(iter.Value()))
		}
		return out
	case reflect.Slice:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(value(v.Index(i)))
		}
		return out
	case reflect.Array:
		out := reflect.New(v.Type()).Elem()
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(value(v.Index(i)))
		}
		return out
	case reflect.Struct:
		out := reflect.New(v.Type()).Elem()
		out.Set(v)
		for i := 0; i < v.NumField(); i++ {
			if !v.Type().Field(i).IsExported() {
				continue
			}
			out.Field(i).Set(value(v.Field(i)))
		}
		return out
	default:
		return v
	}
}

// Payload returns p with every non-finite float replaced by 0.
func Payload(p types.ChartPayload) types.ChartPayload {
	out := types.ChartPayload{
		PowerCurve:        make([]types.PowerCurveBin, len(p.PowerCurve)),
		MonthlyProduction: make([]types.MonthlyRecord, len(p.MonthlyProduction)),
		AEPDistribution:   make([]types.HistogramBin, len(p.AEPDistribution)),
		TurbineComparison: make([]types.TurbineRecord, len(p.TurbineComparison)),
		Summary:           p.Summary,
	}
	for i, b := range p.PowerCurve {
		out.PowerCurve[i] = types.PowerCurveBin{
			WindSpeed:   Float(b.WindSpeed),
			ActualPower: Float(b.ActualPower),
			IdealPower:  Float(b.IdealPower),
		}
	}
	for i, m := range p.MonthlyProduction {
		m.ExpectedGWh = Float(m.ExpectedGWh)
		m.ActualGWh = Float(m.ActualGWh)
		out.MonthlyProduction[i] = m
	}
	for i, b := range p.AEPDistribution {
		b.BinStart = Float(b.BinStart)
		b.BinEnd = Float(b.BinEnd)
		out.AEPDistribution[i] = b
	}
	for i, t := range p.TurbineComparison {
		t.CapacityFactor = Float(t.CapacityFactor)
		t.Availability = Float(t.Availability)
		t.AnnualEnergyMWh = Float(t.AnnualEnergyMWh)
		out.TurbineComparison[i] = t
	}
	out.Summary.RatedPowerMW = Float(p.Summary.RatedPowerMW)
	out.Summary.AvgCapacityFactor = Float(p.Summary.AvgCapacityFactor)
	out.Summary.AvgAvailability = Float(p.Summary.AvgAvailability)
	return out
}

// Response returns r with every non-finite float replaced by 0.
func Response(r types.AnalysisResponse) types.AnalysisResponse {
	r.AEPGWh = Float(r.AEPGWh)
	r.ChartData = Payload(r.ChartData)
	return r
}

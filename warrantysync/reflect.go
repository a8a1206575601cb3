package warrantysync

import (
	"reflect"

	"github.com/shopspring/decimal"
)

// The downstream model types are only known at run time, so field access
// goes through reflection keyed by the probed capability descriptor.

func baseType(proto interface{}) reflect.Type {
	t := reflect.TypeOf(proto)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

func newModel(t reflect.Type) interface{} {
	return reflect.New(t).Interface()
}

func fieldValue(obj interface{}, name string) reflect.Value {
	v := reflect.ValueOf(obj)
	for v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return reflect.Value{}
	}
	return v.FieldByName(name)
}

func getFieldString(obj interface{}, name string) string {
	v := fieldValue(obj, name)
	if !v.IsValid() || v.Kind() != reflect.String {
		return ""
	}
	return v.String()
}

func getFieldInt(obj interface{}, name string) int {
	v := fieldValue(obj, name)
	if !v.IsValid() {
		return 0
	}
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int(v.Uint())
	}
	return 0
}

func setFieldString(obj interface{}, name string, value string) {
	v := fieldValue(obj, name)
	if v.IsValid() && v.CanSet() && v.Kind() == reflect.String {
		v.SetString(value)
	}
}

func setFieldInt(obj interface{}, name string, value int) {
	v := fieldValue(obj, name)
	if !v.IsValid() || !v.CanSet() {
		return
	}
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v.SetInt(int64(value))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v.SetUint(uint64(value))
	}
}

var decimalType = reflect.TypeOf(decimal.Decimal{})

func quantityIsOne(v reflect.Value) bool {
	if !v.IsValid() {
		return false
	}
	if v.Type() == decimalType {
		return v.Interface().(decimal.Decimal).Equal(decimal.NewFromInt(1))
	}
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 1
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint() == 1
	case reflect.Float32, reflect.Float64:
		return v.Float() == 1
	}
	return false
}

// quantityOneFor produces the value "1" in the quantity field's own type,
// suitable for an Updates map.
func quantityOneFor(v reflect.Value) interface{} {
	if v.Type() == decimalType {
		return decimal.NewFromInt(1)
	}
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		return 1.0
	default:
		return 1
	}
}

func setQuantityOne(obj interface{}, name string) {
	v := fieldValue(obj, name)
	if !v.IsValid() || !v.CanSet() {
		return
	}
	if v.Type() == decimalType {
		v.Set(reflect.ValueOf(decimal.NewFromInt(1)))
		return
	}
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v.SetInt(1)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v.SetUint(1)
	case reflect.Float32, reflect.Float64:
		v.SetFloat(1)
	}
}

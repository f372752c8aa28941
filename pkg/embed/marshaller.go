package wist

import (
	"fmt"
	"math"
	"reflect"

	"github.com/wist-lang/wist/internal/vm"
)

// Marshaller handles conversion between Go and Wist values.
//
// Go integers become Wist integers; slices, arrays and structs become
// tuples, field by field. In the other direction integers become int (or
// the requested integer type), tuples become slices or structs, and
// closures come back as Handles.
type Marshaller struct {
	vm *VM
}

func NewMarshaller(v *VM) *Marshaller {
	return &Marshaller{vm: v}
}

var handleType = reflect.TypeOf(Handle{})

// ToValue converts a Go value and roots the result in the innermost frame.
func (m *Marshaller) ToValue(val interface{}) (Handle, error) {
	if h, ok := val.(Handle); ok {
		return h, nil
	}
	v, err := m.toValue(reflect.ValueOf(val))
	if err != nil {
		return Handle{}, err
	}
	h, err := m.vm.machine.NewHandle(v)
	return Handle{h}, err
}

func (m *Marshaller) toValue(v reflect.Value) (vm.Value, error) {
	// Unpack interface if it's contained in one
	for v.Kind() == reflect.Interface || v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return vm.Value{}, fmt.Errorf("cannot convert nil %s", v.Type())
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return vm.Value{}, fmt.Errorf("cannot convert nil")
	}
	if v.Type() == handleType {
		return m.vm.machine.Value(v.Interface().(Handle).h)
	}

	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return vm.IntVal(v.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if v.Uint() > math.MaxInt64 {
			return vm.Value{}, fmt.Errorf("%d overflows a Wist integer", v.Uint())
		}
		return vm.IntVal(int64(v.Uint())), nil
	case reflect.Bool:
		if v.Bool() {
			return vm.IntVal(1), nil
		}
		return vm.IntVal(0), nil
	case reflect.Slice, reflect.Array:
		fields := make([]vm.Value, v.Len())
		for i := range fields {
			f, err := m.toValue(v.Index(i))
			if err != nil {
				return vm.Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			fields[i] = f
		}
		return m.vm.machine.AllocTuple(fields...)
	case reflect.Struct:
		var fields []vm.Value
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			if !t.Field(i).IsExported() {
				continue
			}
			f, err := m.toValue(v.Field(i))
			if err != nil {
				return vm.Value{}, fmt.Errorf("field %s: %w", t.Field(i).Name, err)
			}
			fields = append(fields, f)
		}
		return m.vm.machine.AllocTuple(fields...)
	}
	return vm.Value{}, fmt.Errorf("unsupported type for conversion: %s", v.Type())
}

// FromValue converts the value h refers to into Go.
// targetType is optional; if provided, tries to convert to that type.
func (m *Marshaller) FromValue(h Handle, targetType reflect.Type) (interface{}, error) {
	val, err := m.vm.machine.Value(h.h)
	if err != nil {
		return nil, err
	}
	if targetType == handleType {
		return h, nil
	}
	out, err := m.fromValue(val, targetType)
	if err != nil {
		return nil, err
	}
	if out == nil {
		// closures cannot leave the VM as anything but a handle
		return h, nil
	}
	return out, nil
}

func (m *Marshaller) fromValue(val vm.Value, targetType reflect.Type) (interface{}, error) {
	switch val.Kind() {
	case vm.KindInt:
		if targetType == nil {
			return int(val.AsInt()), nil // Default to int
		}
		switch targetType.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			if reflect.Zero(targetType).OverflowInt(val.AsInt()) {
				return nil, fmt.Errorf("%d overflows %s", val.AsInt(), targetType)
			}
			return reflect.ValueOf(val.AsInt()).Convert(targetType).Interface(), nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			if val.AsInt() < 0 || reflect.Zero(targetType).OverflowUint(uint64(val.AsInt())) {
				return nil, fmt.Errorf("%d overflows %s", val.AsInt(), targetType)
			}
			return reflect.ValueOf(val.AsInt()).Convert(targetType).Interface(), nil
		case reflect.Bool:
			return val.AsInt() != 0, nil
		case reflect.Interface:
			return int(val.AsInt()), nil
		}
		return nil, fmt.Errorf("cannot convert integer to %s", targetType)

	case vm.KindTuple:
		fields := val.Obj().Fields
		if targetType != nil && targetType.Kind() == reflect.Struct {
			return m.tupleToStruct(fields, targetType)
		}
		var elem reflect.Type
		if targetType != nil && targetType.Kind() == reflect.Slice {
			elem = targetType.Elem()
		}
		out := make([]interface{}, len(fields))
		for i, f := range fields {
			e, err := m.fromValue(f, elem)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			if e == nil {
				return nil, fmt.Errorf("element %d: closure inside tuple", i)
			}
			out[i] = e
		}
		if elem == nil {
			return out, nil
		}
		slice := reflect.MakeSlice(targetType, len(out), len(out))
		for i, e := range out {
			slice.Index(i).Set(reflect.ValueOf(e))
		}
		return slice.Interface(), nil

	case vm.KindClosure:
		return nil, nil
	}
	return nil, fmt.Errorf("unsupported value kind: %s", val.Kind())
}

func (m *Marshaller) tupleToStruct(fields []vm.Value, targetType reflect.Type) (interface{}, error) {
	out := reflect.New(targetType).Elem()
	next := 0
	for i := 0; i < targetType.NumField(); i++ {
		sf := targetType.Field(i)
		if !sf.IsExported() {
			continue
		}
		if next >= len(fields) {
			return nil, fmt.Errorf("tuple has %d fields, %s needs more", len(fields), targetType)
		}
		e, err := m.fromValue(fields[next], sf.Type)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", sf.Name, err)
		}
		if e == nil {
			return nil, fmt.Errorf("field %s: closure inside tuple", sf.Name)
		}
		out.Field(i).Set(reflect.ValueOf(e))
		next++
	}
	if next != len(fields) {
		return nil, fmt.Errorf("tuple has %d fields, %s takes %d", len(fields), targetType, next)
	}
	return out.Interface(), nil
}

// Marshal converts a Go value into a handle.
func (v *VM) Marshal(val interface{}) (Handle, error) {
	return v.marshaller.ToValue(val)
}

// Unmarshal converts h into Go; see Marshaller.
func (v *VM) Unmarshal(h Handle) (interface{}, error) {
	return v.marshaller.FromValue(h, nil)
}

// UnmarshalInto stores the Go form of h into the value out points to.
func (v *VM) UnmarshalInto(h Handle, out interface{}) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("UnmarshalInto needs a non-nil pointer, got %T", out)
	}
	val, err := v.marshaller.FromValue(h, rv.Elem().Type())
	if err != nil {
		return err
	}
	rv.Elem().Set(reflect.ValueOf(val))
	return nil
}

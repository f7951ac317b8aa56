package server

import (
	"fmt"
	"reflect"

	"github.com/puzpuzpuz/xsync/v3"
)

type methodType struct {
	method    reflect.Method
	ArgType   reflect.Type
	ReplyType reflect.Type
}

// instance is one minted service receiver living in a connection's handle table.
type instance struct {
	name   string
	rcvr   reflect.Value
	method map[string]*methodType
}

// methodTables caches the scanned methods per receiver type; every Pool.Query
// mints a new receiver but the type set is small and fixed.
var methodTables = xsync.NewMapOf[reflect.Type, map[string]*methodType]()

var errorType = reflect.TypeOf((*error)(nil)).Elem()

func newInstance(name string, rcvr any) (*instance, error) {
	typ := reflect.TypeOf(rcvr)
	if typ == nil || typ.Kind() != reflect.Ptr {
		return nil, fmt.Errorf("rpc: %s receiver must be a pointer, got %v", name, typ)
	}
	if typ.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("rpc: %s receiver must point to a struct, got %s", name, typ.Elem().Kind())
	}

	methods, _ := methodTables.LoadOrCompute(typ, func() map[string]*methodType {
		return scanMethods(typ)
	})
	return &instance{
		name:   name,
		rcvr:   reflect.ValueOf(rcvr),
		method: methods,
	}, nil
}

// scanMethods keeps exported methods shaped like (receiver, *Args, *Reply) error.
func scanMethods(typ reflect.Type) map[string]*methodType {
	methods := make(map[string]*methodType)
	for i := 0; i < typ.NumMethod(); i++ {
		method := typ.Method(i)
		mt := method.Type
		if mt.NumIn() != 3 || mt.NumOut() != 1 || mt.Out(0) != errorType ||
			mt.In(1).Kind() != reflect.Ptr || mt.In(2).Kind() != reflect.Ptr {
			continue
		}

		methods[method.Name] = &methodType{
			method:    method,
			ArgType:   mt.In(1).Elem(),
			ReplyType: mt.In(2).Elem(),
		}
	}
	return methods
}

func (s *instance) call(mType *methodType, argv, replyv reflect.Value) error {
	args := [3]reflect.Value{s.rcvr, argv, replyv}
	results := mType.method.Func.Call(args[:])
	if !results[0].IsNil() {
		return results[0].Interface().(error)
	}
	return nil
}

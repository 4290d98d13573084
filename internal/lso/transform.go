package lso

// TransformFunc maps a value, or drops it by returning false. It must not
// keep or mutate shared state since it may run more than once per value.
type TransformFunc func(value []byte, args []any) ([]byte, bool)

// A Transform is applied to values on push and on read. Nil means identity.
type Transform func(value []byte) ([]byte, bool)

// Bind fixes the arguments of fn.
func Bind(fn TransformFunc, args ...any) Transform {
	return func(value []byte) ([]byte, bool) {
		return fn(value, args)
	}
}

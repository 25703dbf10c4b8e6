package bus

import "reflect"

// funcAddr returns the entry-point address of a func value. Two handlers
// subscribed from the same named function (not two separate closures)
// compare equal, which is enough to make Unsubscribe(eventType, theHandler)
// work for the common case of subscribing a method value or named func.
func funcAddr(h Handler) uintptr {
	return reflect.ValueOf(h).Pointer()
}

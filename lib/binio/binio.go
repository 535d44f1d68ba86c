/*package binio contains helpers for reading and writing flat numeric buffers
in raw binary. It is used by the operator cache and by the point/charge files
of the command line tool. Data is written in the system byte order: these
files are per-machine artifacts, not an interchange format.
*/
package binio

import (
	"encoding/binary"
	"io"
	"reflect"
	"unsafe"
)

func WriteAsBytes(f io.Writer, buf interface{}) error {
	sysOrder := SystemByteOrder()
	switch x := buf.(type) {
	case []uint64:
		return binary.Write(f, sysOrder, x)
	case []int64:
		return binary.Write(f, sysOrder, x)
	case []float64:
		return binary.Write(f, sysOrder, x)
	case []complex128:
		// Go uses the reflect package to write non-primitive data through
		// the binary package. This is slow and makes tons of heap allocations.
		// So you need to be sneaky and "cast" to a primitive array.
		hd := *(*reflect.SliceHeader)(unsafe.Pointer(&x))
		hd.Len *= 2
		hd.Cap *= 2

		f64x := *(*[]float64)(unsafe.Pointer(&hd))
		err := binary.Write(f, sysOrder, f64x)

		hd.Len /= 2
		hd.Cap /= 2

		return err

	case [][3]float64:
		hd := *(*reflect.SliceHeader)(unsafe.Pointer(&x))
		hd.Len *= 3
		hd.Cap *= 3

		f64x := *(*[]float64)(unsafe.Pointer(&hd))
		err := binary.Write(f, sysOrder, f64x)

		hd.Len /= 3
		hd.Cap /= 3

		return err
	}

	panic("Internal error: unrecognized type of internal buffer.")
}

func ReadAsBytes(f io.Reader, buf interface{}) error {
	sysOrder := SystemByteOrder()
	switch x := buf.(type) {
	case []uint64:
		return binary.Read(f, sysOrder, x)
	case []int64:
		return binary.Read(f, sysOrder, x)
	case []float64:
		return binary.Read(f, sysOrder, x)
	case []complex128:
		hd := *(*reflect.SliceHeader)(unsafe.Pointer(&x))
		hd.Len *= 2
		hd.Cap *= 2

		f64x := *(*[]float64)(unsafe.Pointer(&hd))
		err := binary.Read(f, sysOrder, f64x)

		hd.Len /= 2
		hd.Cap /= 2

		return err

	case [][3]float64:
		hd := *(*reflect.SliceHeader)(unsafe.Pointer(&x))
		hd.Len *= 3
		hd.Cap *= 3

		f64x := *(*[]float64)(unsafe.Pointer(&hd))
		err := binary.Read(f, sysOrder, f64x)

		hd.Len /= 3
		hd.Cap /= 3

		return err
	}

	panic("Internal error: unrecognized type of internal buffer.")
}

func SystemByteOrder() binary.ByteOrder {
	// See https://stackoverflow.com/questions/51332658/any-better-way-to-check-endianness-in-go/51332762
	b := [2]byte{}
	*(*uint16)(unsafe.Pointer(&b[0])) = uint16(0x0001)
	if b[0] == 0 {
		return binary.BigEndian
	} else {
		return binary.LittleEndian
	}
}

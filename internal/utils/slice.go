package utils

import (
	"unsafe"
)

func FilterMapSlice[T any, U any](s []T, mapper func(e T) (U, bool)) []U {
	var result []U

	for _, e := range s {
		res, keep := mapper(e)
		if keep {
			result = append(result, res)
		}
	}

	return result
}

func StringAsBytes[T ~string](s T) []byte {
	return unsafe.Slice(unsafe.StringData(string(s)), len(s))
}

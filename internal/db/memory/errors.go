package memory

import "fmt"

func errUnsupportedPath(p string) error {
	return fmt.Errorf("unsupported JSON path %q: only the root is writable", p)
}

func errUnknownField(key string) error {
	return fmt.Errorf("unknown field %q", key)
}

package errors

import (
	"fmt"
	"strings"
)

// Append combines given errors into a single error. Nil values are ignored.
// If all errors are nil, nil is returned. The ABCI code and the cause of the
// result are those of the first non nil error.
func Append(errs ...error) error {
	var me multiErr
	for _, err := range errs {
		if errIsNil(err) {
			continue
		}
		if m, ok := err.(*multiErr); ok {
			me.errs = append(me.errs, m.errs...)
			continue
		}
		me.errs = append(me.errs, err)
	}
	switch len(me.errs) {
	case 0:
		return nil
	case 1:
		return me.errs[0]
	default:
		return &me
	}
}

type multiErr struct {
	errs []error
}

func (me *multiErr) Error() string {
	points := make([]string, len(me.errs))
	for i, err := range me.errs {
		points[i] = fmt.Sprintf("* %s", err)
	}
	return fmt.Sprintf("%d errors occurred:\n\t%s", len(me.errs), strings.Join(points, "\n\t"))
}

func (me *multiErr) Cause() error {
	return me.errs[0]
}

// Contains returns true if any of the combined errors is of given kind.
func Contains(err error, kind *Error) bool {
	if m, ok := err.(*multiErr); ok {
		for _, e := range m.errs {
			if kind.Is(e) {
				return true
			}
		}
		return false
	}
	return kind.Is(err)
}

// Field returns an error that describes a problem with given field. The
// error wraps given root so it can be tested with root.Is.
func Field(name string, root *Error, description string, args ...interface{}) error {
	return Wrapf(root, "%s: %s", name, fmt.Sprintf(description, args...))
}

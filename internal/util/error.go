package util

import (
	"fmt"
	"strings"
)

// FormatErrorList() is a wrapper function that unifies error list formatting
// and makes printing error lists consistent.
//
// NOTE: The error returned IS NOT an error in itself. It is a single condensed
// error composed of all of the errors included in the errList argument, one
// per line. The individual errors are still reachable with errors.Is/As.
func FormatErrorList(errList []error) error {
	if len(errList) == 0 {
		return nil
	}
	var lines []string
	for i, e := range errList {
		lines = append(lines, fmt.Sprintf("\t[%d] %v", i, e))
	}
	return &errorList{msg: strings.Join(lines, "\n"), errs: errList}
}

// HasErrors() is a simple wrapper function to check if an error list contains
// errors.
func HasErrors(errList []error) bool {
	return len(errList) > 0
}

type errorList struct {
	msg  string
	errs []error
}

func (e *errorList) Error() string   { return e.msg }
func (e *errorList) Unwrap() []error { return e.errs }

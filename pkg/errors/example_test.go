// Package errors provides examples of structured error handling in wealthpack.
package errors_test

import (
	"fmt"
	"io"

	"github.com/ajitpratap0/wealthpack/pkg/errors"
)

// Example demonstrates basic error creation with details.
func Example() {
	err := errors.New(errors.ErrorTypeSchema, "missing required field").
		WithDetail("field", "personName").
		WithDetail("seq", 42)

	fmt.Println(err.Error())

	// Output:
	// schema: missing required field
}

// ExampleWrap shows how an I/O failure becomes a write error.
func ExampleWrap() {
	err := errors.Wrap(io.ErrShortWrite, errors.ErrorTypeWrite, "flush row group").
		WithDetail("row_group", 3)

	if errors.IsType(err, errors.ErrorTypeWrite) {
		fmt.Println("write error")
	}
	if errors.Is(err, io.ErrShortWrite) {
		fmt.Println("caused by short write")
	}

	// Output:
	// write error
	// caused by short write
}

// ExampleIsRecordLevel shows which errors lenient mode may skip.
func ExampleIsRecordLevel() {
	schemaErr := errors.New(errors.ErrorTypeSchema, "bad row")
	precErr := errors.New(errors.ErrorTypePrecision, "scale 40 exceeds 18")
	spillErr := errors.New(errors.ErrorTypeResourceExhausted, "no spill space")

	fmt.Println(errors.IsRecordLevel(schemaErr))
	fmt.Println(errors.IsRecordLevel(precErr))
	fmt.Println(errors.IsRecordLevel(spillErr))
	fmt.Println(errors.IsRecordLevel(io.EOF))

	// Output:
	// true
	// true
	// false
	// false
}

package rb

import (
	"errors"
	"fmt"
)

// Domain errors for reduced basis evaluation.
var (
	// ErrInvalidArgument indicates a request outside the valid range of the
	// current reduced data (e.g. N greater than the basis size).
	ErrInvalidArgument = errors.New("rb: invalid argument")

	// ErrOutOfRange indicates a basis index beyond the number of basis functions.
	ErrOutOfRange = errors.New("rb: index out of range")

	// ErrNoExpansion indicates that no theta expansion has been associated.
	ErrNoExpansion = errors.New("rb: theta expansion not associated")

	// ErrExpansionNotInitialized indicates an associated but unusable expansion.
	ErrExpansionNotInitialized = errors.New("rb: theta expansion not initialized")

	// ErrExpansionMismatch indicates that the affine term counts of the
	// expansion disagree with the stored reduced data.
	ErrExpansionMismatch = errors.New("rb: theta expansion does not match reduced data")

	// ErrBasisNotLoaded indicates a basis slot whose full-order vector was not
	// read in (online-only deployments ship no basis vectors).
	ErrBasisNotLoaded = errors.New("rb: basis function not loaded")

	// ErrSingularSystem indicates a singular or ill-conditioned reduced system.
	ErrSingularSystem = errors.New("rb: reduced system singular or ill-conditioned")

	// ErrNonPositiveStability indicates a stability lower bound that cannot
	// produce a valid error bound.
	ErrNonPositiveStability = errors.New("rb: stability lower bound not positive")

	// ErrNegativeResidual indicates a squared dual norm so negative that it
	// cannot be explained by round-off; the representor tensors are inconsistent.
	ErrNegativeResidual = errors.New("rb: negative squared dual norm beyond round-off")

	// ErrCorruptBundle indicates offline data that is missing or inconsistent.
	ErrCorruptBundle = errors.New("rb: corrupt offline data")
)

// BundleError reports which tensor and which file of an offline bundle failed.
type BundleError struct {
	Tensor string
	File   string
	Err    error
}

func (e *BundleError) Error() string {
	return fmt.Sprintf("rb: %s (%s): %v", e.Tensor, e.File, e.Err)
}

func (e *BundleError) Unwrap() error {
	return e.Err
}

func bundleErr(tensor, file string, err error) error {
	return &BundleError{Tensor: tensor, File: file, Err: err}
}

func corrupt(tensor, file, format string, a ...any) error {
	return bundleErr(tensor, file, fmt.Errorf("%w: "+format, append([]any{ErrCorruptBundle}, a...)...))
}

package domain

import "errors"

// Domain errors returned by the public packages. Check with errors.Is.
var (
	// ErrConfig is returned when a required configuration key is missing or a
	// requested option is invalid.
	ErrConfig = errors.New("birdrec: configuration error")

	// ErrNotImplemented is returned for options that exist but are not built
	// yet (the STFT transform). It also matches ErrConfig.
	ErrNotImplemented = &configError{msg: "birdrec: not implemented"}

	// ErrMissingAugmentation is returned when augmented training data was
	// requested but the augmentation file does not exist.
	ErrMissingAugmentation = errors.New("birdrec: augmented data requested but not found")

	// ErrDecode is returned for malformed record bytes or a corrupt container.
	ErrDecode = errors.New("birdrec: decode error")

	// ErrDevIndsUnsupported is returned when a deterministic dev split is
	// requested. Only the random split is available.
	ErrDevIndsUnsupported = &configError{msg: "birdrec: dev_inds split is not implemented"}
)

type configError struct{ msg string }

func (e *configError) Error() string { return e.msg }

func (e *configError) Is(target error) bool { return target == ErrConfig }

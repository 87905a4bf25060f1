package splitting

import "errors"

// Domain errors for the splitting package.
var (
	ErrEmptyDescription     = errors.New("splitting: description has no outputs and no inputs")
	ErrMissingBase          = errors.New("splitting: integrated unit needs a base dSUID")
	ErrMissingModuleAddress = errors.New("splitting: detachable unit needs a module address")
	ErrDuplicateSubIndex    = errors.New("splitting: duplicate sub-device index")
	ErrDuplicateInputIndex  = errors.New("splitting: duplicate input index")
	ErrUnknownFunction      = errors.New("splitting: input bound to unknown function")
	ErrDuplicateDSUID       = errors.New("splitting: two devices derive the same dSUID")
)
